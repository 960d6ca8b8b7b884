package command

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/storefront/internal/binding"
	"github.com/example/storefront/internal/client"
	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/logger"
	"github.com/example/storefront/internal/query"
	"github.com/example/storefront/internal/readmodel"
	"github.com/example/storefront/internal/session"
	"github.com/example/storefront/internal/task"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidQuantity = cart.ErrInvalidQuantity
	ErrEmptyCart       = errors.New("cart is empty")
)

// ProductLookup resolves products through the read side
type ProductLookup interface {
	Product(ctx context.Context, id string) binding.Result[*readmodel.Product]
}

// OrderWriter submits orders to the backend
type OrderWriter interface {
	CreateOrder(ctx context.Context, token string, req client.CreateOrderRequest) (*readmodel.Order, error)
}

// SessionLifecycle opens and closes sessions
type SessionLifecycle interface {
	Login(ctx context.Context, accessToken string) (session.Context, error)
	Logout(ctx context.Context, sessionID string) session.Context
}

type Handler struct {
	cartSvc  *cart.Service
	products ProductLookup
	orders   OrderWriter
	sessions SessionLifecycle
	tasks    *task.Registry
	cache    *binding.Cache
	log      *zap.Logger
}

func NewHandler(
	cartSvc *cart.Service,
	products ProductLookup,
	orders OrderWriter,
	sessions SessionLifecycle,
	tasks *task.Registry,
	cache *binding.Cache,
) *Handler {
	return &Handler{
		cartSvc:  cartSvc,
		products: products,
		orders:   orders,
		sessions: sessions,
		tasks:    tasks,
		cache:    cache,
		log:      logger.Named("command"),
	}
}

// TaskOwner returns the task registry owner of a session
func TaskOwner(s session.Context) string {
	if s.SessionID != "" {
		return s.SessionID
	}
	return cart.UserCartID(s.UserID)
}

// Cart returns the current state of a cart
func (h *Handler) Cart(ctx context.Context, cartID string) (*cart.Cart, error) {
	return h.cartSvc.Get(ctx, cartID)
}

// AddToCart adds a product to the cart, or sets its quantity when present
func (h *Handler) AddToCart(ctx context.Context, cmd AddToCart) (*cart.Cart, error) {
	if cmd.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if cmd.ProductID == "" {
		return nil, cart.ErrInvalidProduct
	}

	// Price and name come from the catalog, never from the request
	res := h.products.Product(ctx, cmd.ProductID)
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Data == nil {
		return nil, ErrProductNotFound
	}

	return h.cartSvc.AddOrUpdate(ctx, cmd.CartID, *res.Data, cmd.Quantity)
}

// UpdateCartItem sets the quantity of a line; zero or less removes it
func (h *Handler) UpdateCartItem(ctx context.Context, cmd UpdateCartItem) (*cart.Cart, error) {
	return h.cartSvc.UpdateQuantity(ctx, cmd.CartID, cmd.ProductID, cmd.Quantity)
}

// RemoveFromCart removes an item from cart
func (h *Handler) RemoveFromCart(ctx context.Context, cmd RemoveFromCart) (*cart.Cart, error) {
	return h.cartSvc.Remove(ctx, cmd.CartID, cmd.ProductID)
}

// ClearCart clears all items from cart
func (h *Handler) ClearCart(ctx context.Context, cmd ClearCart) (*cart.Cart, error) {
	return h.cartSvc.Clear(ctx, cmd.CartID)
}

// Checkout places an order for the cart's lines and clears the cart. It runs
// as the session's checkout task, so a second checkout while one is in
// flight fails with task.ErrInFlight.
func (h *Handler) Checkout(ctx context.Context, cmd Checkout) (*readmodel.Order, error) {
	if !cmd.Session.IsAuthenticated {
		return nil, query.ErrUnauthenticated
	}

	var placed *readmodel.Order
	err := h.tasks.Run(ctx, TaskOwner(cmd.Session), ActionCheckout, func(ctx context.Context) error {
		c, err := h.cartSvc.Get(ctx, cmd.CartID)
		if err != nil {
			return err
		}
		if c.IsEmpty() {
			return ErrEmptyCart
		}

		req := client.CreateOrderRequest{Total: c.Total().String()}
		for _, item := range c.Items() {
			req.Items = append(req.Items, readmodel.OrderItem{
				ProductID: item.Product.ID,
				Name:      item.Product.Name,
				Quantity:  item.Quantity,
				Price:     item.Product.Price,
			})
		}

		o, err := h.orders.CreateOrder(ctx, cmd.Session.Token, req)
		if err != nil {
			return fmt.Errorf("failed to place order: %w", err)
		}
		placed = o

		if _, err := h.cartSvc.Clear(ctx, cmd.CartID); err != nil {
			h.log.Error("order placed but cart not cleared",
				zap.String("order_id", o.ID),
				zap.String("cart_id", cmd.CartID),
				zap.Error(err),
			)
		}
		h.cache.Invalidate(ctx, query.OrdersKey(cmd.Session.UserID), query.KeyAllOrders)
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.log.Info("order placed", zap.String("order_id", placed.ID), zap.String("user_id", cmd.Session.UserID))
	return placed, nil
}

// Login opens a session and moves the anonymous cart into the user's cart
func (h *Handler) Login(ctx context.Context, cmd Login) (session.Context, error) {
	s, err := h.sessions.Login(ctx, cmd.AccessToken)
	if err != nil {
		return s, err
	}

	if cmd.AnonymousCartID != "" {
		if _, err := h.cartSvc.Merge(ctx, cmd.AnonymousCartID, cart.UserCartID(s.UserID)); err != nil {
			h.log.Warn("failed to merge anonymous cart", zap.String("user_id", s.UserID), zap.Error(err))
		}
	}
	return s, nil
}

// Logout clears the session. It never fails: backend errors are logged by
// the session manager and the session is cleared regardless.
func (h *Handler) Logout(ctx context.Context, cmd Logout) (session.Context, error) {
	if !cmd.Session.IsAuthenticated {
		return session.Anonymous(), nil
	}

	owner := TaskOwner(cmd.Session)
	cleared := session.Anonymous()
	err := h.tasks.Run(ctx, owner, ActionLogout, func(ctx context.Context) error {
		cleared = h.sessions.Logout(ctx, cmd.Session.SessionID)
		h.tasks.Forget(owner)
		return nil
	})
	if errors.Is(err, task.ErrInFlight) {
		return session.Anonymous(), err
	}
	return cleared, nil
}
