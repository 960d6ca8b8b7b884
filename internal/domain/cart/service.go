package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/infrastructure/store"
	"github.com/example/storefront/internal/logger"
	"github.com/example/storefront/internal/readmodel"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidProduct  = errors.New("product_id is required")
	ErrInvalidCartID   = errors.New("cart id is required")
	ErrMergeSource     = errors.New("only anonymous carts can be merged")
)

// EventPublisher announces cart mutations. *kafka.Producer satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

const userCartPrefix = "user:"

// UserCartID returns the cart id of an authenticated user
func UserCartID(userID string) string {
	return userCartPrefix + userID
}

// IsUserCartID reports whether cartID belongs to an authenticated user
func IsUserCartID(cartID string) bool {
	return strings.HasPrefix(cartID, userCartPrefix)
}

type Service struct {
	store     store.CartStore
	publisher EventPublisher
	log       *zap.Logger
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*cartLock
}

type cartLock struct {
	mu   sync.Mutex
	refs int
}

// NewService builds a cart service. publisher may be nil.
func NewService(cs store.CartStore, publisher EventPublisher) *Service {
	return &Service{
		store:     cs,
		publisher: publisher,
		log:       logger.Named("cart"),
		now:       time.Now,
		locks:     make(map[string]*cartLock),
	}
}

func (s *Service) lock(cartID string) func() {
	s.mu.Lock()
	l, ok := s.locks[cartID]
	if !ok {
		l = &cartLock{}
		s.locks[cartID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, cartID)
		}
		s.mu.Unlock()
	}
}

func (s *Service) load(ctx context.Context, cartID string) (*Cart, error) {
	snap, ok, err := s.store.Load(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	c := New(cartID)
	if !ok {
		return c, nil
	}
	if err := json.Unmarshal(snap.State, c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart state: %w", err)
	}
	c.ID = cartID
	return c, nil
}

func (s *Service) save(ctx context.Context, c *Cart) error {
	state, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal cart state: %w", err)
	}
	if err := s.store.Save(ctx, &store.CartSnapshot{
		CartID:    c.ID,
		State:     state,
		UpdatedAt: s.now(),
	}); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, cartID, eventType string, data any) {
	if s.publisher == nil {
		return
	}
	msg := Message{
		ID:         uuid.New().String(),
		EventType:  eventType,
		CartID:     cartID,
		Data:       data,
		OccurredAt: s.now(),
	}
	if err := s.publisher.Publish(ctx, cartID, msg); err != nil {
		s.log.Warn("failed to publish cart event",
			zap.String("cart_id", cartID),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

// mutate runs fn on the loaded cart under the cart's lock. The cart is saved
// and the event published only when fn reports a change.
func (s *Service) mutate(ctx context.Context, cartID string, fn func(c *Cart) (changed bool, eventType string, data any)) (*Cart, error) {
	if cartID == "" {
		return nil, ErrInvalidCartID
	}
	unlock := s.lock(cartID)
	defer unlock()

	return s.mutateLocked(ctx, cartID, fn)
}

// mutateLocked is mutate for a caller already holding the lock of cartID.
func (s *Service) mutateLocked(ctx context.Context, cartID string, fn func(c *Cart) (changed bool, eventType string, data any)) (*Cart, error) {
	c, err := s.load(ctx, cartID)
	if err != nil {
		return nil, err
	}

	changed, eventType, data := fn(c)
	if !changed {
		return c, nil
	}
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	s.publish(ctx, cartID, eventType, data)
	return c, nil
}

// Get returns the cart for cartID. A cart that was never saved is empty.
func (s *Service) Get(ctx context.Context, cartID string) (*Cart, error) {
	if cartID == "" {
		return nil, ErrInvalidCartID
	}
	return s.load(ctx, cartID)
}

// AddOrUpdate sets the quantity of product in the cart, appending a line when
// absent. A non-positive quantity removes the line.
func (s *Service) AddOrUpdate(ctx context.Context, cartID string, product readmodel.Product, quantity int) (*Cart, error) {
	if product.ID == "" {
		return nil, ErrInvalidProduct
	}
	if quantity <= 0 {
		return s.Remove(ctx, cartID, product.ID)
	}
	return s.mutate(ctx, cartID, func(c *Cart) (bool, string, any) {
		return c.AddOrUpdate(product, quantity), EventItemSet, ItemSet{
			ProductID: product.ID,
			Quantity:  quantity,
			Price:     product.Price.String(),
		}
	})
}

func (s *Service) Remove(ctx context.Context, cartID, productID string) (*Cart, error) {
	if productID == "" {
		return nil, ErrInvalidProduct
	}
	return s.mutate(ctx, cartID, func(c *Cart) (bool, string, any) {
		return c.Remove(productID), EventItemRemoved, ItemRemoved{ProductID: productID}
	})
}

// UpdateQuantity changes the quantity of an existing line; quantity <= 0
// removes it. Absent products are left absent.
func (s *Service) UpdateQuantity(ctx context.Context, cartID, productID string, quantity int) (*Cart, error) {
	if productID == "" {
		return nil, ErrInvalidProduct
	}
	if quantity <= 0 {
		return s.Remove(ctx, cartID, productID)
	}
	return s.mutate(ctx, cartID, func(c *Cart) (bool, string, any) {
		return c.UpdateQuantity(productID, quantity), EventQuantityUpdated, QuantityUpdated{
			ProductID: productID,
			Quantity:  quantity,
		}
	})
}

func (s *Service) Clear(ctx context.Context, cartID string) (*Cart, error) {
	return s.mutate(ctx, cartID, func(c *Cart) (bool, string, any) {
		total := c.Total()
		return c.Clear(), EventCartCleared, CartCleared{Total: total.String()}
	})
}

// Merge moves the lines of the anonymous cart fromID into cart toID and
// deletes fromID. Lines already present in toID keep their quantity. A user
// cart is never a merge source.
func (s *Service) Merge(ctx context.Context, fromID, toID string) (*Cart, error) {
	if fromID == "" || toID == "" {
		return nil, ErrInvalidCartID
	}
	if IsUserCartID(fromID) {
		return nil, ErrMergeSource
	}
	if fromID == toID {
		return s.Get(ctx, toID)
	}

	// Both locks are taken in id order so opposite merges cannot deadlock
	first, second := fromID, toID
	if second < first {
		first, second = second, first
	}
	unlockFirst := s.lock(first)
	defer unlockFirst()
	unlockSecond := s.lock(second)
	defer unlockSecond()

	from, err := s.load(ctx, fromID)
	if err != nil {
		return nil, err
	}
	if from.IsEmpty() {
		return s.load(ctx, toID)
	}

	merged, err := s.mutateLocked(ctx, toID, func(c *Cart) (bool, string, any) {
		changed := false
		for _, item := range from.Items() {
			if c.Quantity(item.Product.ID) == 0 {
				changed = c.AddOrUpdate(item.Product, item.Quantity) || changed
			}
		}
		return changed, EventCartsMerged, CartsMerged{FromCartID: fromID}
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.Delete(ctx, fromID); err != nil {
		s.log.Warn("failed to delete merged cart", zap.String("cart_id", fromID), zap.Error(err))
	}
	return merged, nil
}
