package query

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/example/storefront/internal/binding"
	"github.com/example/storefront/internal/client"
	"github.com/example/storefront/internal/readmodel"
	"github.com/example/storefront/internal/session"
)

const (
	KeyProducts   = "products"
	KeyFeatured   = "products:featured"
	KeyCategories = "categories"
	KeyAllOrders  = "orders:all"
	OrdersPrefix  = "orders:"

	topProductsLimit = 5
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("admin role required")
)

func ProductKey(id string) string {
	return "products:id:" + id
}

func OrdersKey(userID string) string {
	return "orders:user:" + userID
}

// CatalogAPI is the read side of the backend catalog
type CatalogAPI interface {
	ListProducts(ctx context.Context) ([]readmodel.Product, error)
	FeaturedProducts(ctx context.Context) ([]readmodel.Product, error)
	GetProduct(ctx context.Context, id string) (*readmodel.Product, error)
	ListCategories(ctx context.Context) ([]readmodel.Category, error)
}

// OrderReader lists orders on behalf of a session token
type OrderReader interface {
	ListOrders(ctx context.Context, token string) ([]readmodel.Order, error)
	ListAllOrders(ctx context.Context, token string) ([]readmodel.Order, error)
}

// Filter narrows the product list. Zero fields do not filter.
type Filter struct {
	CategoryID   string
	Query        string
	FeaturedOnly bool
	InStockOnly  bool
}

func (f Filter) match(p readmodel.Product) bool {
	if f.CategoryID != "" && p.CategoryID != f.CategoryID {
		return false
	}
	if f.FeaturedOnly && !p.IsFeatured {
		return false
	}
	if f.InStockOnly && !p.InStock() {
		return false
	}
	if q := strings.TrimSpace(f.Query); q != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q)) {
		return false
	}
	return true
}

type Handler struct {
	cache   *binding.Cache
	catalog CatalogAPI
	orders  OrderReader
}

func NewHandler(cache *binding.Cache, catalog CatalogAPI, orders OrderReader) *Handler {
	return &Handler{cache: cache, catalog: catalog, orders: orders}
}

// Products
func (h *Handler) Products(ctx context.Context, f Filter) binding.Result[[]readmodel.Product] {
	res := binding.Collection(ctx, h.cache, KeyProducts, h.catalog.ListProducts)
	filtered := make([]readmodel.Product, 0, len(res.Data))
	for _, p := range res.Data {
		if f.match(p) {
			filtered = append(filtered, p)
		}
	}
	res.Data = filtered
	return res
}

func (h *Handler) Featured(ctx context.Context) binding.Result[[]readmodel.Product] {
	return binding.Collection(ctx, h.cache, KeyFeatured, h.catalog.FeaturedProducts)
}

// Product returns a nil Data without error for ids the backend does not know
func (h *Handler) Product(ctx context.Context, id string) binding.Result[*readmodel.Product] {
	return binding.Query(ctx, h.cache, ProductKey(id), func(ctx context.Context) (*readmodel.Product, error) {
		p, err := h.catalog.GetProduct(ctx, id)
		if errors.Is(err, client.ErrNotFound) {
			return nil, nil
		}
		return p, err
	}, nil)
}

// Categories
func (h *Handler) Categories(ctx context.Context) binding.Result[[]readmodel.Category] {
	return binding.Collection(ctx, h.cache, KeyCategories, h.catalog.ListCategories)
}

// Orders
func (h *Handler) Orders(ctx context.Context, s session.Context) binding.Result[[]readmodel.Order] {
	if !s.IsAuthenticated {
		return binding.Result[[]readmodel.Order]{Data: []readmodel.Order{}, Err: ErrUnauthenticated}
	}
	return binding.Collection(ctx, h.cache, OrdersKey(s.UserID), func(ctx context.Context) ([]readmodel.Order, error) {
		return h.orders.ListOrders(ctx, s.Token)
	})
}

// AllOrders returns every order (for admin use)
func (h *Handler) AllOrders(ctx context.Context, s session.Context) binding.Result[[]readmodel.Order] {
	if !s.IsAdmin() {
		return binding.Result[[]readmodel.Order]{Data: []readmodel.Order{}, Err: ErrForbidden}
	}
	return binding.Collection(ctx, h.cache, KeyAllOrders, func(ctx context.Context) ([]readmodel.Order, error) {
		return h.orders.ListAllOrders(ctx, s.Token)
	})
}

// Analytics summarises AllOrders for the admin dashboard
func (h *Handler) Analytics(ctx context.Context, s session.Context) binding.Result[Analytics] {
	orders := h.AllOrders(ctx, s)
	if orders.Err != nil {
		return binding.Result[Analytics]{Data: emptyAnalytics(), Err: orders.Err}
	}
	return binding.Result[Analytics]{Data: Summarize(orders.Data), FetchedAt: orders.FetchedAt}
}

// Summarize computes Analytics over orders
func Summarize(orders []readmodel.Order) Analytics {
	a := emptyAnalytics()
	sales := map[string]*ProductSales{}

	for _, o := range orders {
		a.OrdersByStatus[o.Status]++
		if o.Status == readmodel.OrderStatusCancelled {
			continue
		}
		a.OrderCount++
		a.Revenue = a.Revenue.Add(o.Total)

		for _, item := range o.Items {
			ps, ok := sales[item.ProductID]
			if !ok {
				ps = &ProductSales{ProductID: item.ProductID, Name: item.Name}
				sales[item.ProductID] = ps
			}
			ps.Units += item.Quantity
			ps.Revenue = ps.Revenue.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
	}

	if a.OrderCount > 0 {
		a.AverageOrderValue = a.Revenue.DivRound(decimal.NewFromInt(int64(a.OrderCount)), 2)
	}

	for _, ps := range sales {
		a.TopProducts = append(a.TopProducts, *ps)
	}
	sort.Slice(a.TopProducts, func(i, j int) bool {
		if a.TopProducts[i].Units != a.TopProducts[j].Units {
			return a.TopProducts[i].Units > a.TopProducts[j].Units
		}
		return a.TopProducts[i].ProductID < a.TopProducts[j].ProductID
	})
	if len(a.TopProducts) > topProductsLimit {
		a.TopProducts = a.TopProducts[:topProductsLimit]
	}
	return a
}
