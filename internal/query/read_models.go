package query

import (
	"github.com/shopspring/decimal"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/readmodel"
)

// CartLineView is one line of the cart as rendered to the browser
type CartLineView struct {
	Product  readmodel.Product `json:"product"`
	Quantity int               `json:"quantity"`
	Subtotal decimal.Decimal   `json:"subtotal"`
}

// CartView is the cart as rendered to the browser
type CartView struct {
	ID        string          `json:"id"`
	Items     []CartLineView  `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
	IsEmpty   bool            `json:"is_empty"`
}

func NewCartView(c *cart.Cart) CartView {
	items := c.Items()
	view := CartView{
		ID:        c.ID,
		Items:     make([]CartLineView, 0, len(items)),
		Total:     c.Total(),
		ItemCount: c.ItemCount(),
		IsEmpty:   c.IsEmpty(),
	}
	for _, item := range items {
		view.Items = append(view.Items, CartLineView{
			Product:  item.Product,
			Quantity: item.Quantity,
			Subtotal: item.Subtotal(),
		})
	}
	return view
}

// ProductSales aggregates the units and revenue of one product across orders
type ProductSales struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	Units     int             `json:"units"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// Analytics is the admin dashboard summary. Cancelled orders are counted per
// status but excluded from revenue, averages and product sales.
type Analytics struct {
	Revenue           decimal.Decimal `json:"revenue"`
	OrderCount        int             `json:"order_count"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	OrdersByStatus    map[string]int  `json:"orders_by_status"`
	TopProducts       []ProductSales  `json:"top_products"`
}

func emptyAnalytics() Analytics {
	return Analytics{
		OrdersByStatus: map[string]int{},
		TopProducts:    []ProductSales{},
	}
}
