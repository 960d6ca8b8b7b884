package readmodel

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the canonical catalog record served by the backend
type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	IsFeatured    bool            `json:"is_featured"`
	CategoryID    string          `json:"category_id"`
	ImageURL      string          `json:"image_url,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// InStock reports whether at least one unit is available
func (p Product) InStock() bool {
	return p.StockQuantity > 0
}

// Category is a product category
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	ParentID    string `json:"parent_id,omitempty"`
}

// Order statuses reported by the backend. Unknown values are kept verbatim.
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// OrderItem represents an item in an order
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Order is an order as reported by the backend
type Order struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Items     []OrderItem     `json:"items"`
	Total     decimal.Decimal `json:"total"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// Envelope is the canonical collection shape at the API boundary
type Envelope[T any] struct {
	Data    []T `json:"data"`
	Total   int `json:"total,omitempty"`
	Page    int `json:"page,omitempty"`
	PerPage int `json:"per_page,omitempty"`
}

// Items returns the wrapped collection, never nil.
func (e Envelope[T]) Items() []T {
	if e.Data == nil {
		return []T{}
	}
	return e.Data
}
