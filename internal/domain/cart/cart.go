package cart

import (
	"encoding/json"

	"github.com/example/storefront/internal/readmodel"
	"github.com/shopspring/decimal"
)

// LineItem pairs a product with the number of units requested.
// Quantity is always >= 1 while the line exists.
type LineItem struct {
	Product  readmodel.Product `json:"product"`
	Quantity int               `json:"quantity"`
}

// Subtotal returns price * quantity for the line
func (li LineItem) Subtotal() decimal.Decimal {
	return li.Product.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Cart holds the ordered line items of one browsing session, unique by
// product id. It is not safe for concurrent mutation; Service serializes
// access per cart.
type Cart struct {
	ID    string
	items []LineItem
}

// New returns an empty cart
func New(id string) *Cart {
	return &Cart{ID: id, items: []LineItem{}}
}

func (c *Cart) indexOf(productID string) int {
	for i, item := range c.items {
		if item.Product.ID == productID {
			return i
		}
	}
	return -1
}

// AddOrUpdate replaces the quantity of the line for product.ID, or appends a
// new line. A non-positive quantity removes the line instead of storing it.
func (c *Cart) AddOrUpdate(product readmodel.Product, quantity int) bool {
	if quantity <= 0 {
		return c.UpdateQuantity(product.ID, quantity)
	}
	if i := c.indexOf(product.ID); i >= 0 {
		if c.items[i].Quantity == quantity {
			return false
		}
		c.items[i].Quantity = quantity
		return true
	}
	c.items = append(c.items, LineItem{Product: product, Quantity: quantity})
	return true
}

// Remove deletes the line for productID. Absent ids are a no-op.
func (c *Cart) Remove(productID string) bool {
	i := c.indexOf(productID)
	if i < 0 {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return true
}

// UpdateQuantity sets the quantity of an existing line. newQuantity <= 0
// behaves as Remove. It never creates a line.
func (c *Cart) UpdateQuantity(productID string, newQuantity int) bool {
	if newQuantity <= 0 {
		return c.Remove(productID)
	}
	i := c.indexOf(productID)
	if i < 0 || c.items[i].Quantity == newQuantity {
		return false
	}
	c.items[i].Quantity = newQuantity
	return true
}

// Clear removes every line
func (c *Cart) Clear() bool {
	if len(c.items) == 0 {
		return false
	}
	c.items = []LineItem{}
	return true
}

// Total is recomputed on every call
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.items {
		total = total.Add(item.Subtotal())
	}
	return total
}

func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// ItemCount returns the number of units across all lines
func (c *Cart) ItemCount() int {
	n := 0
	for _, item := range c.items {
		n += item.Quantity
	}
	return n
}

// Quantity returns the quantity for productID, or 0 when absent
func (c *Cart) Quantity(productID string) int {
	if i := c.indexOf(productID); i >= 0 {
		return c.items[i].Quantity
	}
	return 0
}

// Items returns a copy of the lines in insertion order
func (c *Cart) Items() []LineItem {
	out := make([]LineItem, len(c.items))
	copy(out, c.items)
	return out
}

type cartState struct {
	ID    string     `json:"id"`
	Items []LineItem `json:"items"`
}

func (c *Cart) MarshalJSON() ([]byte, error) {
	return json.Marshal(cartState{ID: c.ID, Items: c.Items()})
}

// UnmarshalJSON restores a persisted cart through AddOrUpdate, so a corrupt
// snapshot cannot reintroduce duplicate or non-positive lines.
func (c *Cart) UnmarshalJSON(data []byte) error {
	var state cartState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	c.ID = state.ID
	c.items = []LineItem{}
	for _, item := range state.Items {
		c.AddOrUpdate(item.Product, item.Quantity)
	}
	return nil
}
