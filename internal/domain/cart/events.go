package cart

import "time"

const (
	EventItemSet         = "CartItemSet"
	EventItemRemoved     = "CartItemRemoved"
	EventQuantityUpdated = "CartItemQuantityUpdated"
	EventCartCleared     = "CartCleared"
	EventCartsMerged     = "CartsMerged"
)

// Message is the envelope published for every cart mutation
type Message struct {
	ID         string    `json:"id"`
	EventType  string    `json:"event_type"`
	CartID     string    `json:"cart_id"`
	Data       any       `json:"data"`
	OccurredAt time.Time `json:"occurred_at"`
}

type ItemSet struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

type ItemRemoved struct {
	ProductID string `json:"product_id"`
}

type QuantityUpdated struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CartCleared struct {
	Total string `json:"total"`
}

type CartsMerged struct {
	FromCartID string `json:"from_cart_id"`
}
