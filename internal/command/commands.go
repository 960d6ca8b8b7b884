package command

import "github.com/example/storefront/internal/session"

// Actions tracked in the task registry
const (
	ActionCheckout = "checkout"
	ActionLogout   = "logout"
)

// Cart Commands
type AddToCart struct {
	CartID    string `json:"-"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type UpdateCartItem struct {
	CartID    string `json:"-"`
	ProductID string `json:"-"`
	Quantity  int    `json:"quantity"`
}

type RemoveFromCart struct {
	CartID    string `json:"-"`
	ProductID string `json:"-"`
}

type ClearCart struct {
	CartID string `json:"-"`
}

// Order Commands
type Checkout struct {
	CartID  string
	Session session.Context
}

// Session Commands
type Login struct {
	AccessToken string `json:"access_token"`
	// AnonymousCartID is merged into the user's cart after login
	AnonymousCartID string `json:"-"`
}

type Logout struct {
	Session session.Context
}
