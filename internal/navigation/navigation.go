package navigation

// Names of the storefront views
const (
	Home              = "Home"
	Products          = "Products"
	Cart              = "Cart"
	Checkout          = "Checkout"
	OrderConfirmation = "OrderConfirmation"
	About             = "About"
	Contact           = "Contact"
	Login             = "Login"
	Account           = "Account"
	AdminDashboard    = "AdminDashboard"
	AdminProducts     = "AdminProducts"
	AdminProductForm  = "AdminProductForm"
	AdminOrders       = "AdminOrders"
	AdminAnalytics    = "AdminAnalytics"
)

const DefaultPath = "/"

var routes = map[string]string{
	Home:              "/",
	Products:          "/products",
	Cart:              "/cart",
	Checkout:          "/checkout",
	OrderConfirmation: "/order-confirmation",
	About:             "/about",
	Contact:           "/contact",
	Login:             "/login",
	Account:           "/account",
	AdminDashboard:    "/admin/dashboard",
	AdminProducts:     "/admin/products",
	AdminProductForm:  "/admin/products/new",
	AdminOrders:       "/admin/orders",
	AdminAnalytics:    "/admin/analytics",
}

// Resolve maps a view name to its path. Names are matched exactly; unknown
// names resolve to "/".
func Resolve(name string) string {
	if path, ok := routes[name]; ok {
		return path
	}
	return DefaultPath
}

// All returns a copy of the route table
func All() map[string]string {
	out := make(map[string]string, len(routes))
	for name, path := range routes {
		out[name] = path
	}
	return out
}
