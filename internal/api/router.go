package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/api/middleware"
)

func NewRouter(handlers *Handlers, sessions middleware.SessionResolver, log *zap.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(log))
	r.HandleFunc("/health", handlers.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Session(sessions))

	// Catalog
	api.HandleFunc("/products", handlers.GetProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/featured", handlers.GetFeaturedProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", handlers.GetProduct).Methods(http.MethodGet)
	api.HandleFunc("/categories", handlers.ListCategories).Methods(http.MethodGet)

	// Cart
	api.HandleFunc("/cart", handlers.GetCart).Methods(http.MethodGet)
	api.HandleFunc("/cart", handlers.ClearCart).Methods(http.MethodDelete)
	api.HandleFunc("/cart/items", handlers.AddToCart).Methods(http.MethodPut)
	api.HandleFunc("/cart/items/{id}", handlers.UpdateCartItem).Methods(http.MethodPatch)
	api.HandleFunc("/cart/items/{id}", handlers.RemoveFromCart).Methods(http.MethodDelete)

	// Session
	api.HandleFunc("/session", handlers.Login).Methods(http.MethodPost)
	api.HandleFunc("/session", handlers.GetSession).Methods(http.MethodGet)
	api.HandleFunc("/session", handlers.Logout).Methods(http.MethodDelete)
	api.HandleFunc("/actions/{name}", handlers.GetAction).Methods(http.MethodGet)

	// Navigation
	api.HandleFunc("/navigation", handlers.GetNavigation).Methods(http.MethodGet)
	api.HandleFunc("/navigation/{name}", handlers.ResolveNavigation).Methods(http.MethodGet)

	// Signed in
	authed := api.NewRoute().Subrouter()
	authed.Use(middleware.Guard(false))
	authed.HandleFunc("/checkout", handlers.Checkout).Methods(http.MethodPost)
	authed.HandleFunc("/orders", handlers.GetOrders).Methods(http.MethodGet)

	// Admin
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.Guard(true))
	admin.HandleFunc("/orders", handlers.GetAllOrders).Methods(http.MethodGet)
	admin.HandleFunc("/analytics", handlers.GetAnalytics).Methods(http.MethodGet)

	return r
}
