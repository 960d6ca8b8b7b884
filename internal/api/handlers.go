package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/api/middleware"
	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/internal/binding"
	"github.com/example/storefront/internal/command"
	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/logger"
	"github.com/example/storefront/internal/query"
	"github.com/example/storefront/internal/session"
	"github.com/example/storefront/internal/task"
)

const cartCookieMaxAge = 30 * 24 * time.Hour

type Handlers struct {
	cmdHandler    *command.Handler
	queryHandler  *query.Handler
	tasks         *task.Registry
	errs          *apperr.Mapper
	secureCookies bool
	log           *zap.Logger
}

func NewHandlers(cmdHandler *command.Handler, queryHandler *query.Handler, tasks *task.Registry, secureCookies bool) *Handlers {
	return &Handlers{
		cmdHandler:    cmdHandler,
		queryHandler:  queryHandler,
		tasks:         tasks,
		errs:          newErrorMapper(),
		secureCookies: secureCookies,
		log:           logger.Named("api"),
	}
}

// Cart Handlers

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	if sessionPending(w, r) {
		return
	}
	cartID := h.cartID(w, r, false)
	if cartID == "" {
		respondJSON(w, http.StatusOK, query.NewCartView(cart.New("")))
		return
	}
	c, err := h.cmdHandler.Cart(r.Context(), cartID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, query.NewCartView(c))
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	if sessionPending(w, r) {
		return
	}
	var cmd command.AddToCart
	if !h.decode(w, r, &cmd) {
		return
	}
	cmd.CartID = h.cartID(w, r, true)

	c, err := h.cmdHandler.AddToCart(r.Context(), cmd)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, query.NewCartView(c))
}

func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	if sessionPending(w, r) {
		return
	}
	var cmd command.UpdateCartItem
	if !h.decode(w, r, &cmd) {
		return
	}
	cmd.CartID = h.cartID(w, r, true)
	cmd.ProductID = mux.Vars(r)["id"]

	c, err := h.cmdHandler.UpdateCartItem(r.Context(), cmd)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, query.NewCartView(c))
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	if sessionPending(w, r) {
		return
	}
	cmd := command.RemoveFromCart{
		CartID:    h.cartID(w, r, true),
		ProductID: mux.Vars(r)["id"],
	}
	c, err := h.cmdHandler.RemoveFromCart(r.Context(), cmd)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, query.NewCartView(c))
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	if sessionPending(w, r) {
		return
	}
	c, err := h.cmdHandler.ClearCart(r.Context(), command.ClearCart{CartID: h.cartID(w, r, true)})
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, query.NewCartView(c))
}

// Order Handlers

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	s := currentSession(r)
	o, err := h.cmdHandler.Checkout(r.Context(), command.Checkout{
		CartID:  cart.UserCartID(s.UserID),
		Session: s,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

func (h *Handlers) GetOrders(w http.ResponseWriter, r *http.Request) {
	respondResult(w, h.errs, h.queryHandler.Orders(r.Context(), currentSession(r)))
}

// Admin Handlers

func (h *Handlers) GetAllOrders(w http.ResponseWriter, r *http.Request) {
	respondResult(w, h.errs, h.queryHandler.AllOrders(r.Context(), currentSession(r)))
}

func (h *Handlers) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	respondResult(w, h.errs, h.queryHandler.Analytics(r.Context(), currentSession(r)))
}

// GetAction reports the state of an async action of the current session
func (h *Handlers) GetAction(w http.ResponseWriter, r *http.Request) {
	s := currentSession(r)
	if !s.IsAuthenticated {
		respondJSON(w, http.StatusOK, task.Snapshot{State: task.Idle})
		return
	}
	respondJSON(w, http.StatusOK, h.tasks.Snapshot(command.TaskOwner(s), mux.Vars(r)["name"]))
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondResult writes a binding result. A failed fetch still carries the
// binding's default so the client can render an empty view.
func respondResult[T any](w http.ResponseWriter, errs *apperr.Mapper, res binding.Result[T]) {
	if res.Err == nil {
		respondJSON(w, http.StatusOK, res.Data)
		return
	}
	appErr := errs.Resolve(res.Err)
	if appErr.Code == http.StatusInternalServerError {
		appErr = apperr.New(http.StatusBadGateway, "backend unavailable", res.Err)
	}
	respondJSON(w, appErr.Code, map[string]any{"error": appErr.Message, "data": res.Data})
}

func (h *Handlers) respondError(w http.ResponseWriter, err error) {
	appErr := h.errs.Write(w, err)
	if appErr.Code >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.Int("status", appErr.Code), zap.Error(err))
	}
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.respondError(w, errors.Join(errBadBody, err))
		return false
	}
	return true
}

func currentSession(r *http.Request) session.Context {
	return session.FromContext(r.Context()).Context
}

// sessionPending answers 202 while the session is not yet known, so cart
// routes never fall back to an anonymous cart for a signed-in user.
func sessionPending(w http.ResponseWriter, r *http.Request) bool {
	res := session.FromContext(r.Context())
	if res.Resolved {
		return false
	}
	respondJSON(w, http.StatusAccepted, SessionResponse{Context: res.Context, Resolved: false})
	return true
}

// cartID returns the cart of the request: the user's cart when signed in,
// otherwise the one named by the cart_id cookie. With create set, an
// anonymous visitor without a cart is given one.
func (h *Handlers) cartID(w http.ResponseWriter, r *http.Request, create bool) string {
	if s := currentSession(r); s.IsAuthenticated {
		return cart.UserCartID(s.UserID)
	}
	if id := anonymousCartID(r); id != "" {
		return id
	}
	if !create {
		return ""
	}
	id := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CartCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(cartCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// anonymousCartID returns the cart cookie value when it is a well-formed
// anonymous cart id, and "" otherwise.
func anonymousCartID(r *http.Request) string {
	c, err := r.Cookie(middleware.CartCookie)
	if err != nil || c.Value == "" {
		return ""
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return ""
	}
	return c.Value
}

func (h *Handlers) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
