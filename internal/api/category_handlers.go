package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/internal/navigation"
	"github.com/example/storefront/internal/query"
)

// Catalog Handlers

// GetProducts lists products, narrowed by the category, q, featured and
// in_stock query parameters
func (h *Handlers) GetProducts(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondResult(w, h.errs, h.queryHandler.Products(r.Context(), f))
}

func (h *Handlers) GetFeaturedProducts(w http.ResponseWriter, r *http.Request) {
	respondResult(w, h.errs, h.queryHandler.Featured(r.Context()))
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	res := h.queryHandler.Product(r.Context(), mux.Vars(r)["id"])
	if res.Err == nil && res.Data == nil {
		h.respondError(w, apperr.NotFound("product not found"))
		return
	}
	respondResult(w, h.errs, res)
}

func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	respondResult(w, h.errs, h.queryHandler.Categories(r.Context()))
}

func parseFilter(r *http.Request) (query.Filter, error) {
	q := r.URL.Query()
	f := query.Filter{
		CategoryID: q.Get("category"),
		Query:      q.Get("q"),
	}
	var err error
	if f.FeaturedOnly, err = parseFlag(q.Get("featured")); err != nil {
		return f, apperr.BadRequest("invalid featured parameter", err)
	}
	if f.InStockOnly, err = parseFlag(q.Get("in_stock")); err != nil {
		return f, apperr.BadRequest("invalid in_stock parameter", err)
	}
	return f, nil
}

func parseFlag(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

// Navigation Handlers

func (h *Handlers) GetNavigation(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, navigation.All())
}

// ResolveNavigation maps a view name to its path; unknown names resolve to "/"
func (h *Handlers) ResolveNavigation(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	respondJSON(w, http.StatusOK, map[string]string{
		"name": name,
		"path": navigation.Resolve(name),
	})
}
