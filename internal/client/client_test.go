package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/readmodel"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, 5*time.Second)
}

// ============================================
// decodeCollection Tests
// ============================================

func TestDecodeCollection(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"bare array", `[{"id":"1"},{"id":"2"}]`, []string{"1", "2"}},
		{"envelope", `{"data":[{"id":"3"}],"total":1,"page":1,"per_page":20}`, []string{"3"}},
		{"envelope without data", `{"total":0}`, []string{}},
		{"empty array", `[]`, []string{}},
		{"null", `null`, []string{}},
		{"empty body", ``, []string{}},
		{"whitespace", "  \n[{\"id\":\"4\"}]", []string{"4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := decodeCollection[readmodel.Category]([]byte(tt.body))
			require.NoError(t, err)
			require.NotNil(t, items)
			ids := []string{}
			for _, item := range items {
				ids = append(ids, item.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestDecodeCollection_Invalid(t *testing.T) {
	_, err := decodeCollection[readmodel.Category]([]byte(`"nope"`))
	assert.Error(t, err)

	_, err = decodeCollection[readmodel.Category]([]byte(`[{"id":`))
	assert.Error(t, err)
}

// ============================================
// Products Tests
// ============================================

func TestClient_ListProducts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/products", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":[{"id":"p1","name":"Mug","price":"12.50","stock_quantity":3,"is_featured":true}]}`))
	})

	products, err := c.ListProducts(context.Background())

	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Mug", products[0].Name)
	assert.True(t, products[0].Price.Equal(decimal.RequireFromString("12.50")))
	assert.True(t, products[0].InStock())
	assert.True(t, products[0].IsFeatured)
}

func TestClient_FeaturedProducts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/featured", r.URL.Path)
		_, _ = w.Write([]byte(`[]`))
	})

	products, err := c.FeaturedProducts(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)
}

func TestClient_GetProduct(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/p1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"p1","name":"Mug","price":"12.50"}`))
	})

	p, err := c.GetProduct(context.Background(), "p1")

	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
}

func TestClient_GetProduct_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	})

	p, err := c.GetProduct(context.Background(), "missing")

	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrNotFound)
	var clientErr *Error
	require.True(t, errors.As(err, &clientErr))
	assert.Equal(t, http.StatusNotFound, clientErr.Status)
}

// ============================================
// Errors Tests
// ============================================

func TestClient_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance"))
	})

	_, err := c.ListCategories(context.Background())

	var clientErr *Error
	require.True(t, errors.As(err, &clientErr))
	assert.Equal(t, http.StatusServiceUnavailable, clientErr.Status)
	assert.Equal(t, "maintenance", clientErr.Body)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "status=503")
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	c := New(srv.URL, time.Second)

	_, err := c.ListCategories(context.Background())

	var clientErr *Error
	require.True(t, errors.As(err, &clientErr))
	assert.Equal(t, 0, clientErr.Status)
	assert.Contains(t, err.Error(), "/categories")
}

func TestClient_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":`))
	})

	_, err := c.ListCategories(context.Background())

	assert.Error(t, err)
}

func TestClient_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.ListProducts(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// ============================================
// Orders / Auth Tests
// ============================================

func TestClient_ListOrders_ForwardsToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":[{"id":"o1","total":"20","status":"pending"}]}`))
	})

	orders, err := c.ListOrders(context.Background(), "tok")

	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, readmodel.OrderStatusPending, orders[0].Status)
}

func TestClient_ListAllOrders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/orders", r.URL.Path)
		_, _ = w.Write([]byte(`[]`))
	})

	orders, err := c.ListAllOrders(context.Background(), "admin-tok")

	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestClient_CreateOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req CreateOrderRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "25", req.Total)
		require.Len(t, req.Items, 1)
		assert.Equal(t, "p1", req.Items[0].ProductID)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"o1","total":"25","status":"pending"}`))
	})

	o, err := c.CreateOrder(context.Background(), "tok", CreateOrderRequest{
		Items: []readmodel.OrderItem{{ProductID: "p1", Quantity: 1, Price: decimal.NewFromInt(25)}},
		Total: "25",
	})

	require.NoError(t, err)
	assert.Equal(t, "o1", o.ID)
}

func TestClient_Logout(t *testing.T) {
	var called bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, "/auth/logout", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.Logout(context.Background(), "tok"))
	assert.True(t, called)
}
