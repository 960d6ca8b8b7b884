// Package client talks to the commerce backend's REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/storefront/internal/readmodel"
)

var ErrNotFound = errors.New("not found")

const maxErrorBody = 4 << 10

// Error is a failed backend call. Status is 0 for transport failures.
type Error struct {
	Method string
	Path   string
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("backend %s %s: %v", e.Method, e.Path, e.Err)
	}
	return fmt.Sprintf("backend %s %s: status=%d body=%s", e.Method, e.Path, e.Status, e.Body)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CreateOrderRequest is the checkout payload
type CreateOrderRequest struct {
	Items []readmodel.OrderItem `json:"items"`
	Total string                `json:"total"`
}

type Client struct {
	baseURL string
	http    *http.Client
	tracer  trace.Tracer
}

func New(baseURL string, timeout time.Duration) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout})
}

// NewWithHTTPClient uses an existing http.Client
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{
		baseURL: baseURL,
		http:    hc,
		tracer:  otel.Tracer("storefront"),
	}
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "backend "+method+" "+path, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	data, err := c.roundTrip(ctx, method, path, token, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("failed to decode %s %s: %w", method, path, err)
		}
	}
	return data, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path, token string, in any) ([]byte, error) {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		e := &Error{Method: method, Path: path, Status: resp.StatusCode, Body: string(raw)}
		if resp.StatusCode == http.StatusNotFound {
			e.Err = ErrNotFound
		}
		return nil, e
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Method: method, Path: path, Status: resp.StatusCode, Err: err}
	}
	return data, nil
}

// decodeCollection accepts a bare JSON array or an Envelope and returns the
// items, never nil.
func decodeCollection[T any](data []byte) ([]T, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []T{}, nil
	}

	if data[0] == '[' {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		if items == nil {
			items = []T{}
		}
		return items, nil
	}

	var env readmodel.Envelope[T]
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return env.Items(), nil
}

func list[T any](ctx context.Context, c *Client, path, token string) ([]T, error) {
	data, err := c.do(ctx, http.MethodGet, path, token, nil, nil)
	if err != nil {
		return nil, err
	}
	items, err := decodeCollection[T](data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return items, nil
}

func (c *Client) ListProducts(ctx context.Context) ([]readmodel.Product, error) {
	return list[readmodel.Product](ctx, c, "/products", "")
}

func (c *Client) FeaturedProducts(ctx context.Context) ([]readmodel.Product, error) {
	return list[readmodel.Product](ctx, c, "/products/featured", "")
}

// GetProduct returns ErrNotFound (wrapped in *Error) for unknown ids
func (c *Client) GetProduct(ctx context.Context, id string) (*readmodel.Product, error) {
	var p readmodel.Product
	if _, err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id), "", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]readmodel.Category, error) {
	return list[readmodel.Category](ctx, c, "/categories", "")
}

// ListOrders returns the orders of the token's user
func (c *Client) ListOrders(ctx context.Context, token string) ([]readmodel.Order, error) {
	return list[readmodel.Order](ctx, c, "/orders", token)
}

// ListAllOrders returns every order; the backend requires an admin token
func (c *Client) ListAllOrders(ctx context.Context, token string) ([]readmodel.Order, error) {
	return list[readmodel.Order](ctx, c, "/admin/orders", token)
}

func (c *Client) CreateOrder(ctx context.Context, token string, req CreateOrderRequest) (*readmodel.Order, error) {
	var o readmodel.Order
	if _, err := c.do(ctx, http.MethodPost, "/orders", token, req, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// Logout revokes token at the identity service
func (c *Client) Logout(ctx context.Context, token string) error {
	_, err := c.do(ctx, http.MethodPost, "/auth/logout", token, nil, nil)
	return err
}
