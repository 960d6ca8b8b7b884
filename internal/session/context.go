package session

import (
	"context"
	"time"
)

type Role string

const (
	RoleNone     Role = ""
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// ParseRole maps a token role claim onto a Role. Any non-empty role other
// than admin is a customer.
func ParseRole(s string) Role {
	switch s {
	case "":
		return RoleNone
	case string(RoleAdmin):
		return RoleAdmin
	default:
		return RoleCustomer
	}
}

// Context is the explicit session state handed to the guard and to the
// bindings. The zero value is the anonymous session.
type Context struct {
	IsAuthenticated bool      `json:"is_authenticated"`
	Role            Role      `json:"role,omitempty"`
	UserID          string    `json:"user_id,omitempty"`
	Email           string    `json:"email,omitempty"`
	ExpiresAt       time.Time `json:"expires_at,omitempty"`
	SessionID       string    `json:"-"`
	Token           string    `json:"-"`
}

// Anonymous returns the cleared session
func Anonymous() Context {
	return Context{}
}

func (c Context) IsAdmin() bool {
	return c.IsAuthenticated && c.Role == RoleAdmin
}

// Resolution is a session lookup that may not have completed yet
type Resolution struct {
	Context  Context
	Resolved bool
}

func Resolved(c Context) Resolution {
	return Resolution{Context: c, Resolved: true}
}

func Unresolved() Resolution {
	return Resolution{}
}

type ctxKey struct{}

// NewContext attaches r to ctx
func NewContext(ctx context.Context, r Resolution) context.Context {
	return context.WithValue(ctx, ctxKey{}, r)
}

// FromContext returns the resolution attached to ctx. Requests that never
// went through session resolution are resolved as anonymous.
func FromContext(ctx context.Context) Resolution {
	if r, ok := ctx.Value(ctxKey{}).(Resolution); ok {
		return r
	}
	return Resolved(Anonymous())
}
