package store

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrSessionNotFound = errors.New("session not found")

// CartSnapshot is the persisted state of one cart
type CartSnapshot struct {
	CartID    string          `json:"cart_id"`
	State     json.RawMessage `json:"state"` // Serialized cart
	UpdatedAt time.Time       `json:"updated_at"`
}

// SessionRecord holds the flags of an authenticated browsing session
type SessionRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the record is past its expiry at now
func (r SessionRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}
