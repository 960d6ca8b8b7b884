package store

import "context"

// CartStore persists cart snapshots keyed by cart id
type CartStore interface {
	// Load returns the snapshot for cartID; ok is false when none exists
	Load(ctx context.Context, cartID string) (snapshot *CartSnapshot, ok bool, err error)
	Save(ctx context.Context, snapshot *CartSnapshot) error
	Delete(ctx context.Context, cartID string) error
}

// SessionStore persists session records keyed by session id
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*SessionRecord, error)
	Set(ctx context.Context, record *SessionRecord) error
	Delete(ctx context.Context, sessionID string) error
}
