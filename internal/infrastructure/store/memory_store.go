package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryCartStore is an in-memory CartStore. Snapshots are copied on the way
// in and out so callers never share the backing buffer.
type MemoryCartStore struct {
	mu    sync.RWMutex
	carts map[string]CartSnapshot
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{carts: make(map[string]CartSnapshot)}
}

func (s *MemoryCartStore) Load(ctx context.Context, cartID string) (*CartSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.carts[cartID]
	if !ok {
		return nil, false, nil
	}
	snap.State = append(json.RawMessage(nil), snap.State...)
	return &snap, true, nil
}

func (s *MemoryCartStore) Save(ctx context.Context, snapshot *CartSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := *snapshot
	snap.State = append(json.RawMessage(nil), snapshot.State...)
	s.carts[snapshot.CartID] = snap
	return nil
}

func (s *MemoryCartStore) Delete(ctx context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, cartID)
	return nil
}

// MemorySessionStore is an in-memory SessionStore that honors ExpiresAt
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]SessionRecord
	now      func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]SessionRecord),
		now:      time.Now,
	}
}

func (s *MemorySessionStore) Get(ctx context.Context, sessionID string) (*SessionRecord, error) {
	s.mu.RLock()
	rec, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	if rec.Expired(s.now()) {
		_ = s.Delete(ctx, sessionID)
		return nil, ErrSessionNotFound
	}
	return &rec, nil
}

func (s *MemorySessionStore) Set(ctx context.Context, record *SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[record.ID] = *record
	return nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
