package mocks

import (
	"context"
	"sync"

	"github.com/example/storefront/internal/infrastructure/store"
)

// MockSessionStore is a mock implementation of store.SessionStore for testing
type MockSessionStore struct {
	mu       sync.RWMutex
	sessions map[string]store.SessionRecord

	SetCalls    []store.SessionRecord
	DeleteCalls []string

	GetErr    error
	SetErr    error
	DeleteErr error
}

// NewMockSessionStore creates a new MockSessionStore
func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{
		sessions:    make(map[string]store.SessionRecord),
		SetCalls:    make([]store.SessionRecord, 0),
		DeleteCalls: make([]string, 0),
	}
}

func (m *MockSessionStore) Get(ctx context.Context, sessionID string) (*store.SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}
	rec, ok := m.sessions[sessionID]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	return &rec, nil
}

func (m *MockSessionStore) Set(ctx context.Context, record *store.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SetCalls = append(m.SetCalls, *record)
	if m.SetErr != nil {
		return m.SetErr
	}
	m.sessions[record.ID] = *record
	return nil
}

func (m *MockSessionStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls = append(m.DeleteCalls, sessionID)
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.sessions, sessionID)
	return nil
}

// Has reports whether a session is stored (without recording the call)
func (m *MockSessionStore) Has(sessionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[sessionID]
	return ok
}
