package mocks

import (
	"context"
	"sync"

	"github.com/example/storefront/internal/infrastructure/store"
)

// MockCartStore is a mock implementation of store.CartStore for testing
type MockCartStore struct {
	mu    sync.RWMutex
	carts map[string]store.CartSnapshot

	// For tracking calls in tests
	LoadCalls   []string
	SaveCalls   []store.CartSnapshot
	DeleteCalls []string

	LoadErr   error
	SaveErr   error
	DeleteErr error
}

// NewMockCartStore creates a new MockCartStore
func NewMockCartStore() *MockCartStore {
	return &MockCartStore{
		carts:       make(map[string]store.CartSnapshot),
		LoadCalls:   make([]string, 0),
		SaveCalls:   make([]store.CartSnapshot, 0),
		DeleteCalls: make([]string, 0),
	}
}

// Load returns a stored snapshot
func (m *MockCartStore) Load(ctx context.Context, cartID string) (*store.CartSnapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LoadCalls = append(m.LoadCalls, cartID)
	if m.LoadErr != nil {
		return nil, false, m.LoadErr
	}

	snap, ok := m.carts[cartID]
	if !ok {
		return nil, false, nil
	}
	return &snap, true, nil
}

// Save stores a snapshot
func (m *MockCartStore) Save(ctx context.Context, snapshot *store.CartSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveCalls = append(m.SaveCalls, *snapshot)
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.carts[snapshot.CartID] = *snapshot
	return nil
}

// Delete removes a snapshot
func (m *MockCartStore) Delete(ctx context.Context, cartID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls = append(m.DeleteCalls, cartID)
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.carts, cartID)
	return nil
}

// SetData sets a snapshot directly for testing
func (m *MockCartStore) SetData(snapshot store.CartSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[snapshot.CartID] = snapshot
}

// GetData gets a snapshot directly for testing (without recording the call)
func (m *MockCartStore) GetData(cartID string) (store.CartSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.carts[cartID]
	return snap, ok
}

// SaveCount returns the number of Save calls
func (m *MockCartStore) SaveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.SaveCalls)
}
