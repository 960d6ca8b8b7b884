package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/infrastructure/store"
	"github.com/example/storefront/internal/infrastructure/store/mocks"
)

type recordingPublisher struct {
	mu       sync.Mutex
	keys     []string
	messages []Message
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.messages = append(p.messages, event.(Message))
	return p.err
}

func newTestCartService() (*Service, *mocks.MockCartStore, *recordingPublisher) {
	cartStore := mocks.NewMockCartStore()
	publisher := &recordingPublisher{}
	return NewService(cartStore, publisher), cartStore, publisher
}

func TestUserCartID(t *testing.T) {
	assert.Equal(t, "user:42", UserCartID("42"))
	assert.True(t, IsUserCartID("user:42"))
	assert.False(t, IsUserCartID("2f1c7c5e-3d7a-4b1e-9a59-1f0f6b1e0c11"))
}

// ============================================
// Get Tests
// ============================================

func TestService_Get_MissingIsEmpty(t *testing.T) {
	service, cartStore, _ := newTestCartService()

	c, err := service.Get(context.Background(), "cart-1")

	require.NoError(t, err)
	assert.Equal(t, "cart-1", c.ID)
	assert.True(t, c.IsEmpty())
	assert.Equal(t, 0, cartStore.SaveCount())
}

func TestService_Get_EmptyID(t *testing.T) {
	service, _, _ := newTestCartService()

	_, err := service.Get(context.Background(), "")

	assert.ErrorIs(t, err, ErrInvalidCartID)
}

func TestService_Get_LoadError(t *testing.T) {
	service, cartStore, _ := newTestCartService()
	cartStore.LoadErr = errors.New("redis down")

	_, err := service.Get(context.Background(), "cart-1")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
}

func TestService_Get_CorruptSnapshot(t *testing.T) {
	service, cartStore, _ := newTestCartService()
	cartStore.SetData(store.CartSnapshot{CartID: "cart-1", State: []byte("not json")})

	_, err := service.Get(context.Background(), "cart-1")

	assert.Error(t, err)
}

// ============================================
// AddOrUpdate Tests
// ============================================

func TestService_AddOrUpdate_Success(t *testing.T) {
	service, cartStore, publisher := newTestCartService()
	ctx := context.Background()

	c, err := service.AddOrUpdate(ctx, "cart-1", product("1", 100), 2)

	require.NoError(t, err)
	assert.True(t, c.Total().Equal(decimal.NewFromInt(200)))
	assert.Equal(t, 1, cartStore.SaveCount())

	require.Len(t, publisher.messages, 1)
	assert.Equal(t, "cart-1", publisher.keys[0])
	assert.Equal(t, EventItemSet, publisher.messages[0].EventType)
	assert.NotEmpty(t, publisher.messages[0].ID)
	data := publisher.messages[0].Data.(ItemSet)
	assert.Equal(t, "1", data.ProductID)
	assert.Equal(t, 2, data.Quantity)
	assert.Equal(t, "100", data.Price)

	reloaded, err := service.Get(ctx, "cart-1")
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Quantity("1"))
}

func TestService_AddOrUpdate_NoopSkipsSaveAndEvent(t *testing.T) {
	service, cartStore, publisher := newTestCartService()
	ctx := context.Background()

	_, err := service.AddOrUpdate(ctx, "cart-1", product("1", 100), 2)
	require.NoError(t, err)
	_, err = service.AddOrUpdate(ctx, "cart-1", product("1", 100), 2)
	require.NoError(t, err)

	assert.Equal(t, 1, cartStore.SaveCount())
	assert.Len(t, publisher.messages, 1)
}

func TestService_AddOrUpdate_EmptyProductID(t *testing.T) {
	service, cartStore, _ := newTestCartService()

	_, err := service.AddOrUpdate(context.Background(), "cart-1", product("", 100), 1)

	assert.ErrorIs(t, err, ErrInvalidProduct)
	assert.Empty(t, cartStore.LoadCalls)
}

func TestService_AddOrUpdate_ZeroQuantityRemoves(t *testing.T) {
	service, _, publisher := newTestCartService()
	ctx := context.Background()
	_, err := service.AddOrUpdate(ctx, "cart-1", product("1", 100), 2)
	require.NoError(t, err)

	c, err := service.AddOrUpdate(ctx, "cart-1", product("1", 100), 0)

	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.Equal(t, EventItemRemoved, publisher.messages[1].EventType)
}

func TestService_AddOrUpdate_SaveError(t *testing.T) {
	service, cartStore, publisher := newTestCartService()
	cartStore.SaveErr = errors.New("disk full")

	_, err := service.AddOrUpdate(context.Background(), "cart-1", product("1", 100), 2)

	assert.Error(t, err)
	assert.Empty(t, publisher.messages)
}

func TestService_AddOrUpdate_PublishErrorIgnored(t *testing.T) {
	service, cartStore, publisher := newTestCartService()
	publisher.err = errors.New("broker down")

	c, err := service.AddOrUpdate(context.Background(), "cart-1", product("1", 100), 2)

	require.NoError(t, err)
	assert.Equal(t, 2, c.Quantity("1"))
	assert.Equal(t, 1, cartStore.SaveCount())
}

func TestService_NilPublisher(t *testing.T) {
	service := NewService(mocks.NewMockCartStore(), nil)

	_, err := service.AddOrUpdate(context.Background(), "cart-1", product("1", 100), 2)

	assert.NoError(t, err)
}

// ============================================
// UpdateQuantity / Remove / Clear Tests
// ============================================

func TestService_UpdateQuantity(t *testing.T) {
	service, _, publisher := newTestCartService()
	ctx := context.Background()
	_, err := service.AddOrUpdate(ctx, "cart-1", product("1", 50), 2)
	require.NoError(t, err)

	c, err := service.UpdateQuantity(ctx, "cart-1", "1", 5)

	require.NoError(t, err)
	assert.True(t, c.Total().Equal(decimal.NewFromInt(250)))
	assert.Equal(t, EventQuantityUpdated, publisher.messages[1].EventType)
}

func TestService_UpdateQuantity_AbsentIsNoop(t *testing.T) {
	service, cartStore, publisher := newTestCartService()

	c, err := service.UpdateQuantity(context.Background(), "cart-1", "1", 5)

	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.Equal(t, 0, cartStore.SaveCount())
	assert.Empty(t, publisher.messages)
}

func TestService_Remove_AbsentIsNoop(t *testing.T) {
	service, cartStore, _ := newTestCartService()
	ctx := context.Background()
	_, err := service.AddOrUpdate(ctx, "cart-1", product("1", 100), 2)
	require.NoError(t, err)

	c, err := service.Remove(ctx, "cart-1", "99")

	require.NoError(t, err)
	assert.Equal(t, 2, c.Quantity("1"))
	assert.Equal(t, 1, cartStore.SaveCount())
}

func TestService_Clear(t *testing.T) {
	service, _, publisher := newTestCartService()
	ctx := context.Background()
	_, err := service.AddOrUpdate(ctx, "cart-1", product("1", 100), 2)
	require.NoError(t, err)

	c, err := service.Clear(ctx, "cart-1")

	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	require.Len(t, publisher.messages, 2)
	assert.Equal(t, EventCartCleared, publisher.messages[1].EventType)
	assert.Equal(t, "200", publisher.messages[1].Data.(CartCleared).Total)
}

func TestService_CartsAreIsolated(t *testing.T) {
	service, _, _ := newTestCartService()
	ctx := context.Background()

	_, err := service.AddOrUpdate(ctx, "cart-a", product("1", 100), 2)
	require.NoError(t, err)

	other, err := service.Get(ctx, "cart-b")
	require.NoError(t, err)
	assert.True(t, other.IsEmpty())
}

// ============================================
// Concurrency Tests
// ============================================

func TestService_ConcurrentMutationsAreSerialized(t *testing.T) {
	service, _, _ := newTestCartService()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, err := service.AddOrUpdate(ctx, "cart-1", product(string(rune('a'+id)), 1), 1)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	c, err := service.Get(ctx, "cart-1")
	require.NoError(t, err)
	assert.Len(t, c.Items(), 20)

	service.mu.Lock()
	defer service.mu.Unlock()
	assert.Empty(t, service.locks)
}

// ============================================
// Merge Tests
// ============================================

func TestService_Merge(t *testing.T) {
	service, cartStore, publisher := newTestCartService()
	ctx := context.Background()
	_, err := service.AddOrUpdate(ctx, "anon", product("1", 10), 2)
	require.NoError(t, err)
	_, err = service.AddOrUpdate(ctx, "anon", product("2", 5), 1)
	require.NoError(t, err)
	_, err = service.AddOrUpdate(ctx, "user:u1", product("1", 10), 7)
	require.NoError(t, err)

	merged, err := service.Merge(ctx, "anon", "user:u1")

	require.NoError(t, err)
	assert.Equal(t, 7, merged.Quantity("1"))
	assert.Equal(t, 1, merged.Quantity("2"))
	_, ok := cartStore.GetData("anon")
	assert.False(t, ok)
	assert.Equal(t, EventCartsMerged, publisher.messages[len(publisher.messages)-1].EventType)
}

func TestService_Merge_EmptySource(t *testing.T) {
	service, cartStore, _ := newTestCartService()
	ctx := context.Background()
	_, err := service.AddOrUpdate(ctx, "user:u1", product("1", 10), 1)
	require.NoError(t, err)

	merged, err := service.Merge(ctx, "anon", "user:u1")

	require.NoError(t, err)
	assert.Equal(t, 1, merged.Quantity("1"))
	assert.Empty(t, cartStore.DeleteCalls)
}

func TestService_Merge_SameCart(t *testing.T) {
	service, _, _ := newTestCartService()

	_, err := service.Merge(context.Background(), "anon", "anon")

	assert.NoError(t, err)
}

func TestService_Merge_UserCartSourceRejected(t *testing.T) {
	service, cartStore, _ := newTestCartService()
	ctx := context.Background()
	_, err := service.AddOrUpdate(ctx, "user:a1", product("1", 10), 2)
	require.NoError(t, err)

	_, err = service.Merge(ctx, "user:a1", "user:u1")

	assert.ErrorIs(t, err, ErrMergeSource)
	assert.Empty(t, cartStore.DeleteCalls)
	victim, err := service.Get(ctx, "user:a1")
	require.NoError(t, err)
	assert.Equal(t, 2, victim.Quantity("1"))
	attacker, err := service.Get(ctx, "user:u1")
	require.NoError(t, err)
	assert.True(t, attacker.IsEmpty())
}

func TestService_Merge_OppositeDirectionsDoNotDeadlock(t *testing.T) {
	service, _, _ := newTestCartService()
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			_, err := service.AddOrUpdate(ctx, "anon-a", product("1", 10), 1)
			assert.NoError(t, err)
			_, err = service.AddOrUpdate(ctx, "anon-b", product("2", 10), 1)
			assert.NoError(t, err)

			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, err := service.Merge(ctx, "anon-a", "anon-b")
				assert.NoError(t, err)
			}()
			go func() {
				defer wg.Done()
				_, err := service.Merge(ctx, "anon-b", "anon-a")
				assert.NoError(t, err)
			}()
			wg.Wait()
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("opposite merges did not finish")
	}

	service.mu.Lock()
	defer service.mu.Unlock()
	assert.Empty(t, service.locks)
}

func TestService_Merge_MissingID(t *testing.T) {
	service, _, _ := newTestCartService()

	_, err := service.Merge(context.Background(), "", "user:u1")

	assert.ErrorIs(t, err, ErrInvalidCartID)
}
