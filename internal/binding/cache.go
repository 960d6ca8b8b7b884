// Package binding provides read-through bindings over remote data. A binding
// serves a cached value while it is fresh, coalesces concurrent fetches of the
// same key and abandons a fetch once nobody is waiting for it.
package binding

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/example/storefront/internal/logger"
)

const (
	DefaultStaleTime  = 30 * time.Second
	DefaultMaxEntries = 10000
)

// Result is what a view reads from a binding. On failure Data holds the
// default the caller supplied and Err the cause.
type Result[T any] struct {
	Data      T
	IsLoading bool
	Err       error
	FetchedAt time.Time
}

// Tier is an optional second-level cache shared between replicas
type Tier interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}

type Options struct {
	StaleTime time.Duration
	// MaxEntries bounds the number of cached keys. Stale entries are dropped
	// first, then the oldest.
	MaxEntries int
	Tier       Tier
}

type entry struct {
	value     any
	fetchedAt time.Time
}

type flight struct {
	fn      func() (any, error)
	cancel  context.CancelFunc
	waiters int
	stale   bool
}

type fetched struct {
	value any
	at    time.Time
}

// Cache is safe for concurrent use
type Cache struct {
	staleTime  time.Duration
	maxEntries int
	tier       Tier
	group      singleflight.Group
	tracer     trace.Tracer
	log        *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]entry
	flights map[string]*flight
}

func New(opts Options) *Cache {
	if opts.StaleTime <= 0 {
		opts.StaleTime = DefaultStaleTime
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	return &Cache{
		staleTime:  opts.StaleTime,
		maxEntries: opts.MaxEntries,
		tier:       opts.Tier,
		tracer:     otel.Tracer("storefront"),
		log:        logger.Named("binding"),
		now:        time.Now,
		entries:    make(map[string]entry),
		flights:    make(map[string]*flight),
	}
}

// Query reads key through the cache, calling fetch on a miss. Concurrent
// callers of the same key share one fetch. If ctx ends first the caller
// leaves with ctx.Err(); the fetch is cancelled once its last caller leaves.
func Query[T any](ctx context.Context, c *Cache, key string, fetch func(context.Context) (T, error), def T) Result[T] {
	v, at, err := c.load(ctx, key, func(ctx context.Context) (any, error) {
		return fetchThroughTier(ctx, c, key, fetch)
	})
	if err != nil {
		return Result[T]{Data: def, Err: err}
	}
	data, ok := v.(T)
	if !ok {
		return Result[T]{Data: def, Err: fmt.Errorf("binding: key %q holds %T", key, v)}
	}
	return Result[T]{Data: data, FetchedAt: at}
}

// Collection is Query for lists. The default is an empty slice and a nil
// slice from a successful fetch is returned as empty.
func Collection[T any](ctx context.Context, c *Cache, key string, fetch func(context.Context) ([]T, error)) Result[[]T] {
	res := Query(ctx, c, key, func(ctx context.Context) ([]T, error) {
		items, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []T{}
		}
		return items, nil
	}, []T{})
	if res.Data == nil {
		res.Data = []T{}
	}
	return res
}

// Peek returns the cached value for key without fetching. IsLoading reports
// whether a fetch is in flight.
func Peek[T any](c *Cache, key string, def T) Result[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, loading := c.flights[key]
	e, ok := c.entries[key]
	if !ok {
		return Result[T]{Data: def, IsLoading: loading}
	}
	data, ok := e.value.(T)
	if !ok {
		return Result[T]{Data: def, IsLoading: loading}
	}
	return Result[T]{Data: data, IsLoading: loading, FetchedAt: e.fetchedAt}
}

// Loading reports whether a fetch for key is in flight
func (c *Cache) Loading(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.flights[key]
	return ok
}

// Invalidate drops the given keys. A fetch already in flight for one of them
// still answers its callers but is not cached.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	c.mu.Lock()
	for _, key := range keys {
		delete(c.entries, key)
		c.detachLocked(key)
	}
	c.mu.Unlock()

	if c.tier == nil {
		return
	}
	for _, key := range keys {
		if err := c.tier.Invalidate(ctx, key); err != nil {
			c.log.Warn("shared cache invalidation failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// InvalidatePrefix drops every key starting with prefix
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) {
	c.mu.Lock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	for key := range c.flights {
		if strings.HasPrefix(key, prefix) {
			c.detachLocked(key)
		}
	}
	c.mu.Unlock()

	if c.tier == nil {
		return
	}
	if err := c.tier.InvalidatePrefix(ctx, prefix); err != nil {
		c.log.Warn("shared cache invalidation failed", zap.String("prefix", prefix), zap.Error(err))
	}
}

func (c *Cache) detachLocked(key string) {
	f, ok := c.flights[key]
	if !ok {
		return
	}
	f.stale = true
	delete(c.flights, key)
	c.group.Forget(key)
}

func (c *Cache) load(ctx context.Context, key string, fetch func(context.Context) (any, error)) (any, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, time.Time{}, err
	}

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if c.fresh(e, c.now()) {
			c.mu.Unlock()
			return e.value, e.fetchedAt, nil
		}
		delete(c.entries, key)
	}
	f, ok := c.flights[key]
	if !ok {
		f = c.newFlight(ctx, key, fetch)
		c.flights[key] = f
	}
	f.waiters++
	ch := c.group.DoChan(key, f.fn)
	c.mu.Unlock()

	select {
	case res := <-ch:
		c.leave(key, f)
		if res.Err != nil {
			return nil, time.Time{}, res.Err
		}
		v := res.Val.(fetched)
		return v.value, v.at, nil
	case <-ctx.Done():
		c.leave(key, f)
		return nil, time.Time{}, ctx.Err()
	}
}

// newFlight prepares a fetch running under a context detached from the
// first caller, so one caller leaving does not fail the others.
func (c *Cache) newFlight(ctx context.Context, key string, fetch func(context.Context) (any, error)) *flight {
	fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f := &flight{cancel: cancel}
	f.fn = func() (any, error) {
		defer cancel()
		return c.run(fctx, key, f, fetch)
	}
	return f
}

func (c *Cache) run(ctx context.Context, key string, f *flight, fetch func(context.Context) (any, error)) (any, error) {
	ctx, span := c.tracer.Start(ctx, "binding.fetch", trace.WithAttributes(attribute.String("binding.key", key)))
	defer span.End()

	value, err := fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.flights[key] == f {
		delete(c.flights, key)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.Debug("fetch failed", zap.String("key", key), zap.Error(err))
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	at := c.now()
	if !f.stale {
		c.entries[key] = entry{value: value, fetchedAt: at}
		c.evictLocked(at)
	}
	return fetched{value: value, at: at}, nil
}

func (c *Cache) fresh(e entry, now time.Time) bool {
	return now.Sub(e.fetchedAt) < c.staleTime
}

// evictLocked keeps entries within maxEntries: stale entries go first, then
// the oldest ones.
func (c *Cache) evictLocked(now time.Time) {
	if len(c.entries) <= c.maxEntries {
		return
	}
	for key, e := range c.entries {
		if !c.fresh(e, now) {
			delete(c.entries, key)
		}
	}
	for len(c.entries) > c.maxEntries {
		var oldest string
		var oldestAt time.Time
		for key, e := range c.entries {
			if oldest == "" || e.fetchedAt.Before(oldestAt) {
				oldest, oldestAt = key, e.fetchedAt
			}
		}
		delete(c.entries, oldest)
	}
}

// Len returns the number of cached entries, fresh or not
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// leave drops one waiter. When the last waiter of a running fetch leaves,
// the fetch is cancelled and forgotten.
func (c *Cache) leave(key string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if c.flights[key] == f {
		delete(c.flights, key)
		c.group.Forget(key)
	}
}

func fetchThroughTier[T any](ctx context.Context, c *Cache, key string, fetch func(context.Context) (T, error)) (T, error) {
	if c.tier != nil {
		raw, ok, err := c.tier.Get(ctx, key)
		if err != nil {
			c.log.Warn("shared cache read failed", zap.String("key", key), zap.Error(err))
		}
		if ok {
			var v T
			if err := json.Unmarshal(raw, &v); err == nil {
				return v, nil
			}
			c.log.Warn("shared cache entry unreadable", zap.String("key", key))
		}
	}

	v, err := fetch(ctx)
	if err != nil {
		return v, err
	}

	if c.tier != nil {
		if raw, err := json.Marshal(v); err == nil {
			if err := c.tier.Set(ctx, key, raw, c.staleTime); err != nil {
				c.log.Warn("shared cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return v, nil
}
