package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient parses redisURL and verifies the connection
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// RedisCartStore keeps each cart as a JSON blob with a sliding TTL
type RedisCartStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisCartStore(client redis.Cmdable, ttl time.Duration) *RedisCartStore {
	return &RedisCartStore{client: client, ttl: ttl}
}

func CartKey(cartID string) string {
	return "storefront:cart:" + cartID
}

func (s *RedisCartStore) Load(ctx context.Context, cartID string) (*CartSnapshot, bool, error) {
	data, err := s.client.Get(ctx, CartKey(cartID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var snap CartSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cart %s: %w", cartID, err)
	}
	return &snap, true, nil
}

func (s *RedisCartStore) Save(ctx context.Context, snapshot *CartSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, CartKey(snapshot.CartID), data, s.ttl).Err()
}

func (s *RedisCartStore) Delete(ctx context.Context, cartID string) error {
	return s.client.Del(ctx, CartKey(cartID)).Err()
}

// RedisSessionStore keeps session records under session:<id>, expiring with
// the record itself.
type RedisSessionStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisSessionStore(client redis.Cmdable, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func SessionKey(sessionID string) string {
	return "storefront:session:" + sessionID
}

func (s *RedisSessionStore) Get(ctx context.Context, sessionID string) (*SessionRecord, error) {
	data, err := s.client.Get(ctx, SessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &rec, nil
}

func (s *RedisSessionStore) Set(ctx context.Context, record *SessionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	ttl := s.ttl
	if !record.ExpiresAt.IsZero() {
		if until := time.Until(record.ExpiresAt); until < ttl || ttl == 0 {
			ttl = until
		}
	}
	if ttl <= 0 {
		return s.Delete(ctx, record.ID)
	}
	return s.client.Set(ctx, SessionKey(record.ID), data, ttl).Err()
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, SessionKey(sessionID)).Err()
}
