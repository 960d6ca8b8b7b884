package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "storefront:cache:"

// RedisTier is a shared binding cache. Entries live under a per-namespace
// version, so dropping a whole namespace is a single INCR; the old entries
// expire on their own. The namespace of a key is the text before its first
// colon ("orders:42" belongs to "orders").
type RedisTier struct {
	client redis.Cmdable
}

func NewRedisTier(client redis.Cmdable) *RedisTier {
	return &RedisTier{client: client}
}

func namespace(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}

// VersionKey returns the redis key holding the version of key's namespace
func VersionKey(key string) string {
	return keyPrefix + "version:" + namespace(key)
}

// EntryKey returns the redis key of key at the given namespace version
func EntryKey(key string, version int64) string {
	return fmt.Sprintf("%s%s:v%d:%s", keyPrefix, namespace(key), version, key)
}

func (t *RedisTier) version(ctx context.Context, key string) (int64, error) {
	ver, err := t.client.Get(ctx, VersionKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return ver, err
}

func (t *RedisTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ver, err := t.version(ctx, key)
	if err != nil {
		return nil, false, err
	}
	data, err := t.client.Get(ctx, EntryKey(key, ver)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (t *RedisTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ver, err := t.version(ctx, key)
	if err != nil {
		return err
	}
	return t.client.Set(ctx, EntryKey(key, ver), value, ttl).Err()
}

func (t *RedisTier) Invalidate(ctx context.Context, key string) error {
	ver, err := t.version(ctx, key)
	if err != nil {
		return err
	}
	return t.client.Del(ctx, EntryKey(key, ver)).Err()
}

// InvalidatePrefix bumps the version of the prefix's namespace
func (t *RedisTier) InvalidatePrefix(ctx context.Context, prefix string) error {
	if err := t.client.Incr(ctx, VersionKey(prefix)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate %s: %w", namespace(prefix), err)
	}
	return nil
}
