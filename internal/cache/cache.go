/*
Copyright 2025 Postline Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/postlinehq/postline/config"
	redis_db "github.com/postlinehq/postline/internal/redis-db"
	"github.com/redis/go-redis/v9"
)

// Key is a structured cache address: a namespace plus an ordered list of
// parts. Invalidation is exact, by namespace membership, never by string
// prefix matching. Every query type owns one documented constructor for its
// keys so two callers can never disagree on the address of the same data.
type Key struct {
	Namespace string
	Parts     []string
}

// NewKey builds a structured key. Parts may be empty for singleton entries
// such as aggregate stats.
func NewKey(namespace string, parts ...string) Key {
	return Key{Namespace: namespace, Parts: parts}
}

// String renders the Redis-level address of the key.
func (k Key) String() string {
	if len(k.Parts) == 0 {
		return fmt.Sprintf("postline:%s", k.Namespace)
	}
	return fmt.Sprintf("postline:%s:%s", k.Namespace, strings.Join(k.Parts, ":"))
}

// indexKey is where the member keys of a namespace are tracked, enabling
// exact namespace-wide invalidation.
func indexKey(namespace string) string {
	return fmt.Sprintf("postline:ns-index:%s", namespace)
}

// Cache is the query cache shared by the reconciliation core. It is the only
// shared mutable resource in the system; all writes go through Set and the two
// invalidation entry points.
type Cache interface {
	// Set stores a value under a structured key with the given TTL and
	// registers the key in its namespace index.
	Set(ctx context.Context, key Key, value interface{}, ttl time.Duration) error

	// Get retrieves a value into data. It reports whether the key was present;
	// a miss is not an error.
	Get(ctx context.Context, key Key, data interface{}) (bool, error)

	// Delete removes a single entry. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key Key) error

	// InvalidateNamespace removes every entry registered under the namespace.
	// Idempotent and safe under concurrent invalidation of the same namespace.
	InvalidateNamespace(ctx context.Context, namespace string) error
}

// RedisCache implements Cache on Redis with a local TinyLFU tier for hot reads.
type RedisCache struct {
	cache  *cache.Cache
	client redis.UniversalClient
}

// NewCache creates a new RedisCache from the loaded configuration.
func NewCache() (Cache, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	client, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", cfg.Redis.Dns)}, cfg.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}
	return NewCacheWithClient(client.Client()), nil
}

// cacheSize defines the size of the local cache (in number of entries) used alongside Redis.
const cacheSize = 128000

// NewCacheWithClient wraps an existing Redis client. Used by tests to inject
// miniredis or a mock client.
func NewCacheWithClient(client redis.UniversalClient) *RedisCache {
	c := cache.New(&cache.Options{
		Redis:      client,
		LocalCache: cache.NewTinyLFU(cacheSize, 1*time.Minute),
	})
	return &RedisCache{cache: c, client: client}
}

func (r *RedisCache) Set(ctx context.Context, key Key, data interface{}, ttl time.Duration) error {
	if err := r.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   key.String(),
		Value: data,
		TTL:   ttl,
	}); err != nil {
		return err
	}

	// Track the member in its namespace index. The index outlives its members
	// by the same TTL margin; stale index entries are harmless because
	// invalidation deletes are idempotent.
	if err := r.client.SAdd(ctx, indexKey(key.Namespace), key.String()).Err(); err != nil {
		return err
	}
	if ttl > 0 {
		return r.client.Expire(ctx, indexKey(key.Namespace), 2*ttl).Err()
	}
	return nil
}

func (r *RedisCache) Get(ctx context.Context, key Key, data interface{}) (bool, error) {
	err := r.cache.Get(ctx, key.String(), data)
	if errors.Is(err, cache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *RedisCache) Delete(ctx context.Context, key Key) error {
	err := r.cache.Delete(ctx, key.String())
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}

func (r *RedisCache) InvalidateNamespace(ctx context.Context, namespace string) error {
	members, err := r.client.SMembers(ctx, indexKey(namespace)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	for _, member := range members {
		if err := r.cache.Delete(ctx, member); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			return err
		}
	}

	return r.client.Del(ctx, indexKey(namespace)).Err()
}
