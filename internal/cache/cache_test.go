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
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewCacheWithClient(client), mr
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "postline:jobs:status=failed:cursor=abc", NewKey("jobs", "status=failed", "cursor=abc").String())
	assert.Equal(t, "postline:job-stats", NewKey("job-stats").String())
}

func TestSetAndGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	key := NewKey("jobs", "page-1")
	setValue := map[string]string{"hello": "world"}
	err := c.Set(ctx, key, setValue, 10*time.Minute)
	require.NoError(t, err)

	var getValue map[string]string
	hit, err := c.Get(ctx, key, &getValue)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, setValue, getValue)
}

func TestGetMiss(t *testing.T) {
	c, _ := newTestCache(t)

	var out map[string]string
	hit, err := c.Get(context.Background(), NewKey("jobs", "absent"), &out)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Empty(t, out)
}

func TestDelete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	key := NewKey("job", "J1")
	require.NoError(t, c.Set(ctx, key, "payload", time.Minute))
	require.NoError(t, c.Delete(ctx, key))

	var out string
	hit, err := c.Get(ctx, key, &out)
	require.NoError(t, err)
	assert.False(t, hit)

	// Deleting an absent key is a no-op
	assert.NoError(t, c.Delete(ctx, NewKey("job", "absent")))
}

func TestInvalidateNamespace(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, NewKey("jobs", "page-1"), "one", time.Minute))
	require.NoError(t, c.Set(ctx, NewKey("jobs", "page-2"), "two", time.Minute))
	require.NoError(t, c.Set(ctx, NewKey("job", "J2"), "detail", time.Minute))

	require.NoError(t, c.InvalidateNamespace(ctx, "jobs"))

	var out string
	hit, err := c.Get(ctx, NewKey("jobs", "page-1"), &out)
	require.NoError(t, err)
	assert.False(t, hit)

	hit, err = c.Get(ctx, NewKey("jobs", "page-2"), &out)
	require.NoError(t, err)
	assert.False(t, hit)

	// Entries in other namespaces are untouched
	hit, err = c.Get(ctx, NewKey("job", "J2"), &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "detail", out)
}

func TestInvalidateNamespaceIdempotent(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, NewKey("jobs", "page-1"), "one", time.Minute))
	require.NoError(t, c.InvalidateNamespace(ctx, "jobs"))
	// Second invalidation of an already-empty namespace must not fail
	assert.NoError(t, c.InvalidateNamespace(ctx, "jobs"))
	// Nor one for a namespace that never existed
	assert.NoError(t, c.InvalidateNamespace(ctx, "never-used"))
}

func TestInvalidateNamespacePropagatesRedisErrors(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewCacheWithClient(client)

	mock.ExpectSMembers(indexKey("jobs")).SetErr(assert.AnError)
	err := c.InvalidateNamespace(context.Background(), "jobs")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
