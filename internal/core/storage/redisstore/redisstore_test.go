package redisstore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
	"github.com/aevon-lab/reprocessor/internal/core/storage"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestCounter_SetExAndGet(t *testing.T) {
	mr, client := newTestClient(t)
	counter := NewCounter(client)
	ctx := context.Background()

	require.NoError(t, counter.SetEx(ctx, "re2:count:100", 24*time.Hour, "3"))

	v, err := counter.Get(ctx, "re2:count:100")
	require.NoError(t, err)
	assert.Equal(t, "3", v)
	assert.Equal(t, 24*time.Hour, mr.TTL("re2:count:100"))

	mr.FastForward(25 * time.Hour)
	_, err = counter.Get(ctx, "re2:count:100")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCounter_ConcurrentDecrementReachesZeroOnce(t *testing.T) {
	_, client := newTestClient(t)
	counter := NewCounter(client)
	ctx := context.Background()

	require.NoError(t, counter.SetEx(ctx, "re2:count:100", time.Hour, "1"))

	const callers = 50
	var zeros atomic.Int32
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			n, err := counter.Decr(ctx, "re2:count:100")
			if err == nil && n == 0 {
				zeros.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), zeros.Load())

	v, err := counter.Get(ctx, "re2:count:100")
	require.NoError(t, err)
	assert.Equal(t, "-49", v)
}

func TestPayloadCache_RoundTripKeepsLargeIDs(t *testing.T) {
	mr, client := newTestClient(t)
	cache := NewPayloadCache(client)
	ctx := context.Background()

	payload := v1.Payload{"event_id": "e1", "project": int64(1)}
	payload.SetPath(int64(1890123456789012345), "contexts", "reprocessing", "original_issue_id")

	key, err := cache.Store(ctx, payload, time.Minute)
	require.NoError(t, err)
	assert.Regexp(t, `^e:[0-9a-f-]{36}$`, key)
	assert.Equal(t, time.Minute, mr.TTL(key))

	got, err := cache.Get(ctx, key)
	require.NoError(t, err)
	id, ok := v1.AsInt64(got.GetPath("contexts", "reprocessing", "original_issue_id"))
	require.True(t, ok)
	assert.Equal(t, int64(1890123456789012345), id)

	_, err = cache.Get(ctx, "e:missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPayloadCache_ChunksAndAttachments(t *testing.T) {
	mr, client := newTestClient(t)
	cache := NewPayloadCache(client)
	ctx := context.Background()

	require.NoError(t, cache.SetChunk(ctx, "e:k", 0, 0, []byte("ab"), time.Minute))
	require.NoError(t, cache.SetChunk(ctx, "e:k", 0, 1, []byte("c"), time.Minute))

	chunk, err := cache.GetChunk(ctx, "e:k", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "c", string(chunk))

	attachments := []v1.CachedAttachment{{Key: "e:k", ID: 0, Name: "crash.dmp", Type: v1.AttachmentTypeMinidump, Chunks: 2, Size: 3}}
	require.NoError(t, cache.SetAttachments(ctx, "e:k", attachments, time.Minute))

	got, err := cache.GetAttachments(ctx, "e:k")
	require.NoError(t, err)
	assert.Equal(t, attachments, got)

	require.NoError(t, cache.DeleteChunks(ctx, "e:k", 0, 2))
	assert.False(t, mr.Exists(storage.ChunkCacheKey("e:k", 0, 0)))
	assert.False(t, mr.Exists(storage.ChunkCacheKey("e:k", 0, 1)))

	require.NoError(t, cache.Set(ctx, "e:k", v1.Payload{"event_id": "e1"}, time.Minute))
	require.NoError(t, cache.Delete(ctx, "e:k"))
	assert.False(t, mr.Exists("e:k"))
	assert.False(t, mr.Exists(storage.AttachmentsCacheKey("e:k")))

	_, err = cache.GetAttachments(ctx, "e:k")
	require.ErrorIs(t, err, storage.ErrNotFound)
}
