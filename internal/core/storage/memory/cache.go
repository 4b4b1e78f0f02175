package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
	"github.com/aevon-lab/reprocessor/internal/core/storage"
	"github.com/google/uuid"
)

type entry struct {
	value     interface{}
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// kv is a TTL map shared by the cache and the counter.
type kv struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func newKV() *kv {
	return &kv{entries: make(map[string]entry), now: time.Now}
}

func (s *kv) setLocked(key string, value interface{}, ttl time.Duration) {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e
}

func (s *kv) getLocked(key string) (interface{}, bool) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(s.now()) {
		delete(s.entries, key)
		return nil, false
	}
	return e.value, true
}

// PayloadCache implements storage.PayloadCache.
type PayloadCache struct {
	kv *kv
}

func NewPayloadCache() *PayloadCache {
	return &PayloadCache{kv: newKV()}
}

// Keys lists every live key.
func (c *PayloadCache) Keys() []string {
	c.kv.mu.Lock()
	defer c.kv.mu.Unlock()

	keys := make([]string, 0, len(c.kv.entries))
	for key := range c.kv.entries {
		if _, ok := c.kv.getLocked(key); ok {
			keys = append(keys, key)
		}
	}
	return keys
}

func (c *PayloadCache) Get(ctx context.Context, key string) (v1.Payload, error) {
	c.kv.mu.Lock()
	v, ok := c.kv.getLocked(key)
	c.kv.mu.Unlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	payload, ok := v.(v1.Payload)
	if !ok {
		return nil, fmt.Errorf("key %s does not hold a payload", key)
	}
	return payload.Clone()
}

func (c *PayloadCache) Set(ctx context.Context, key string, payload v1.Payload, ttl time.Duration) error {
	clone, err := payload.Clone()
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	c.kv.mu.Lock()
	defer c.kv.mu.Unlock()
	c.kv.setLocked(key, clone, ttl)
	return nil
}

func (c *PayloadCache) Store(ctx context.Context, payload v1.Payload, ttl time.Duration) (string, error) {
	key := "e:" + uuid.NewString()
	if err := c.Set(ctx, key, payload, ttl); err != nil {
		return "", err
	}
	return key, nil
}

func (c *PayloadCache) Delete(ctx context.Context, key string) error {
	c.kv.mu.Lock()
	defer c.kv.mu.Unlock()
	delete(c.kv.entries, key)
	delete(c.kv.entries, storage.AttachmentsCacheKey(key))
	return nil
}

func (c *PayloadCache) SetChunk(ctx context.Context, key string, attachmentID, chunkIndex int, data []byte, ttl time.Duration) error {
	c.kv.mu.Lock()
	defer c.kv.mu.Unlock()
	c.kv.setLocked(storage.ChunkCacheKey(key, attachmentID, chunkIndex), append([]byte(nil), data...), ttl)
	return nil
}

// GetChunk returns one stored chunk.
func (c *PayloadCache) GetChunk(ctx context.Context, key string, attachmentID, chunkIndex int) ([]byte, error) {
	c.kv.mu.Lock()
	defer c.kv.mu.Unlock()
	v, ok := c.kv.getLocked(storage.ChunkCacheKey(key, attachmentID, chunkIndex))
	if !ok {
		return nil, storage.ErrNotFound
	}
	data, _ := v.([]byte)
	return data, nil
}

func (c *PayloadCache) DeleteChunks(ctx context.Context, key string, attachmentID, chunks int) error {
	c.kv.mu.Lock()
	defer c.kv.mu.Unlock()
	for i := 0; i < chunks; i++ {
		delete(c.kv.entries, storage.ChunkCacheKey(key, attachmentID, i))
	}
	return nil
}

func (c *PayloadCache) SetAttachments(ctx context.Context, key string, attachments []v1.CachedAttachment, ttl time.Duration) error {
	c.kv.mu.Lock()
	defer c.kv.mu.Unlock()
	c.kv.setLocked(storage.AttachmentsCacheKey(key), append([]v1.CachedAttachment(nil), attachments...), ttl)
	return nil
}

func (c *PayloadCache) GetAttachments(ctx context.Context, key string) ([]v1.CachedAttachment, error) {
	c.kv.mu.Lock()
	defer c.kv.mu.Unlock()
	v, ok := c.kv.getLocked(storage.AttachmentsCacheKey(key))
	if !ok {
		return nil, storage.ErrNotFound
	}
	attachments, _ := v.([]v1.CachedAttachment)
	return append([]v1.CachedAttachment(nil), attachments...), nil
}

// Counter implements storage.CounterStore with Redis semantics: DECR of a
// missing key starts from 0.
type Counter struct {
	kv *kv
}

func NewCounter() *Counter {
	return &Counter{kv: newKV()}
}

// SetClock replaces the time source, for TTL expiry in tests.
func (c *Counter) SetClock(now func() time.Time) {
	c.kv.mu.Lock()
	defer c.kv.mu.Unlock()
	c.kv.now = now
}

func (c *Counter) SetEx(ctx context.Context, key string, ttl time.Duration, value string) error {
	c.kv.mu.Lock()
	defer c.kv.mu.Unlock()
	c.kv.setLocked(key, value, ttl)
	return nil
}

func (c *Counter) Decr(ctx context.Context, key string) (int64, error) {
	c.kv.mu.Lock()
	defer c.kv.mu.Unlock()

	var current int64
	e, exists := c.kv.entries[key]
	if v, ok := c.kv.getLocked(key); ok {
		n, err := strconv.ParseInt(v.(string), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value of %s is not an integer", key)
		}
		current = n
	} else {
		exists = false
	}

	current--
	next := entry{value: strconv.FormatInt(current, 10)}
	if exists {
		next.expiresAt = e.expiresAt
	}
	c.kv.entries[key] = next
	return current, nil
}

func (c *Counter) Get(ctx context.Context, key string) (string, error) {
	c.kv.mu.Lock()
	defer c.kv.mu.Unlock()
	v, ok := c.kv.getLocked(key)
	if !ok {
		return "", storage.ErrNotFound
	}
	return v.(string), nil
}
