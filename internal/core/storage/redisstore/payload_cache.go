package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
	"github.com/aevon-lab/reprocessor/internal/core/storage"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PayloadCache implements storage.PayloadCache. Payloads and descriptor lists
// are JSON strings; chunks are raw bytes.
type PayloadCache struct {
	client redis.UniversalClient
}

func NewPayloadCache(client redis.UniversalClient) *PayloadCache {
	return &PayloadCache{client: client}
}

func (c *PayloadCache) Get(ctx context.Context, key string) (v1.Payload, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}

	var payload v1.Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached payload %s: %w", key, err)
	}
	return payload, nil
}

func (c *PayloadCache) Set(ctx context.Context, key string, payload v1.Payload, ttl time.Duration) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Store saves payload under a new "e:<uuid>" key.
func (c *PayloadCache) Store(ctx context.Context, payload v1.Payload, ttl time.Duration) (string, error) {
	key := "e:" + uuid.NewString()
	if err := c.Set(ctx, key, payload, ttl); err != nil {
		return "", err
	}
	return key, nil
}

// Delete removes the payload and its descriptor list.
func (c *PayloadCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key, storage.AttachmentsCacheKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (c *PayloadCache) SetChunk(ctx context.Context, key string, attachmentID, chunkIndex int, data []byte, ttl time.Duration) error {
	chunkKey := storage.ChunkCacheKey(key, attachmentID, chunkIndex)
	if err := c.client.Set(ctx, chunkKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set chunk %s: %w", chunkKey, err)
	}
	return nil
}

func (c *PayloadCache) DeleteChunks(ctx context.Context, key string, attachmentID, chunks int) error {
	if chunks <= 0 {
		return nil
	}
	keys := make([]string, 0, chunks)
	for i := 0; i < chunks; i++ {
		keys = append(keys, storage.ChunkCacheKey(key, attachmentID, i))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", key, err)
	}
	return nil
}

func (c *PayloadCache) SetAttachments(ctx context.Context, key string, attachments []v1.CachedAttachment, ttl time.Duration) error {
	raw, err := json.Marshal(attachments)
	if err != nil {
		return fmt.Errorf("failed to marshal attachments: %w", err)
	}
	if err := c.client.Set(ctx, storage.AttachmentsCacheKey(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set attachments of %s: %w", key, err)
	}
	return nil
}

func (c *PayloadCache) GetAttachments(ctx context.Context, key string) ([]v1.CachedAttachment, error) {
	raw, err := c.client.Get(ctx, storage.AttachmentsCacheKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attachments of %s: %w", key, err)
	}

	var attachments []v1.CachedAttachment
	if err := json.Unmarshal(raw, &attachments); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attachments of %s: %w", key, err)
	}
	return attachments, nil
}

// GetChunk reads one attachment chunk. The ingestion side uses it to
// reassemble attachments; the engine itself only writes chunks.
func (c *PayloadCache) GetChunk(ctx context.Context, key string, attachmentID, chunkIndex int) ([]byte, error) {
	data, err := c.client.Get(ctx, storage.ChunkCacheKey(key, attachmentID, chunkIndex)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}
	return data, nil
}
