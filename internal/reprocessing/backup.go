package reprocessing

import (
	"context"
	"errors"
	"fmt"

	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
	"github.com/aevon-lab/reprocessor/internal/core/storage"
)

// BackupUnprocessedEvent keeps a copy of an incoming payload before
// processing mutates it. Does nothing while reprocessing is disabled.
func (e *Engine) BackupUnprocessedEvent(ctx context.Context, payload v1.Payload) error {
	if e.cfg.ForceDisabled {
		return nil
	}
	key := storage.UnprocessedCacheKey(payload.ProjectID(), payload.EventID())
	if err := e.cache.Set(ctx, key, payload, e.cfg.CacheTimeout); err != nil {
		return fmt.Errorf("failed to back up unprocessed payload: %w", err)
	}
	return nil
}

// SaveUnprocessedEvent moves the cached backup of an accepted event into the
// archive. A missing backup is not an error.
func (e *Engine) SaveUnprocessedEvent(ctx context.Context, projectID int64, eventID string) error {
	if e.cfg.ForceDisabled {
		return nil
	}
	payload, err := e.cache.Get(ctx, storage.UnprocessedCacheKey(projectID, eventID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read unprocessed backup: %w", err)
	}
	if err := e.nodes.Set(ctx, storage.UnprocessedNodeID(projectID, eventID), payload); err != nil {
		return fmt.Errorf("failed to archive unprocessed payload: %w", err)
	}
	return nil
}
