package reprocessing

import (
	"context"
	"fmt"
	"log/slog"

	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
	"github.com/aevon-lab/reprocessor/internal/core/storage"
)

// ReconcileGroupingKeyChange hides the row a reprocessed event left behind
// under its old grouping key. Rows are never updated, so a changed primary
// hash leaves a second visible row until a tombstone covers it.
func (e *Engine) ReconcileGroupingKeyChange(ctx context.Context, event *v1.Event) (err error) {
	if !IsReprocessedEvent(event.Data) {
		return nil
	}
	oldHash := OriginalPrimaryHash(event.Data)
	if oldHash == "" || oldHash == event.PrimaryHash {
		return nil
	}

	ctx, span := tracer.Start(ctx, "reprocessing.reconcile_grouping_key")
	defer func() { endSpan(span, err) }()

	err = e.events.Tombstone(ctx, storage.TombstoneRequest{
		ProjectID:      event.ProjectID,
		EventIDs:       []string{event.EventID},
		OldPrimaryHash: oldHash,
	})
	if err != nil {
		return fmt.Errorf("failed to tombstone old row of event %s: %w", event.EventID, err)
	}
	slog.DebugContext(ctx, "[Tombstone] Old grouping key hidden",
		"event_id", event.EventID,
		"old_primary_hash", oldHash,
		"primary_hash", event.PrimaryHash,
	)
	return nil
}
