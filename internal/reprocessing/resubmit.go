package reprocessing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
	"github.com/aevon-lab/reprocessor/internal/core/logger"
	"github.com/aevon-lab/reprocessor/internal/core/storage"
	"go.opentelemetry.io/otel/attribute"
)

// ReprocessEvent hands the unprocessed payload of one event back to ingestion,
// tagged with the group and grouping key it had.
func (e *Engine) ReprocessEvent(ctx context.Context, projectID int64, eventID string, startTime time.Time) (err error) {
	ctx, span := tracer.Start(ctx, "reprocessing.reprocess_event")
	span.SetAttributes(
		attribute.Int64("project_id", projectID),
		attribute.String("event_id", eventID),
	)
	defer func() { endSpan(span, err) }()

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ProjectID: logger.Ptr(projectID),
		EventID:   logger.Ptr(eventID),
		Component: "reprocessing.resubmit",
	})

	payload, source, err := e.findUnprocessedPayload(ctx, projectID, eventID)
	if err != nil {
		return e.logFailure(ctx, err)
	}

	event, err := e.events.GetEvent(ctx, projectID, eventID)
	if errors.Is(err, storage.ErrNotFound) {
		return e.logFailure(ctx, &CannotReprocessError{Kind: EventNotFound, ProjectID: projectID, EventID: eventID})
	}
	if err != nil {
		return fmt.Errorf("failed to load event: %w", err)
	}

	attachments, err := e.attachments.ListEventAttachments(ctx, projectID, eventID)
	if err != nil {
		return fmt.Errorf("failed to list attachments: %w", err)
	}
	kind := ClassifyPayload(payload)
	if missing := missingAttachmentTypes(RequiredAttachmentTypes(kind), attachments); len(missing) > 0 {
		return e.logFailure(ctx, &CannotReprocessError{
			Kind:         MissingAttachment,
			ProjectID:    projectID,
			EventID:      eventID,
			MissingTypes: missing,
		})
	}

	setReprocessingContext(payload, event.GroupID, event.PrimaryHash)

	cacheKey, err := e.cache.Store(ctx, payload, e.cfg.CacheTimeout)
	if err != nil {
		return fmt.Errorf("failed to cache payload: %w", err)
	}

	if err := e.cacheAttachments(ctx, cacheKey, attachments); err != nil {
		return e.logFailure(ctx, err)
	}

	if err := e.ingest.Enqueue(ctx, cacheKey, startTime, eventID); err != nil {
		return fmt.Errorf("failed to enqueue for ingestion: %w", err)
	}

	slog.DebugContext(ctx, "[Resubmit] Event handed to ingestion",
		"cache_key", cacheKey,
		"source", source,
		"kind", kind,
		"attachments", len(attachments),
	)
	return nil
}

// cacheAttachments copies every attachment, then publishes the descriptor
// list. On failure everything written under cacheKey is removed.
func (e *Engine) cacheAttachments(ctx context.Context, cacheKey string, attachments []*v1.EventAttachment) error {
	if len(attachments) == 0 {
		return nil
	}

	cached := make([]v1.CachedAttachment, 0, len(attachments))
	for i, att := range attachments {
		c, err := e.copyAttachment(ctx, cacheKey, i, att)
		if err != nil {
			e.discardCached(ctx, cacheKey, append(cached, c))
			return err
		}
		cached = append(cached, c)
	}

	if err := e.cache.SetAttachments(ctx, cacheKey, cached, e.cfg.CacheTimeout); err != nil {
		e.discardCached(ctx, cacheKey, cached)
		return fmt.Errorf("failed to publish attachment descriptors: %w", err)
	}
	return nil
}

func (e *Engine) discardCached(ctx context.Context, cacheKey string, cached []v1.CachedAttachment) {
	for _, c := range cached {
		if err := e.cache.DeleteChunks(ctx, cacheKey, c.ID, c.Chunks); err != nil {
			slog.WarnContext(ctx, "[Resubmit] Failed to delete cached chunks", "cache_key", cacheKey, "attachment", c.ID, "error", err)
		}
	}
	if err := e.cache.Delete(ctx, cacheKey); err != nil {
		slog.WarnContext(ctx, "[Resubmit] Failed to delete cached payload", "cache_key", cacheKey, "error", err)
	}
}

func (e *Engine) logFailure(ctx context.Context, err error) error {
	var cannot *CannotReprocessError
	var integrity *IntegrityError
	switch {
	case errors.As(err, &cannot):
		slog.ErrorContext(ctx, "[Resubmit] Cannot reprocess event", "reason", cannot.Reason())
	case errors.As(err, &integrity):
		slog.ErrorContext(ctx, "[Resubmit] Attachment size mismatch",
			"attachment_id", integrity.AttachmentID,
			"expected", integrity.Expected,
			"actual", integrity.Actual,
		)
	}
	return err
}
