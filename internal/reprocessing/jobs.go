package reprocessing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aevon-lab/reprocessor/internal/core/logger"
	"github.com/aevon-lab/reprocessor/internal/core/storage"
	"go.opentelemetry.io/otel/attribute"
)

// ReprocessGroup handles one page of the old group's events. Events up to
// MaxEvents get an event job; the rest follow the remaining-events policy.
// A full page schedules the next page as a new group job.
func (e *Engine) ReprocessGroup(ctx context.Context, job GroupJob) (err error) {
	ctx, span := tracer.Start(ctx, "reprocessing.reprocess_group")
	span.SetAttributes(
		attribute.Int64("group_id", job.GroupID),
		attribute.Int64("cursor", job.Cursor),
	)
	defer func() { endSpan(span, err) }()

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ProjectID: logger.Ptr(job.ProjectID),
		GroupID:   logger.Ptr(job.GroupID),
		Component: "reprocessing.group_job",
	})

	page, err := e.events.ListGroupEvents(ctx, job.ProjectID, job.GroupID, job.Cursor, e.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list events of group %d: %w", job.GroupID, err)
	}

	var remaining []string
	for _, event := range page {
		job.Cursor = event.IngestSeq
		if job.MaxEvents != nil && job.Selected >= *job.MaxEvents {
			remaining = append(remaining, event.EventID)
			continue
		}
		err := e.jobs.ScheduleEvent(ctx, EventJob{
			ProjectID: job.ProjectID,
			EventID:   event.EventID,
			GroupID:   job.GroupID,
			StartTime: job.StartTime,
		})
		if err != nil {
			return fmt.Errorf("failed to schedule event %s: %w", event.EventID, err)
		}
		job.Selected++
	}

	if err := e.applyRemainingPolicy(ctx, job, remaining); err != nil {
		return err
	}

	if len(page) == e.cfg.BatchSize {
		if err := e.jobs.ScheduleGroup(ctx, job); err != nil {
			return fmt.Errorf("failed to schedule next page of group %d: %w", job.GroupID, err)
		}
		return nil
	}

	slog.InfoContext(ctx, "[GroupJob] All events enumerated", "selected", job.Selected)
	// Nothing will ever decrement the counter of an empty run.
	if job.Selected == 0 {
		if err := e.jobs.ScheduleFinish(ctx, FinishJob{ProjectID: job.ProjectID, GroupID: job.GroupID}); err != nil {
			return fmt.Errorf("failed to schedule finalization of group %d: %w", job.GroupID, err)
		}
	}
	return nil
}

func (e *Engine) applyRemainingPolicy(ctx context.Context, job GroupJob, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	switch job.RemainingEvents {
	case RemainingEventsDelete:
		err := e.events.Tombstone(ctx, storage.TombstoneRequest{ProjectID: job.ProjectID, EventIDs: eventIDs})
		if err != nil {
			return fmt.Errorf("failed to delete remaining events: %w", err)
		}
	default:
		if err := e.events.ReassignEvents(ctx, job.ProjectID, eventIDs, job.NewGroupID); err != nil {
			return fmt.Errorf("failed to move remaining events: %w", err)
		}
	}
	slog.DebugContext(ctx, "[GroupJob] Applied remaining-events policy",
		"policy", job.RemainingEvents,
		"events", len(eventIDs),
	)
	return nil
}

// HandleEventJob runs ReprocessEvent. Terminal failures are counted as done
// and swallowed; other errors are returned for the worker to retry.
func (e *Engine) HandleEventJob(ctx context.Context, job EventJob) error {
	err := e.ReprocessEvent(ctx, job.ProjectID, job.EventID, job.StartTime)
	if err == nil || !IsTerminal(err) {
		return err
	}
	if err := e.MarkEventFailed(ctx, job.ProjectID, job.GroupID); err != nil {
		return fmt.Errorf("failed to count failed event %s: %w", job.EventID, err)
	}
	return nil
}
