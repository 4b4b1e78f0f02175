package reprocessing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
	"github.com/aevon-lab/reprocessor/internal/core/logger"
	"github.com/aevon-lab/reprocessor/internal/core/storage"
)

// Progress is the counter view of one reprocessing run.
type Progress struct {
	Pending int64
	Info    *Info
}

// MarkEventReprocessed counts one event of the old group as done. The
// decrement that lands exactly on zero schedules finalization; every other
// result, including negative ones, does nothing more.
func (e *Engine) MarkEventReprocessed(ctx context.Context, payload v1.Payload) (err error) {
	groupID, ok := OriginalIssueID(payload)
	if !ok || groupID == 0 {
		return nil
	}
	projectID := payload.ProjectID()

	ctx, span := tracer.Start(ctx, "reprocessing.mark_event_reprocessed")
	defer func() { endSpan(span, err) }()

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ProjectID: logger.Ptr(projectID),
		GroupID:   logger.Ptr(groupID),
		Component: "reprocessing.tracker",
	})

	pending, err := e.counter.Decr(ctx, counterKey(groupID))
	if err != nil {
		return fmt.Errorf("failed to decrement counter of group %d: %w", groupID, err)
	}
	slog.DebugContext(ctx, "[Tracker] Event done", "pending", pending)

	if pending != 0 {
		return nil
	}
	if err := e.jobs.ScheduleFinish(ctx, FinishJob{ProjectID: projectID, GroupID: groupID}); err != nil {
		return fmt.Errorf("failed to schedule finalization of group %d: %w", groupID, err)
	}
	slog.InfoContext(ctx, "[Tracker] All events done, finalization scheduled")
	return nil
}

// MarkEventFailed counts an event that could not be resubmitted.
func (e *Engine) MarkEventFailed(ctx context.Context, projectID, groupID int64) error {
	payload := v1.Payload{"project": projectID}
	payload.SetPath(groupID, originalIssueIDPath...)
	return e.MarkEventReprocessed(ctx, payload)
}

// GetProgress reads the counter and info blob. Missing state reads as zero
// pending with no info.
func (e *Engine) GetProgress(ctx context.Context, groupID int64) (Progress, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{GroupID: logger.Ptr(groupID), Component: "reprocessing.tracker"})

	raw, err := e.counter.Get(ctx, counterKey(groupID))
	if errors.Is(err, storage.ErrNotFound) {
		slog.ErrorContext(ctx, "reprocessing2.missing_counter")
		return Progress{}, nil
	}
	if err != nil {
		return Progress{}, fmt.Errorf("failed to read counter: %w", err)
	}
	pending, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Progress{}, fmt.Errorf("malformed counter %q: %w", raw, err)
	}

	rawInfo, err := e.counter.Get(ctx, infoKey(groupID))
	if errors.Is(err, storage.ErrNotFound) {
		slog.ErrorContext(ctx, "reprocessing2.missing_info")
		return Progress{}, nil
	}
	if err != nil {
		return Progress{}, fmt.Errorf("failed to read progress info: %w", err)
	}
	var info Info
	if err := json.Unmarshal([]byte(rawInfo), &info); err != nil {
		return Progress{}, fmt.Errorf("malformed progress info: %w", err)
	}

	return Progress{Pending: pending, Info: &info}, nil
}

// IsGroupFinished reports whether no events are pending.
func (e *Engine) IsGroupFinished(ctx context.Context, groupID int64) (bool, error) {
	progress, err := e.GetProgress(ctx, groupID)
	if err != nil {
		return false, err
	}
	return progress.Pending <= 0, nil
}
