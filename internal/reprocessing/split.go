package reprocessing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
	"github.com/aevon-lab/reprocessor/internal/core/logger"
	"github.com/aevon-lab/reprocessor/internal/core/storage"
	"go.opentelemetry.io/otel/attribute"
)

// groupModelsToMigrate are re-pointed from the old group to the new one when
// the group is split. The inbox record stays and is deleted with the old group.
var groupModelsToMigrate = []v1.GroupModel{
	v1.GroupModelActivity,
	v1.GroupModelAssignee,
	v1.GroupModelBookmark,
	v1.GroupModelSubscription,
	v1.GroupModelSeen,
	v1.GroupModelMeta,
	v1.GroupModelHash,
}

// StartRequest asks for one group to be reprocessed.
type StartRequest struct {
	ProjectID       int64
	GroupID         int64
	RemainingEvents string
	MaxEvents       *int64
	ActingUserID    *int64
}

// Info is the progress blob stored next to the counter.
type Info struct {
	DateCreated time.Time `json:"dateCreated"`
	TotalEvents int64     `json:"totalEvents"`
}

// StartReprocessing forks the group and initializes the completion counter.
// It returns the new group id. The caller enqueues the group job afterwards.
func (e *Engine) StartReprocessing(ctx context.Context, req StartRequest) (newGroupID int64, err error) {
	ctx, span := tracer.Start(ctx, "reprocessing.start")
	span.SetAttributes(
		attribute.Int64("project_id", req.ProjectID),
		attribute.Int64("group_id", req.GroupID),
	)
	defer func() { endSpan(span, err) }()

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ProjectID: logger.Ptr(req.ProjectID),
		GroupID:   logger.Ptr(req.GroupID),
		Component: "reprocessing.split",
	})

	policy, err := ParseRemainingEvents(req.RemainingEvents)
	if err != nil {
		return 0, err
	}
	if req.MaxEvents != nil && *req.MaxEvents <= 0 {
		return 0, ErrInvalidMaxEvents
	}

	newGroupID = e.ids.NewID()
	err = e.groups.WithTx(ctx, func(tx storage.GroupTx) error {
		return e.splitGroup(ctx, tx, req, policy, newGroupID)
	})
	if err != nil {
		return 0, err
	}

	eventCount, err := e.events.CountGroupEvents(ctx, req.ProjectID, req.GroupID)
	if err != nil {
		return 0, fmt.Errorf("failed to count events of group %d: %w", req.GroupID, err)
	}
	if req.MaxEvents != nil && *req.MaxEvents < eventCount {
		eventCount = *req.MaxEvents
	}

	// Created after the commit so the split's migration leaves it on the old group.
	activity, err := e.createReprocessingActivity(ctx, req, newGroupID, eventCount)
	if err != nil {
		return 0, err
	}

	if err := e.initProgress(ctx, req.GroupID, eventCount, activity.CreatedAt); err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "[Split] Group forked",
		"new_group_id", newGroupID,
		"event_count", eventCount,
		"remaining_events", policy,
	)
	return newGroupID, nil
}

func (e *Engine) splitGroup(ctx context.Context, tx storage.GroupTx, req StartRequest, policy RemainingEvents, newGroupID int64) error {
	group, err := tx.GetGroupForUpdate(ctx, req.GroupID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrGroupNotFound, req.GroupID)
	}
	if err != nil {
		return fmt.Errorf("failed to lock group %d: %w", req.GroupID, err)
	}
	if group.ProjectID != req.ProjectID {
		return fmt.Errorf("%w: %d", ErrGroupNotFound, req.GroupID)
	}
	if group.Status == v1.GroupStatusReprocessing {
		return &ConflictError{GroupID: req.GroupID}
	}

	newGroup := *group
	newGroup.ID = newGroupID
	newGroup.TimesSeen = timesSeenAfterSplit(group.TimesSeen, policy, req.MaxEvents)

	old := *group
	old.Status = v1.GroupStatusReprocessing
	old.ShortID = nil
	if err := tx.UpdateGroup(ctx, &old); err != nil {
		return fmt.Errorf("failed to freeze group %d: %w", req.GroupID, err)
	}
	if err := tx.InsertGroup(ctx, &newGroup); err != nil {
		return fmt.Errorf("failed to insert group %d: %w", newGroupID, err)
	}

	moved, err := tx.MigrateGroupRecords(ctx, req.GroupID, newGroupID, groupModelsToMigrate)
	if err != nil {
		return fmt.Errorf("failed to migrate records of group %d: %w", req.GroupID, err)
	}
	slog.DebugContext(ctx, "[Split] Migrated group records", "new_group_id", newGroupID, "moved", moved)
	return nil
}

// timesSeenAfterSplit is the new group's times_seen. It may go negative when
// max_events exceeds the old count; the value is not clamped.
func timesSeenAfterSplit(timesSeen int64, policy RemainingEvents, maxEvents *int64) int64 {
	if policy == RemainingEventsDelete {
		return 0
	}
	if maxEvents != nil {
		return timesSeen - *maxEvents
	}
	return timesSeen
}

func (e *Engine) createReprocessingActivity(ctx context.Context, req StartRequest, newGroupID, eventCount int64) (*v1.Activity, error) {
	data, err := json.Marshal(v1.ReprocessingActivityData{
		EventCount: eventCount,
		OldGroupID: req.GroupID,
		NewGroupID: newGroupID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal activity data: %w", err)
	}
	activity := &v1.Activity{
		ID:        e.ids.NewID(),
		ProjectID: req.ProjectID,
		GroupID:   req.GroupID,
		Type:      v1.ActivityReprocess,
		Ident:     strconv.FormatInt(req.GroupID, 10),
		UserID:    req.ActingUserID,
		Data:      data,
		CreatedAt: e.now().UTC(),
	}
	if err := e.groups.CreateActivity(ctx, activity); err != nil {
		return nil, fmt.Errorf("failed to create reprocessing activity: %w", err)
	}
	return activity, nil
}

func (e *Engine) initProgress(ctx context.Context, groupID, eventCount int64, createdAt time.Time) error {
	info, err := json.Marshal(Info{DateCreated: createdAt, TotalEvents: eventCount})
	if err != nil {
		return fmt.Errorf("failed to marshal progress info: %w", err)
	}
	if err := e.counter.SetEx(ctx, counterKey(groupID), e.cfg.CounterTTL, strconv.FormatInt(eventCount, 10)); err != nil {
		return fmt.Errorf("failed to set counter: %w", err)
	}
	if err := e.counter.SetEx(ctx, infoKey(groupID), e.cfg.CounterTTL, string(info)); err != nil {
		return fmt.Errorf("failed to set progress info: %w", err)
	}
	return nil
}
