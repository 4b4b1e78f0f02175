package reprocessing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
	"github.com/aevon-lab/reprocessor/internal/core/logger"
	"github.com/aevon-lab/reprocessor/internal/core/storage"
)

// FinishReprocessing retires the old group: its remaining activity moves to
// the new group, a redirect is installed and the old group is deleted.
// Running it twice is harmless.
func (e *Engine) FinishReprocessing(ctx context.Context, projectID, groupID int64) (err error) {
	ctx, span := tracer.Start(ctx, "reprocessing.finish")
	defer func() { endSpan(span, err) }()

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ProjectID: logger.Ptr(projectID),
		GroupID:   logger.Ptr(groupID),
		Component: "reprocessing.finalize",
	})

	var newGroupID int64
	err = e.groups.WithTx(ctx, func(tx storage.GroupTx) error {
		group, err := tx.GetGroupForUpdate(ctx, groupID)
		if errors.Is(err, storage.ErrNotFound) {
			slog.InfoContext(ctx, "[Finalize] Group already gone")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to lock group: %w", err)
		}
		if group.Status != v1.GroupStatusReprocessing {
			slog.WarnContext(ctx, "[Finalize] Group is not reprocessing", "status", group.Status)
			return nil
		}

		activity, err := tx.FindActivity(ctx, groupID, v1.ActivityReprocess)
		if err != nil {
			return fmt.Errorf("failed to find reprocessing activity: %w", err)
		}
		data, err := activity.ReprocessingData()
		if err != nil {
			return err
		}
		newGroupID = data.NewGroupID

		if _, err := tx.MigrateGroupRecords(ctx, groupID, newGroupID, []v1.GroupModel{v1.GroupModelActivity}); err != nil {
			return fmt.Errorf("failed to migrate activity: %w", err)
		}
		if err := tx.InsertRedirect(ctx, projectID, groupID, newGroupID); err != nil {
			return fmt.Errorf("failed to insert redirect: %w", err)
		}
		if err := tx.DeleteGroup(ctx, groupID); err != nil {
			return fmt.Errorf("failed to delete group: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if newGroupID != 0 {
		slog.InfoContext(ctx, "[Finalize] Reprocessing finished", "new_group_id", newGroupID)
	}
	return nil
}
