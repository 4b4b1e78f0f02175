package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
	"github.com/aevon-lab/reprocessor/internal/core/storage"
)

// groupModelTables maps every re-pointable group-owned model to its table.
// Table names are constants; they are never taken from input.
var groupModelTables = map[v1.GroupModel]string{
	v1.GroupModelActivity:     "activities",
	v1.GroupModelAssignee:     "group_assignees",
	v1.GroupModelBookmark:     "group_bookmarks",
	v1.GroupModelSubscription: "group_subscriptions",
	v1.GroupModelSeen:         "group_seen",
	v1.GroupModelMeta:         "group_meta",
	v1.GroupModelHash:         "group_hashes",
	v1.GroupModelInbox:        "group_inbox",
}

// migrateQuery re-points one owned table. table comes from groupModelTables.
func migrateQuery(table string) string {
	return `UPDATE ` + table + ` SET group_id = $2 WHERE group_id = $1`
}

// querier is the subset of *sql.DB and *sql.Tx the group store needs.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// GroupAdapter implements storage.GroupStore for PostgreSQL.
type GroupAdapter struct {
	db *sql.DB
}

// NewGroupAdapter wraps a shared connection pool.
func NewGroupAdapter(db *sql.DB) *GroupAdapter {
	return &GroupAdapter{db: db}
}

// WithTx runs fn in a READ COMMITTED transaction; row locks taken through
// GetGroupForUpdate serialize concurrent splits of the same group.
func (a *GroupAdapter) WithTx(ctx context.Context, fn func(tx storage.GroupTx) error) error {
	sqlTx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&groupTx{q: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Error("[Postgres] Rollback failed", "error", rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (a *GroupAdapter) GetGroup(ctx context.Context, groupID int64) (*v1.Group, error) {
	return getGroup(ctx, a.db, queryGetGroup, groupID)
}

func (a *GroupAdapter) ListGroupsByStatus(ctx context.Context, status v1.GroupStatus, limit int) ([]*v1.Group, error) {
	rows, err := a.db.QueryContext(ctx, queryListGroupsByStatus, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	var groups []*v1.Group
	for rows.Next() {
		g, err := scanGroupRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating groups: %w", err)
	}
	return groups, nil
}

// CreateActivity inserts an activity outside any transaction.
func (a *GroupAdapter) CreateActivity(ctx context.Context, activity *v1.Activity) error {
	var data []byte
	if len(activity.Data) > 0 {
		data = activity.Data
	}
	_, err := a.db.ExecContext(ctx, queryInsertActivity,
		activity.ID,
		activity.ProjectID,
		activity.GroupID,
		activity.Type,
		activity.Ident,
		nullInt64(activity.UserID),
		data,
		activity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

func (a *GroupAdapter) ListActivities(ctx context.Context, groupID int64) ([]*v1.Activity, error) {
	rows, err := a.db.QueryContext(ctx, queryListActivities, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	var activities []*v1.Activity
	for rows.Next() {
		act, err := scanActivityRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		activities = append(activities, act)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activities: %w", err)
	}
	return activities, nil
}

// GetRedirect resolves a deleted group id to the group that replaced it.
func (a *GroupAdapter) GetRedirect(ctx context.Context, previousGroupID int64) (int64, error) {
	var groupID int64
	err := a.db.QueryRowContext(ctx, queryGetRedirect, previousGroupID).Scan(&groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query redirect: %w", err)
	}
	return groupID, nil
}

type groupTx struct {
	q querier
}

func (t *groupTx) GetGroupForUpdate(ctx context.Context, groupID int64) (*v1.Group, error) {
	return getGroup(ctx, t.q, queryGetGroupForUpdate, groupID)
}

func (t *groupTx) UpdateGroup(ctx context.Context, group *v1.Group) error {
	res, err := t.q.ExecContext(ctx, queryUpdateGroup,
		group.ID,
		group.Status,
		nullInt64(group.ShortID),
		group.TimesSeen,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (t *groupTx) InsertGroup(ctx context.Context, group *v1.Group) error {
	var data []byte
	if group.Data != nil {
		raw, err := json.Marshal(group.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal group data: %w", err)
		}
		data = raw
	}

	_, err := t.q.ExecContext(ctx, queryInsertGroup,
		group.ID,
		group.ProjectID,
		nullInt64(group.ShortID),
		group.Status,
		group.TimesSeen,
		group.Message,
		group.Culprit,
		group.Level,
		group.FirstSeen,
		group.LastSeen,
		data,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}
	return nil
}

// DeleteGroup removes the group row and its inbox record.
func (t *groupTx) DeleteGroup(ctx context.Context, groupID int64) error {
	if _, err := t.q.ExecContext(ctx, queryDeleteGroupInbox, groupID); err != nil {
		return fmt.Errorf("failed to delete group inbox: %w", err)
	}
	if _, err := t.q.ExecContext(ctx, queryDeleteGroup, groupID); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return nil
}

func (t *groupTx) MigrateGroupRecords(ctx context.Context, fromGroupID, toGroupID int64, models []v1.GroupModel) (map[v1.GroupModel]int64, error) {
	moved := make(map[v1.GroupModel]int64, len(models))
	for _, model := range models {
		table, ok := groupModelTables[model]
		if !ok {
			return nil, fmt.Errorf("unknown group model %q", model)
		}
		res, err := t.q.ExecContext(ctx, migrateQuery(table), fromGroupID, toGroupID)
		if err != nil {
			return nil, fmt.Errorf("failed to migrate %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		moved[model] = n
	}
	return moved, nil
}

func (t *groupTx) FindActivity(ctx context.Context, groupID int64, activityType v1.ActivityType) (*v1.Activity, error) {
	act, err := scanActivityRow(t.q.QueryRowContext(ctx, queryFindActivity, groupID, activityType))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	return act, nil
}

func (t *groupTx) InsertRedirect(ctx context.Context, projectID, previousGroupID, groupID int64) error {
	if _, err := t.q.ExecContext(ctx, queryInsertRedirect, projectID, previousGroupID, groupID); err != nil {
		return fmt.Errorf("failed to insert redirect: %w", err)
	}
	return nil
}

func getGroup(ctx context.Context, q querier, query string, groupID int64) (*v1.Group, error) {
	g, err := scanGroupRow(q.QueryRowContext(ctx, query, groupID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query group: %w", err)
	}
	return g, nil
}
