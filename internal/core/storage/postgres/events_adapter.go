package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
	"github.com/aevon-lab/reprocessor/internal/core/storage"
	"github.com/lib/pq"
)

// EventAdapter implements storage.EventStore for PostgreSQL.
// It only ever inserts into the events table.
type EventAdapter struct {
	db                *sql.DB
	stmtSaveEvent     *sql.Stmt
	stmtGetEvent      *sql.Stmt
	stmtCountGroup    *sql.Stmt
	stmtListGroupPage *sql.Stmt
}

// NewEventAdapter prepares the event store statements on a shared connection.
//
// IMPORTANT: Schema must be initialized separately via migrations.
func NewEventAdapter(db *sql.DB) (*EventAdapter, error) {
	stmts := make([]*sql.Stmt, 0, 4)
	closeAll := func() {
		for _, stmt := range stmts {
			stmt.Close()
		}
	}

	for _, q := range []struct {
		name  string
		query string
	}{
		{"saveEvent", querySaveEvent},
		{"getEvent", queryGetEvent},
		{"countGroupEvents", queryCountGroupEvents},
		{"listGroupEvents", queryListGroupEvents},
	} {
		stmt, err := db.Prepare(q.query)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to prepare %s statement: %w", q.name, err)
		}
		stmts = append(stmts, stmt)
	}

	slog.Info("[Postgres] Event adapter initialized with prepared statements")

	return &EventAdapter{
		db:                db,
		stmtSaveEvent:     stmts[0],
		stmtGetEvent:      stmts[1],
		stmtCountGroup:    stmts[2],
		stmtListGroupPage: stmts[3],
	}, nil
}

// InsertEvent appends a row and populates IngestSeq.
func (a *EventAdapter) InsertEvent(ctx context.Context, event *v1.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	dataJSON, err := marshalPayload(event.Data)
	if err != nil {
		return err
	}

	var ingestSeq int64
	err = a.stmtSaveEvent.QueryRowContext(ctx,
		event.ProjectID,
		event.EventID,
		event.PrimaryHash,
		event.GroupID,
		event.Deleted,
		event.OccurredAt,
		dataJSON,
	).Scan(&ingestSeq)
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}

	event.IngestSeq = ingestSeq

	slog.Debug("[Postgres] Saved event",
		"project_id", event.ProjectID,
		"event_id", event.EventID,
		"group_id", event.GroupID,
		"ingest_seq", ingestSeq)
	return nil
}

// GetEvent returns the visible row of an event, or storage.ErrNotFound.
func (a *EventAdapter) GetEvent(ctx context.Context, projectID int64, eventID string) (*v1.Event, error) {
	evt, err := scanEventRow(a.stmtGetEvent.QueryRowContext(ctx, projectID, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return evt, nil
}

// CountGroupEvents counts the visible events of a group.
func (a *EventAdapter) CountGroupEvents(ctx context.Context, projectID, groupID int64) (int64, error) {
	var count int64
	if err := a.stmtCountGroup.QueryRowContext(ctx, projectID, groupID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count group events: %w", err)
	}
	return count, nil
}

// ListGroupEvents fetches visible events of a group after a cursor (ingest_seq).
// Returns events ordered by ingest_seq ASC.
func (a *EventAdapter) ListGroupEvents(ctx context.Context, projectID, groupID int64, cursor int64, limit int) ([]*v1.Event, error) {
	rows, err := a.stmtListGroupPage.QueryContext(ctx, projectID, groupID, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query group events: %w", err)
	}
	defer rows.Close()

	var events []*v1.Event
	for rows.Next() {
		event, err := scanEventRow(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// Tombstone inserts deleted=true rows that supersede the targeted keys.
func (a *EventAdapter) Tombstone(ctx context.Context, req storage.TombstoneRequest) error {
	if len(req.EventIDs) == 0 {
		return nil
	}

	var (
		res sql.Result
		err error
	)
	if req.OldPrimaryHash != "" {
		res, err = a.db.ExecContext(ctx, queryTombstoneHash, req.ProjectID, pq.Array(req.EventIDs), req.OldPrimaryHash)
	} else {
		res, err = a.db.ExecContext(ctx, queryTombstoneVisible, req.ProjectID, pq.Array(req.EventIDs))
	}
	if err != nil {
		return fmt.Errorf("failed to tombstone events: %w", err)
	}

	inserted, _ := res.RowsAffected()
	slog.Info("[Postgres] Tombstoned events",
		"project_id", req.ProjectID,
		"event_count", len(req.EventIDs),
		"old_primary_hash", req.OldPrimaryHash,
		"rows_inserted", inserted)
	return nil
}

// ReassignEvents appends copies of the visible rows under groupID.
func (a *EventAdapter) ReassignEvents(ctx context.Context, projectID int64, eventIDs []string, groupID int64) error {
	if len(eventIDs) == 0 {
		return nil
	}
	if _, err := a.db.ExecContext(ctx, queryReassignEvents, projectID, pq.Array(eventIDs), groupID); err != nil {
		return fmt.Errorf("failed to reassign events: %w", err)
	}
	return nil
}

// Close closes the prepared statements. The shared *sql.DB is owned by the caller.
func (a *EventAdapter) Close() error {
	var firstErr error
	for _, s := range []struct {
		name string
		stmt *sql.Stmt
	}{
		{"saveEvent", a.stmtSaveEvent},
		{"getEvent", a.stmtGetEvent},
		{"countGroupEvents", a.stmtCountGroup},
		{"listGroupEvents", a.stmtListGroupPage},
	} {
		if err := s.stmt.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close %s statement: %w", s.name, err)
		}
	}
	return firstErr
}
