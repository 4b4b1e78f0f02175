package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
)

// marshalPayload marshals a payload to JSON.
// Nil payload produces nil (SQL NULL) rather than JSON "null" string.
func marshalPayload(p v1.Payload) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal data: %w", err)
	}
	return raw, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanEventRow scans a database row into an Event struct.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanEventRow(row scanner) (*v1.Event, error) {
	var evt v1.Event
	var dataJSON []byte

	err := row.Scan(
		&evt.ProjectID,
		&evt.EventID,
		&evt.PrimaryHash,
		&evt.GroupID,
		&evt.Deleted,
		&evt.OccurredAt,
		&dataJSON,
		&evt.IngestSeq,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan event row: %w", err)
	}

	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &evt.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal data: %w", err)
		}
	}

	return &evt, nil
}

// scanGroupRow scans one row selected with groupColumns.
func scanGroupRow(row scanner) (*v1.Group, error) {
	var g v1.Group
	var shortID sql.NullInt64
	var dataJSON []byte

	err := row.Scan(
		&g.ID,
		&g.ProjectID,
		&shortID,
		&g.Status,
		&g.TimesSeen,
		&g.Message,
		&g.Culprit,
		&g.Level,
		&g.FirstSeen,
		&g.LastSeen,
		&dataJSON,
	)
	if err != nil {
		return nil, err
	}

	if shortID.Valid {
		id := shortID.Int64
		g.ShortID = &id
	}
	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &g.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal group data: %w", err)
		}
	}
	return &g, nil
}

// scanActivityRow scans one row selected with activityColumns.
func scanActivityRow(row scanner) (*v1.Activity, error) {
	var a v1.Activity
	var userID sql.NullInt64
	var dataJSON []byte

	err := row.Scan(
		&a.ID,
		&a.ProjectID,
		&a.GroupID,
		&a.Type,
		&a.Ident,
		&userID,
		&dataJSON,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		id := userID.Int64
		a.UserID = &id
	}
	if len(dataJSON) > 0 {
		a.Data = json.RawMessage(dataJSON)
	}
	return &a, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
