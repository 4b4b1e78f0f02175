package v1

import (
	"fmt"
	"time"
)

// Event is one processed event row as the append-only event store exposes it.
// Rows are never updated in place; a newer row for the same
// (ProjectID, EventID, PrimaryHash) key supersedes older ones on read.
type Event struct {
	ProjectID int64  `json:"project_id"`
	EventID   string `json:"event_id"`

	// GroupID is the group the event was assigned to when this row was written.
	GroupID int64 `json:"group_id"`

	// PrimaryHash is the grouping key. It is part of the row key, so a changed
	// hash produces a physically distinct row.
	PrimaryHash string `json:"primary_hash"`

	// Deleted marks a tombstone row.
	Deleted bool `json:"-"`

	OccurredAt time.Time `json:"occurred_at"`

	// IngestSeq is a monotonic sequence number assigned by the store (BIGSERIAL).
	// Used as a pagination cursor, never exposed in the public API.
	IngestSeq int64 `json:"-"`

	Data Payload `json:"data"`
}

// Validate ensures the event has all attributes the store keys on.
func (e *Event) Validate() error {
	if e.ProjectID <= 0 {
		return fmt.Errorf("project_id is required")
	}
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if e.PrimaryHash == "" {
		return fmt.Errorf("primary_hash is required")
	}
	return nil
}
