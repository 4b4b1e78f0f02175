package storage

import (
	"context"
	"errors"
	"io"
	"time"

	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
)

// ErrNotFound is returned when the requested record or key does not exist.
var ErrNotFound = errors.New("not found")

// GroupStore is the relational store of groups and everything a group owns.
type GroupStore interface {
	// WithTx runs fn inside one transaction. fn's error rolls everything back.
	WithTx(ctx context.Context, fn func(tx GroupTx) error) error

	GetGroup(ctx context.Context, groupID int64) (*v1.Group, error)
	ListGroupsByStatus(ctx context.Context, status v1.GroupStatus, limit int) ([]*v1.Group, error)
	CreateActivity(ctx context.Context, activity *v1.Activity) error
	ListActivities(ctx context.Context, groupID int64) ([]*v1.Activity, error)
	GetRedirect(ctx context.Context, previousGroupID int64) (int64, error)
}

// GroupTx is the transactional view of the group store.
type GroupTx interface {
	// GetGroupForUpdate reads the group and locks its row until commit.
	GetGroupForUpdate(ctx context.Context, groupID int64) (*v1.Group, error)
	// UpdateGroup writes status, short_id and times_seen.
	UpdateGroup(ctx context.Context, group *v1.Group) error
	InsertGroup(ctx context.Context, group *v1.Group) error
	DeleteGroup(ctx context.Context, groupID int64) error

	// MigrateGroupRecords re-points rows of the given models from one group to
	// another and returns the number of rows moved per model.
	MigrateGroupRecords(ctx context.Context, fromGroupID, toGroupID int64, models []v1.GroupModel) (map[v1.GroupModel]int64, error)

	FindActivity(ctx context.Context, groupID int64, activityType v1.ActivityType) (*v1.Activity, error)
	InsertRedirect(ctx context.Context, projectID, previousGroupID, groupID int64) error
}

// TombstoneRequest identifies rows to hide in the event store.
// An empty OldPrimaryHash tombstones the currently visible row of each event.
type TombstoneRequest struct {
	ProjectID      int64
	EventIDs       []string
	OldPrimaryHash string
}

// EventStore is the append-only, merge-on-read store of processed events.
// Implementations never update or delete rows: every write is an insert, and
// the newest row per (project_id, event_id, primary_hash) wins on read.
type EventStore interface {
	InsertEvent(ctx context.Context, event *v1.Event) error
	GetEvent(ctx context.Context, projectID int64, eventID string) (*v1.Event, error)
	CountGroupEvents(ctx context.Context, projectID, groupID int64) (int64, error)

	// ListGroupEvents pages through the visible events of a group in ingest_seq
	// order. cursor=0 means "from the beginning".
	ListGroupEvents(ctx context.Context, projectID, groupID int64, cursor int64, limit int) ([]*v1.Event, error)

	Tombstone(ctx context.Context, req TombstoneRequest) error

	// ReassignEvents appends a copy of each visible row under a different group.
	ReassignEvents(ctx context.Context, projectID int64, eventIDs []string, groupID int64) error
}

// NodeStore is the durable archive of original payloads.
type NodeStore interface {
	// Get returns the payload stored under nodeID, or under one of its named
	// subkeys when subkey is not empty.
	Get(ctx context.Context, nodeID, subkey string) (v1.Payload, error)
	Set(ctx context.Context, nodeID string, data v1.Payload) error
	SetSubkeys(ctx context.Context, nodeID string, subkeys map[string]v1.Payload) error
}

// AttachmentStore exposes stored event attachments and their bytes.
type AttachmentStore interface {
	ListEventAttachments(ctx context.Context, projectID int64, eventID string) ([]*v1.EventAttachment, error)
	OpenAttachment(ctx context.Context, attachment *v1.EventAttachment) (io.ReadCloser, error)
}

// PayloadCache is the TTL-based handoff buffer shared with the ingestion pipeline.
type PayloadCache interface {
	Get(ctx context.Context, key string) (v1.Payload, error)
	Set(ctx context.Context, key string, payload v1.Payload, ttl time.Duration) error
	// Store saves payload under a freshly minted key and returns it.
	Store(ctx context.Context, payload v1.Payload, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error

	SetChunk(ctx context.Context, key string, attachmentID, chunkIndex int, data []byte, ttl time.Duration) error
	DeleteChunks(ctx context.Context, key string, attachmentID, chunks int) error
	SetAttachments(ctx context.Context, key string, attachments []v1.CachedAttachment, ttl time.Duration) error
	GetAttachments(ctx context.Context, key string) ([]v1.CachedAttachment, error)
}

// CounterStore is an external key/value service with atomic decrement and TTL.
type CounterStore interface {
	SetEx(ctx context.Context, key string, ttl time.Duration, value string) error
	// Decr atomically decrements key and returns the new value.
	Decr(ctx context.Context, key string) (int64, error)
	Get(ctx context.Context, key string) (string, error)
}
