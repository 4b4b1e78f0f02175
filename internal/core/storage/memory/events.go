package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
	"github.com/aevon-lab/reprocessor/internal/core/storage"
)

type eventKey struct {
	projectID   int64
	eventID     string
	primaryHash string
}

// EventStore implements storage.EventStore with the same append-only,
// newest-row-wins semantics as the Postgres table.
type EventStore struct {
	mu   sync.Mutex
	rows []v1.Event
	seq  int64
}

func NewEventStore() *EventStore {
	return &EventStore{}
}

func (s *EventStore) InsertEvent(ctx context.Context, event *v1.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(event)
	return nil
}

func (s *EventStore) appendLocked(event *v1.Event) {
	s.seq++
	event.IngestSeq = s.seq
	s.rows = append(s.rows, *event)
}

// Rows returns every physical row, tombstones included, in insertion order.
func (s *EventStore) Rows() []v1.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]v1.Event(nil), s.rows...)
}

// latestLocked resolves duplicates the way a merge would: newest row per key.
func (s *EventStore) latestLocked(projectID int64) map[eventKey]v1.Event {
	latest := make(map[eventKey]v1.Event)
	for _, row := range s.rows {
		if row.ProjectID != projectID {
			continue
		}
		key := eventKey{row.ProjectID, row.EventID, row.PrimaryHash}
		if cur, ok := latest[key]; !ok || row.IngestSeq > cur.IngestSeq {
			latest[key] = row
		}
	}
	return latest
}

func (s *EventStore) visibleLocked(projectID int64) []v1.Event {
	var out []v1.Event
	for _, row := range s.latestLocked(projectID) {
		if !row.Deleted {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IngestSeq < out[j].IngestSeq })
	return out
}

func (s *EventStore) GetEvent(ctx context.Context, projectID int64, eventID string) (*v1.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *v1.Event
	for _, row := range s.visibleLocked(projectID) {
		if row.EventID == eventID {
			row := row
			found = &row
		}
	}
	if found == nil {
		return nil, storage.ErrNotFound
	}
	return found, nil
}

func (s *EventStore) CountGroupEvents(ctx context.Context, projectID, groupID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, row := range s.visibleLocked(projectID) {
		if row.GroupID == groupID {
			n++
		}
	}
	return n, nil
}

func (s *EventStore) ListGroupEvents(ctx context.Context, projectID, groupID int64, cursor int64, limit int) ([]*v1.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*v1.Event
	for _, row := range s.visibleLocked(projectID) {
		if row.GroupID != groupID || row.IngestSeq <= cursor {
			continue
		}
		row := row
		out = append(out, &row)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *EventStore) Tombstone(ctx context.Context, req storage.TombstoneRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.OldPrimaryHash != "" {
		for _, eventID := range req.EventIDs {
			s.appendLocked(&v1.Event{
				ProjectID:   req.ProjectID,
				EventID:     eventID,
				PrimaryHash: req.OldPrimaryHash,
				Deleted:     true,
				OccurredAt:  time.Now().UTC(),
			})
		}
		return nil
	}

	targets := make(map[string]struct{}, len(req.EventIDs))
	for _, id := range req.EventIDs {
		targets[id] = struct{}{}
	}
	for _, row := range s.visibleLocked(req.ProjectID) {
		if _, ok := targets[row.EventID]; !ok {
			continue
		}
		row.Deleted = true
		row.Data = nil
		s.appendLocked(&row)
	}
	return nil
}

func (s *EventStore) ReassignEvents(ctx context.Context, projectID int64, eventIDs []string, groupID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	targets := make(map[string]struct{}, len(eventIDs))
	for _, id := range eventIDs {
		targets[id] = struct{}{}
	}
	for _, row := range s.visibleLocked(projectID) {
		if _, ok := targets[row.EventID]; !ok {
			continue
		}
		row.GroupID = groupID
		s.appendLocked(&row)
	}
	return nil
}
