// Package memory provides in-process implementations of the storage
// interfaces. They back single-process runs (database.type=memory) and the
// engine's scenario tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
	"github.com/aevon-lab/reprocessor/internal/core/storage"
)

// OwnedRecord is a generic group-owned row (assignee, bookmark, ...).
type OwnedRecord struct {
	ID      int64
	GroupID int64
}

type redirect struct {
	projectID int64
	groupID   int64
}

type groupState struct {
	groups     map[int64]v1.Group
	activities map[int64]v1.Activity
	records    map[v1.GroupModel][]OwnedRecord
	redirects  map[int64]redirect
}

func (s *groupState) clone() *groupState {
	out := &groupState{
		groups:     make(map[int64]v1.Group, len(s.groups)),
		activities: make(map[int64]v1.Activity, len(s.activities)),
		records:    make(map[v1.GroupModel][]OwnedRecord, len(s.records)),
		redirects:  make(map[int64]redirect, len(s.redirects)),
	}
	for id, g := range s.groups {
		out.groups[id] = g
	}
	for id, a := range s.activities {
		out.activities[id] = a
	}
	for model, recs := range s.records {
		out.records[model] = append([]OwnedRecord(nil), recs...)
	}
	for id, r := range s.redirects {
		out.redirects[id] = r
	}
	return out
}

// GroupStore implements storage.GroupStore. Transactions are serialized and
// applied copy-on-write, so a failed fn leaves no trace.
type GroupStore struct {
	mu     sync.Mutex
	state  *groupState
	nextID int64
}

func NewGroupStore() *GroupStore {
	return &GroupStore{
		state: &groupState{
			groups:     make(map[int64]v1.Group),
			activities: make(map[int64]v1.Activity),
			records:    make(map[v1.GroupModel][]OwnedRecord),
			redirects:  make(map[int64]redirect),
		},
	}
}

// PutGroup inserts or replaces a group row.
func (s *GroupStore) PutGroup(group v1.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.groups[group.ID] = group
}

// AddRecord attaches an owned record of the given model to a group.
func (s *GroupStore) AddRecord(model v1.GroupModel, groupID int64) OwnedRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec := OwnedRecord{ID: s.nextID, GroupID: groupID}
	s.state.records[model] = append(s.state.records[model], rec)
	return rec
}

// Records returns the owned records of one model.
func (s *GroupStore) Records(model v1.GroupModel) []OwnedRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]OwnedRecord(nil), s.state.records[model]...)
}

func (s *GroupStore) WithTx(ctx context.Context, fn func(tx storage.GroupTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &groupTx{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

func (s *GroupStore) GetGroup(ctx context.Context, groupID int64) (*v1.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.state.groups[groupID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &g, nil
}

func (s *GroupStore) ListGroupsByStatus(ctx context.Context, status v1.GroupStatus, limit int) ([]*v1.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var groups []*v1.Group
	for _, g := range s.state.groups {
		if g.Status == status {
			g := g
			groups = append(groups, &g)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}
	return groups, nil
}

func (s *GroupStore) CreateActivity(ctx context.Context, activity *v1.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.state.activities[activity.ID]; exists {
		return fmt.Errorf("activity %d already exists", activity.ID)
	}
	s.state.activities[activity.ID] = *activity
	return nil
}

func (s *GroupStore) ListActivities(ctx context.Context, groupID int64) ([]*v1.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return listActivities(s.state, groupID), nil
}

func (s *GroupStore) GetRedirect(ctx context.Context, previousGroupID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.state.redirects[previousGroupID]
	if !ok {
		return 0, storage.ErrNotFound
	}
	return r.groupID, nil
}

func listActivities(state *groupState, groupID int64) []*v1.Activity {
	var out []*v1.Activity
	for _, a := range state.activities {
		if a.GroupID == groupID {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

type groupTx struct {
	state *groupState
}

func (t *groupTx) GetGroupForUpdate(ctx context.Context, groupID int64) (*v1.Group, error) {
	g, ok := t.state.groups[groupID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &g, nil
}

func (t *groupTx) UpdateGroup(ctx context.Context, group *v1.Group) error {
	current, ok := t.state.groups[group.ID]
	if !ok {
		return storage.ErrNotFound
	}
	current.Status = group.Status
	current.ShortID = group.ShortID
	current.TimesSeen = group.TimesSeen
	if err := t.checkShortID(current); err != nil {
		return err
	}
	t.state.groups[group.ID] = current
	return nil
}

func (t *groupTx) InsertGroup(ctx context.Context, group *v1.Group) error {
	if _, exists := t.state.groups[group.ID]; exists {
		return fmt.Errorf("group %d already exists", group.ID)
	}
	if err := t.checkShortID(*group); err != nil {
		return err
	}
	t.state.groups[group.ID] = *group
	return nil
}

// checkShortID enforces the (project_id, short_id) unique index.
func (t *groupTx) checkShortID(group v1.Group) error {
	if group.ShortID == nil {
		return nil
	}
	for id, other := range t.state.groups {
		if id == group.ID || other.ShortID == nil {
			continue
		}
		if other.ProjectID == group.ProjectID && *other.ShortID == *group.ShortID {
			return fmt.Errorf("short_id %d already taken in project %d by group %d", *group.ShortID, group.ProjectID, id)
		}
	}
	return nil
}

func (t *groupTx) DeleteGroup(ctx context.Context, groupID int64) error {
	delete(t.state.groups, groupID)
	kept := t.state.records[v1.GroupModelInbox][:0]
	for _, rec := range t.state.records[v1.GroupModelInbox] {
		if rec.GroupID != groupID {
			kept = append(kept, rec)
		}
	}
	t.state.records[v1.GroupModelInbox] = kept
	return nil
}

func (t *groupTx) MigrateGroupRecords(ctx context.Context, fromGroupID, toGroupID int64, models []v1.GroupModel) (map[v1.GroupModel]int64, error) {
	moved := make(map[v1.GroupModel]int64, len(models))
	for _, model := range models {
		moved[model] = 0
		if model == v1.GroupModelActivity {
			for id, a := range t.state.activities {
				if a.GroupID == fromGroupID {
					a.GroupID = toGroupID
					t.state.activities[id] = a
					moved[model]++
				}
			}
			continue
		}
		recs := t.state.records[model]
		for i := range recs {
			if recs[i].GroupID == fromGroupID {
				recs[i].GroupID = toGroupID
				moved[model]++
			}
		}
	}
	return moved, nil
}

func (t *groupTx) FindActivity(ctx context.Context, groupID int64, activityType v1.ActivityType) (*v1.Activity, error) {
	activities := listActivities(t.state, groupID)
	for i := len(activities) - 1; i >= 0; i-- {
		if activities[i].Type == activityType {
			return activities[i], nil
		}
	}
	return nil, storage.ErrNotFound
}

func (t *groupTx) InsertRedirect(ctx context.Context, projectID, previousGroupID, groupID int64) error {
	t.state.redirects[previousGroupID] = redirect{projectID: projectID, groupID: groupID}
	return nil
}
