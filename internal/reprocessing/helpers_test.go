package reprocessing

import (
	"context"
	"sync"
	"testing"
	"time"

	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
	"github.com/aevon-lab/reprocessor/internal/core/storage"
	"github.com/aevon-lab/reprocessor/internal/core/storage/memory"
	"github.com/stretchr/testify/require"
)

const testProjectID = int64(1)

type sequentialIDs struct {
	mu   sync.Mutex
	next int64
}

func (s *sequentialIDs) NewID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return s.next
}

type handoff struct {
	CacheKey  string
	StartTime time.Time
	EventID   string
}

type recordingIngestor struct {
	mu       sync.Mutex
	handoffs []handoff
	err      error
}

func (r *recordingIngestor) Enqueue(ctx context.Context, cacheKey string, startTime time.Time, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.handoffs = append(r.handoffs, handoff{CacheKey: cacheKey, StartTime: startTime, EventID: eventID})
	return nil
}

func (r *recordingIngestor) drain() []handoff {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.handoffs
	r.handoffs = nil
	return out
}

type recordingScheduler struct {
	mu       sync.Mutex
	groups   []GroupJob
	events   []EventJob
	finishes []FinishJob
}

func (r *recordingScheduler) ScheduleGroup(ctx context.Context, job GroupJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups = append(r.groups, job)
	return nil
}

func (r *recordingScheduler) ScheduleEvent(ctx context.Context, job EventJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, job)
	return nil
}

func (r *recordingScheduler) ScheduleFinish(ctx context.Context, job FinishJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishes = append(r.finishes, job)
	return nil
}

func (r *recordingScheduler) finishCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.finishes)
}

type fixture struct {
	engine      *Engine
	groups      *memory.GroupStore
	events      *memory.EventStore
	nodes       *memory.NodeStore
	attachments *memory.AttachmentStore
	cache       *memory.PayloadCache
	counter     *memory.Counter
	ingest      *recordingIngestor
	jobs        *recordingScheduler
	now         time.Time
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		groups:      memory.NewGroupStore(),
		events:      memory.NewEventStore(),
		nodes:       memory.NewNodeStore(),
		attachments: memory.NewAttachmentStore(),
		cache:       memory.NewPayloadCache(),
		counter:     memory.NewCounter(),
		ingest:      &recordingIngestor{},
		jobs:        &recordingScheduler{},
		now:         time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.engine = NewEngine(Stores{
		Groups:      f.groups,
		Events:      f.events,
		Nodes:       f.nodes,
		Attachments: f.attachments,
		Cache:       f.cache,
		Counter:     f.counter,
	}, f.ingest, f.jobs, &sequentialIDs{next: 1000}, cfg)
	f.engine.now = func() time.Time { return f.now }
	return f
}

// seedGroup creates an unresolved group with the given events, each archived
// with an unprocessed payload under the event node.
func (f *fixture) seedGroup(t *testing.T, groupID int64, shortID int64, eventIDs ...string) {
	t.Helper()
	f.groups.PutGroup(v1.Group{
		ID:        groupID,
		ProjectID: testProjectID,
		ShortID:   &shortID,
		Status:    v1.GroupStatusUnresolved,
		TimesSeen: int64(len(eventIDs)),
		Message:   "boom",
	})
	for _, eventID := range eventIDs {
		f.seedEvent(t, groupID, eventID, "hash-a", v1.Payload{"project": testProjectID, "event_id": eventID, "platform": "python"})
	}
}

func (f *fixture) seedEvent(t *testing.T, groupID int64, eventID, hash string, unprocessed v1.Payload) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.events.InsertEvent(ctx, &v1.Event{
		ProjectID:   testProjectID,
		EventID:     eventID,
		GroupID:     groupID,
		PrimaryHash: hash,
		OccurredAt:  f.now,
		Data:        v1.Payload{"event_id": eventID},
	}))
	require.NoError(t, f.nodes.SetSubkeys(ctx, storage.EventNodeID(testProjectID, eventID), map[string]v1.Payload{
		"":                        {"event_id": eventID},
		storage.UnprocessedSubkey: unprocessed,
	}))
}

func int64Ptr(v int64) *int64 { return &v }
