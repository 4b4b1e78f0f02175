package memory

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
	"github.com/aevon-lab/reprocessor/internal/core/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupStore_FailedTxLeavesNoTrace(t *testing.T) {
	store := NewGroupStore()
	shortID := int64(3)
	store.PutGroup(v1.Group{ID: 1, ProjectID: 1, ShortID: &shortID, Status: v1.GroupStatusUnresolved})
	store.AddRecord(v1.GroupModelAssignee, 1)

	boom := errors.New("boom")
	err := store.WithTx(context.Background(), func(tx storage.GroupTx) error {
		g, err := tx.GetGroupForUpdate(context.Background(), 1)
		require.NoError(t, err)
		g.Status = v1.GroupStatusReprocessing
		require.NoError(t, tx.UpdateGroup(context.Background(), g))
		_, err = tx.MigrateGroupRecords(context.Background(), 1, 2, []v1.GroupModel{v1.GroupModelAssignee})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	g, err := store.GetGroup(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, v1.GroupStatusUnresolved, g.Status)
	assert.Equal(t, int64(1), store.Records(v1.GroupModelAssignee)[0].GroupID)
}

func TestGroupStore_ShortIDUniqueness(t *testing.T) {
	store := NewGroupStore()
	shortID := int64(3)
	store.PutGroup(v1.Group{ID: 1, ProjectID: 1, ShortID: &shortID})

	err := store.WithTx(context.Background(), func(tx storage.GroupTx) error {
		return tx.InsertGroup(context.Background(), &v1.Group{ID: 2, ProjectID: 1, ShortID: &shortID})
	})
	require.ErrorContains(t, err, "short_id 3 already taken")

	err = store.WithTx(context.Background(), func(tx storage.GroupTx) error {
		return tx.InsertGroup(context.Background(), &v1.Group{ID: 3, ProjectID: 2, ShortID: &shortID})
	})
	require.NoError(t, err)
}

func TestEventStore_MergeOnRead(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()
	now := time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)

	for _, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, store.InsertEvent(ctx, &v1.Event{ProjectID: 1, EventID: id, GroupID: 10, PrimaryHash: "h1", OccurredAt: now}))
	}

	// e1 was reprocessed into another group under a new hash.
	require.NoError(t, store.InsertEvent(ctx, &v1.Event{ProjectID: 1, EventID: "e1", GroupID: 20, PrimaryHash: "h2", OccurredAt: now}))

	count, err := store.CountGroupEvents(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count, "stale row stays visible until tombstoned")

	require.NoError(t, store.Tombstone(ctx, storage.TombstoneRequest{ProjectID: 1, EventIDs: []string{"e1"}, OldPrimaryHash: "h1"}))

	count, err = store.CountGroupEvents(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	evt, err := store.GetEvent(ctx, 1, "e1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), evt.GroupID)

	require.NoError(t, store.ReassignEvents(ctx, 1, []string{"e3"}, 20))
	page, err := store.ListGroupEvents(ctx, 1, 10, 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "e2", page[0].EventID)

	require.NoError(t, store.Tombstone(ctx, storage.TombstoneRequest{ProjectID: 1, EventIDs: []string{"e2"}}))
	_, err = store.GetEvent(ctx, 1, "e2")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEventStore_ListGroupEventsPaginates(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()
	for _, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, store.InsertEvent(ctx, &v1.Event{ProjectID: 1, EventID: id, GroupID: 10, PrimaryHash: "h"}))
	}

	first, err := store.ListGroupEvents(ctx, 1, 10, 0, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)

	rest, err := store.ListGroupEvents(ctx, 1, 10, first[1].IngestSeq, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "e3", rest[0].EventID)
}

func TestCounter_RedisSemantics(t *testing.T) {
	counter := NewCounter()
	ctx := context.Background()
	now := time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)
	counter.SetClock(func() time.Time { return now })

	require.NoError(t, counter.SetEx(ctx, "re2:count:1", time.Hour, "2"))
	n, err := counter.Decr(ctx, "re2:count:1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	now = now.Add(2 * time.Hour)
	_, err = counter.Get(ctx, "re2:count:1")
	require.ErrorIs(t, err, storage.ErrNotFound)

	n, err = counter.Decr(ctx, "re2:count:missing")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), n)
}

func TestCounter_ConcurrentDecrementReachesZeroOnce(t *testing.T) {
	counter := NewCounter()
	ctx := context.Background()
	require.NoError(t, counter.SetEx(ctx, "re2:count:1", time.Hour, "1"))

	var zeros atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if n, _ := counter.Decr(ctx, "re2:count:1"); n == 0 {
				zeros.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), zeros.Load())
}

func TestNodeAndAttachmentStores(t *testing.T) {
	ctx := context.Background()

	nodes := NewNodeStore()
	require.NoError(t, nodes.SetSubkeys(ctx, "n1", map[string]v1.Payload{
		storage.UnprocessedSubkey: {"event_id": "e1"},
	}))
	_, err := nodes.Get(ctx, "n1", "")
	require.ErrorIs(t, err, storage.ErrNotFound)
	p, err := nodes.Get(ctx, "n1", storage.UnprocessedSubkey)
	require.NoError(t, err)
	assert.Equal(t, "e1", p.EventID())

	attachments := NewAttachmentStore()
	attachments.Add(v1.EventAttachment{ID: 5, ProjectID: 1, EventID: "e1", Type: v1.AttachmentTypeMinidump, Size: 3}, []byte("abc"))

	list, err := attachments.ListEventAttachments(ctx, 1, "e1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	rc, err := attachments.OpenAttachment(ctx, list[0])
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}
