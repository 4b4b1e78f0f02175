package reprocessing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedEvents(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("e%02d", i)
	}
	return ids
}

// runGroupJobs drives ReprocessGroup through every continuation page.
func runGroupJobs(t *testing.T, f *fixture, job GroupJob) {
	t.Helper()
	queue := []GroupJob{job}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		before := len(f.jobs.groups)
		require.NoError(t, f.engine.ReprocessGroup(context.Background(), next))
		queue = append(queue, f.jobs.groups[before:]...)
	}
}

func TestReprocessGroup_SchedulesEveryEvent(t *testing.T) {
	f := newFixture(t, Config{BatchSize: 2})
	f.seedGroup(t, 100, 1, seedEvents(5)...)

	runGroupJobs(t, f, GroupJob{ProjectID: testProjectID, GroupID: 100, NewGroupID: 200, RemainingEvents: RemainingEventsKeep, StartTime: f.now})

	require.Len(t, f.jobs.events, 5)
	for i, job := range f.jobs.events {
		assert.Equal(t, EventJob{ProjectID: testProjectID, EventID: fmt.Sprintf("e%02d", i), GroupID: 100, StartTime: f.now}, job)
	}
	assert.Len(t, f.jobs.groups, 2, "two full pages schedule two continuations")
	assert.Zero(t, f.jobs.finishCount())
}

func TestReprocessGroup_RemainingEventsPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("keep moves the rest to the new group", func(t *testing.T) {
		f := newFixture(t, Config{BatchSize: 2})
		f.seedGroup(t, 100, 1, seedEvents(5)...)

		runGroupJobs(t, f, GroupJob{ProjectID: testProjectID, GroupID: 100, NewGroupID: 200, RemainingEvents: RemainingEventsKeep, MaxEvents: int64Ptr(3)})

		assert.Len(t, f.jobs.events, 3)
		moved, err := f.events.CountGroupEvents(ctx, testProjectID, 200)
		require.NoError(t, err)
		assert.Equal(t, int64(2), moved)
		left, err := f.events.CountGroupEvents(ctx, testProjectID, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(3), left)
	})

	t.Run("delete tombstones the rest", func(t *testing.T) {
		f := newFixture(t, Config{BatchSize: 2})
		f.seedGroup(t, 100, 1, seedEvents(5)...)

		runGroupJobs(t, f, GroupJob{ProjectID: testProjectID, GroupID: 100, NewGroupID: 200, RemainingEvents: RemainingEventsDelete, MaxEvents: int64Ptr(3)})

		assert.Len(t, f.jobs.events, 3)
		left, err := f.events.CountGroupEvents(ctx, testProjectID, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(3), left)
		_, err = f.events.GetEvent(ctx, testProjectID, "e04")
		assert.Error(t, err)
	})
}

func TestReprocessGroup_EmptyGroupFinishesImmediately(t *testing.T) {
	f := newFixture(t, Config{})
	f.seedGroup(t, 100, 1)

	runGroupJobs(t, f, GroupJob{ProjectID: testProjectID, GroupID: 100, NewGroupID: 200, RemainingEvents: RemainingEventsKeep})

	assert.Empty(t, f.jobs.events)
	require.Equal(t, 1, f.jobs.finishCount())
}

func TestHandleEventJob(t *testing.T) {
	ctx := context.Background()

	t.Run("terminal failure is counted and swallowed", func(t *testing.T) {
		f := newFixture(t, Config{})
		require.NoError(t, f.engine.initProgress(ctx, 100, 1, f.now))

		err := f.engine.HandleEventJob(ctx, EventJob{ProjectID: testProjectID, EventID: "gone", GroupID: 100, StartTime: f.now})
		require.NoError(t, err)

		progress, err := f.engine.GetProgress(ctx, 100)
		require.NoError(t, err)
		assert.Zero(t, progress.Pending)
		assert.Equal(t, 1, f.jobs.finishCount())
	})

	t.Run("transient failure is returned untouched", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.seedGroup(t, 100, 1, "e1")
		require.NoError(t, f.engine.initProgress(ctx, 100, 1, f.now))
		f.ingest.err = fmt.Errorf("stream unavailable")

		err := f.engine.HandleEventJob(ctx, EventJob{ProjectID: testProjectID, EventID: "e1", GroupID: 100, StartTime: f.now})
		require.Error(t, err)

		progress, err := f.engine.GetProgress(ctx, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(1), progress.Pending)
		assert.Zero(t, f.jobs.finishCount())
	})
}
