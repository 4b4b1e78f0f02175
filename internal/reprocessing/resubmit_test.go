package reprocessing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
	"github.com/aevon-lab/reprocessor/internal/core/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minidumpPayload(eventID string) v1.Payload {
	return v1.Payload{
		"project":  testProjectID,
		"event_id": eventID,
		"platform": "native",
		"exception": map[string]interface{}{
			"values": []interface{}{
				map[string]interface{}{"mechanism": map[string]interface{}{"type": "minidump"}},
			},
		},
	}
}

func TestFindUnprocessedPayload_LookupOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.seedGroup(t, 100, 1, "e1")

	payload, source, err := f.engine.findUnprocessedPayload(ctx, testProjectID, "e1")
	require.NoError(t, err)
	assert.Equal(t, "event_node", source)
	assert.Equal(t, "python", payload["platform"])

	require.NoError(t, f.cache.Set(ctx, storage.UnprocessedCacheKey(testProjectID, "e1"), v1.Payload{"platform": "cached"}, time.Hour))
	payload, source, err = f.engine.findUnprocessedPayload(ctx, testProjectID, "e1")
	require.NoError(t, err)
	assert.Equal(t, "cache", source)
	assert.Equal(t, "cached", payload["platform"])

	require.NoError(t, f.nodes.Set(ctx, storage.UnprocessedNodeID(testProjectID, "e2"), v1.Payload{"platform": "moved"}))
	payload, source, err = f.engine.findUnprocessedPayload(ctx, testProjectID, "e2")
	require.NoError(t, err)
	assert.Equal(t, "unprocessed_node", source)
	assert.Equal(t, "moved", payload["platform"])
}

type brokenLookup struct{}

func (brokenLookup) Name() string { return "broken" }

func (brokenLookup) Lookup(ctx context.Context, projectID int64, eventID string) (v1.Payload, error) {
	return nil, errors.New("timeout")
}

func TestFindUnprocessedPayload_TransientErrorIsNotAbsence(t *testing.T) {
	f := newFixture(t, Config{})
	f.engine.lookups = []PayloadLookup{brokenLookup{}}

	_, _, err := f.engine.findUnprocessedPayload(context.Background(), testProjectID, "e1")
	require.Error(t, err)
	assert.False(t, IsTerminal(err))
}

func TestReprocessEvent_HandsPayloadToIngestion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{ChunkSize: 4})
	f.seedGroup(t, 100, 1)
	f.seedEvent(t, 100, "e1", "hash-a", minidumpPayload("e1"))
	f.attachments.Add(v1.EventAttachment{ID: 9, ProjectID: testProjectID, EventID: "e1", Type: v1.AttachmentTypeMinidump, Name: "crash.dmp", Size: 10}, []byte("0123456789"))
	f.attachments.Add(v1.EventAttachment{ID: 10, ProjectID: testProjectID, EventID: "e1", Type: v1.AttachmentTypeDefault, Name: "log.txt", Size: 0}, nil)
	start := f.now.Add(-time.Minute)

	require.NoError(t, f.engine.ReprocessEvent(ctx, testProjectID, "e1", start))

	handoffs := f.ingest.drain()
	require.Len(t, handoffs, 1)
	h := handoffs[0]
	assert.Equal(t, "e1", h.EventID)
	assert.True(t, h.StartTime.Equal(start))
	assert.True(t, strings.HasPrefix(h.CacheKey, "e:"))

	payload, err := f.cache.Get(ctx, h.CacheKey)
	require.NoError(t, err)
	groupID, ok := OriginalIssueID(payload)
	require.True(t, ok)
	assert.Equal(t, int64(100), groupID)
	assert.Equal(t, "hash-a", OriginalPrimaryHash(payload))
	assert.True(t, IsReprocessedEvent(payload))

	descriptors, err := f.cache.GetAttachments(ctx, h.CacheKey)
	require.NoError(t, err)
	require.Len(t, descriptors, 2)
	assert.Equal(t, v1.CachedAttachment{Key: h.CacheKey, ID: 0, Name: "crash.dmp", Type: v1.AttachmentTypeMinidump, Chunks: 3, Size: 10}, descriptors[0])
	assert.Equal(t, v1.CachedAttachment{Key: h.CacheKey, ID: 1, Name: "log.txt", Type: v1.AttachmentTypeDefault, Chunks: 0, Size: 0}, descriptors[1])

	var data []byte
	for i := 0; i < descriptors[0].Chunks; i++ {
		chunk, err := f.cache.GetChunk(ctx, h.CacheKey, 0, i)
		require.NoError(t, err)
		data = append(data, chunk...)
	}
	assert.Equal(t, "0123456789", string(data))
}

func TestReprocessEvent_NoAttachmentsPublishesNoDescriptors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.seedGroup(t, 100, 1, "e1")

	require.NoError(t, f.engine.ReprocessEvent(ctx, testProjectID, "e1", f.now))

	handoffs := f.ingest.drain()
	require.Len(t, handoffs, 1)
	_, err := f.cache.GetAttachments(ctx, handoffs[0].CacheKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReprocessEvent_CannotReprocess(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(t *testing.T, f *fixture)
		wantKind   CannotReprocessKind
		wantReason string
	}{
		{
			name:       "payload missing everywhere",
			setup:      func(t *testing.T, f *fixture) {},
			wantKind:   PayloadNotFound,
			wantReason: "reprocessing_nodestore.not_found",
		},
		{
			name: "event row missing",
			setup: func(t *testing.T, f *fixture) {
				require.NoError(t, f.nodes.Set(context.Background(), storage.UnprocessedNodeID(testProjectID, "e1"), v1.Payload{"event_id": "e1"}))
			},
			wantKind:   EventNotFound,
			wantReason: "event.not_found",
		},
		{
			name: "required minidump missing",
			setup: func(t *testing.T, f *fixture) {
				f.seedEvent(t, 100, "e1", "hash-a", minidumpPayload("e1"))
				f.attachments.Add(v1.EventAttachment{ID: 1, ProjectID: testProjectID, EventID: "e1", Type: v1.AttachmentTypeDefault, Size: 1}, []byte("x"))
			},
			wantKind:   MissingAttachment,
			wantReason: "attachment.not_found.event.minidump",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			f.seedGroup(t, 100, 1)
			tt.setup(t, f)

			err := f.engine.ReprocessEvent(context.Background(), testProjectID, "e1", f.now)
			require.ErrorIs(t, err, ErrCannotReprocess)
			var cannot *CannotReprocessError
			require.ErrorAs(t, err, &cannot)
			assert.Equal(t, tt.wantKind, cannot.Kind)
			assert.Equal(t, tt.wantReason, cannot.Reason())
			assert.True(t, IsTerminal(err))
			assert.Empty(t, f.ingest.drain())
			assert.Empty(t, f.cache.Keys())
		})
	}
}

func TestCannotReprocessError_ReasonJoinsMissingTypes(t *testing.T) {
	err := &CannotReprocessError{Kind: MissingAttachment, MissingTypes: []string{"event.applecrashreport", "event.minidump"}}
	assert.Equal(t, "attachment.not_found.event.applecrashreport_and_event.minidump", err.Reason())
}

func TestReprocessEvent_SizeMismatchLeavesNothingBehind(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{ChunkSize: 2})
	f.seedGroup(t, 100, 1)
	f.seedEvent(t, 100, "e1", "hash-a", minidumpPayload("e1"))
	f.attachments.Add(v1.EventAttachment{ID: 1, ProjectID: testProjectID, EventID: "e1", Type: v1.AttachmentTypeMinidump, Size: 4}, []byte("abcd"))
	f.attachments.Add(v1.EventAttachment{ID: 2, ProjectID: testProjectID, EventID: "e1", Type: v1.AttachmentTypeDefault, Size: 8}, []byte("short"))

	err := f.engine.ReprocessEvent(ctx, testProjectID, "e1", f.now)
	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, int64(2), integrity.AttachmentID)
	assert.Equal(t, int64(8), integrity.Expected)
	assert.Equal(t, int64(5), integrity.Actual)
	assert.True(t, IsTerminal(err))

	assert.Empty(t, f.cache.Keys())
	assert.Empty(t, f.ingest.drain())
}

func TestReprocessEvent_IngestionFailureIsRetryable(t *testing.T) {
	f := newFixture(t, Config{})
	f.seedGroup(t, 100, 1, "e1")
	f.ingest.err = errors.New("stream unavailable")

	err := f.engine.ReprocessEvent(context.Background(), testProjectID, "e1", f.now)
	require.Error(t, err)
	assert.False(t, IsTerminal(err))
}

func TestClassifyPayload(t *testing.T) {
	withMechanism := func(platform, mechanism string) v1.Payload {
		p := v1.Payload{"platform": platform}
		p.SetPath([]interface{}{
			map[string]interface{}{"mechanism": map[string]interface{}{"type": mechanism}},
		}, "exception", "values")
		return p
	}

	tests := []struct {
		name     string
		payload  v1.Payload
		want     PayloadKind
		required []string
	}{
		{name: "minidump", payload: withMechanism("native", "minidump"), want: PayloadMinidump, required: []string{v1.AttachmentTypeMinidump}},
		{name: "unreal crash", payload: withMechanism("native", "unreal"), want: PayloadMinidump, required: []string{v1.AttachmentTypeMinidump}},
		{name: "apple crash report", payload: withMechanism("cocoa", "applecrashreport"), want: PayloadAppleCrashReport, required: []string{v1.AttachmentTypeAppleCrashReport}},
		{name: "generic native", payload: withMechanism("cocoa", "signal"), want: PayloadGenericNative},
		{name: "non native", payload: v1.Payload{"platform": "python"}, want: PayloadNonNative},
		{name: "empty exception list", payload: v1.Payload{"platform": "native", "exception": map[string]interface{}{"values": []interface{}{}}}, want: PayloadGenericNative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind := ClassifyPayload(tt.payload)
			assert.Equal(t, tt.want, kind)
			assert.Equal(t, tt.required, RequiredAttachmentTypes(kind))
		})
	}
}
