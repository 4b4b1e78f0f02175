// Package reprocessing forks an error group into a frozen old identity and a
// live new one, resubmits the old group's raw payloads through ingestion and
// tracks completion through a distributed counter.
package reprocessing

import (
	"context"
	"fmt"
	"time"

	"github.com/aevon-lab/reprocessor/internal/core/id"
	"github.com/aevon-lab/reprocessor/internal/core/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultBatchSize    = 1000
	defaultChunkSize    = 8 << 20
	defaultCacheTimeout = time.Hour
	defaultCounterTTL   = 24 * time.Hour
)

var tracer = otel.Tracer("github.com/aevon-lab/reprocessor/internal/reprocessing")

// Ingestor hands a cached payload to the ingestion pipeline.
type Ingestor interface {
	Enqueue(ctx context.Context, cacheKey string, startTime time.Time, eventID string) error
}

// JobScheduler enqueues the follow-up jobs of a reprocessing run.
type JobScheduler interface {
	ScheduleGroup(ctx context.Context, job GroupJob) error
	ScheduleEvent(ctx context.Context, job EventJob) error
	ScheduleFinish(ctx context.Context, job FinishJob) error
}

// GroupJob enumerates one page of the old group's events. Cursor and
// Selected carry the position of the previous page.
type GroupJob struct {
	ProjectID       int64           `json:"project_id"`
	GroupID         int64           `json:"group_id"`
	NewGroupID      int64           `json:"new_group_id"`
	RemainingEvents RemainingEvents `json:"remaining_events"`
	MaxEvents       *int64          `json:"max_events,omitempty"`
	StartTime       time.Time       `json:"start_time"`
	Cursor          int64           `json:"cursor"`
	Selected        int64           `json:"selected"`
}

// EventJob resubmits one event. GroupID is the old group.
type EventJob struct {
	ProjectID int64     `json:"project_id"`
	EventID   string    `json:"event_id"`
	GroupID   int64     `json:"group_id"`
	StartTime time.Time `json:"start_time"`
}

// FinishJob finalizes the old group once its counter reached zero.
type FinishJob struct {
	ProjectID int64 `json:"project_id"`
	GroupID   int64 `json:"group_id"`
}

// Config tunes the engine. Zero values fall back to defaults.
type Config struct {
	BatchSize     int
	ChunkSize     int
	CacheTimeout  time.Duration
	CounterTTL    time.Duration
	ForceDisabled bool
}

func (c Config) normalized() Config {
	n := c
	if n.BatchSize <= 0 {
		n.BatchSize = defaultBatchSize
	}
	if n.ChunkSize <= 0 {
		n.ChunkSize = defaultChunkSize
	}
	if n.CacheTimeout <= 0 {
		n.CacheTimeout = defaultCacheTimeout
	}
	if n.CounterTTL <= 0 {
		n.CounterTTL = defaultCounterTTL
	}
	return n
}

// Stores groups the storage collaborators of the engine.
type Stores struct {
	Groups      storage.GroupStore
	Events      storage.EventStore
	Nodes       storage.NodeStore
	Attachments storage.AttachmentStore
	Cache       storage.PayloadCache
	Counter     storage.CounterStore
}

// Engine implements every reprocessing operation. It holds no per-group
// state; coordination happens in the group store and the counter service.
type Engine struct {
	groups      storage.GroupStore
	events      storage.EventStore
	nodes       storage.NodeStore
	attachments storage.AttachmentStore
	cache       storage.PayloadCache
	counter     storage.CounterStore

	ingest  Ingestor
	jobs    JobScheduler
	ids     id.Generator
	lookups []PayloadLookup
	cfg     Config
	now     func() time.Time
}

// NewEngine wires the engine with the default payload lookup order.
func NewEngine(stores Stores, ingest Ingestor, jobs JobScheduler, ids id.Generator, cfg Config) *Engine {
	return &Engine{
		groups:      stores.Groups,
		events:      stores.Events,
		nodes:       stores.Nodes,
		attachments: stores.Attachments,
		cache:       stores.Cache,
		counter:     stores.Counter,
		ingest:      ingest,
		jobs:        jobs,
		ids:         ids,
		lookups:     DefaultLookups(stores.Cache, stores.Nodes),
		cfg:         cfg.normalized(),
		now:         time.Now,
	}
}

func counterKey(groupID int64) string {
	return fmt.Sprintf("re2:count:%d", groupID)
}

func infoKey(groupID int64) string {
	return fmt.Sprintf("re2:info:%d", groupID)
}

// endSpan records err on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
