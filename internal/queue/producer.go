package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aevon-lab/reprocessor/internal/reprocessing"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

// Producer enqueues reprocessing jobs. It implements reprocessing.JobScheduler.
type Producer struct {
	client redis.UniversalClient
	stream string
}

func NewProducer(client redis.UniversalClient, stream string) *Producer {
	return &Producer{client: client, stream: stream}
}

func (p *Producer) ScheduleGroup(ctx context.Context, job reprocessing.GroupJob) error {
	return p.enqueue(ctx, groupMessage(job))
}

func (p *Producer) ScheduleEvent(ctx context.Context, job reprocessing.EventJob) error {
	return p.enqueue(ctx, eventMessage(job))
}

func (p *Producer) ScheduleFinish(ctx context.Context, job reprocessing.FinishJob) error {
	return p.enqueue(ctx, finishMessage(job))
}

func (p *Producer) enqueue(ctx context.Context, msg Message) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		msg.TraceID = sc.TraceID().String()
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: messageValues(msg, 1),
	}).Result()
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", msg.TaskType, err)
	}

	slog.DebugContext(ctx, "[Queue] Enqueued job", "job", msg.String(), "message_id", id)
	return nil
}

// IngestProducer hands cached payloads to the ingestion pipeline's stream.
// It implements reprocessing.Ingestor.
type IngestProducer struct {
	client redis.UniversalClient
	stream string
}

func NewIngestProducer(client redis.UniversalClient, stream string) *IngestProducer {
	return &IngestProducer{client: client, stream: stream}
}

func (p *IngestProducer) Enqueue(ctx context.Context, cacheKey string, startTime time.Time, eventID string) error {
	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"cache_key":  cacheKey,
			"start_time": startTime.UTC().Format(time.RFC3339Nano),
			"event_id":   eventID,
		},
	}).Err(); err != nil {
		return fmt.Errorf("enqueue for ingestion: %w", err)
	}
	return nil
}
