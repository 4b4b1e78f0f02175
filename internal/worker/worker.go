// Package worker consumes the reprocessing job stream and dispatches each job
// to the engine.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aevon-lab/reprocessor/internal/core/logger"
	"github.com/aevon-lab/reprocessor/internal/queue"
	"github.com/aevon-lab/reprocessor/internal/reprocessing"
	"golang.org/x/sync/errgroup"
)

// Consumer abstracts the job stream for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Claim(ctx context.Context, minIdle time.Duration) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// Engine is the part of the reprocessing engine the worker drives.
type Engine interface {
	ReprocessGroup(ctx context.Context, job reprocessing.GroupJob) error
	HandleEventJob(ctx context.Context, job reprocessing.EventJob) error
	FinishReprocessing(ctx context.Context, projectID, groupID int64) error
	MarkEventFailed(ctx context.Context, projectID, groupID int64) error
}

type Config struct {
	MaxAttempts     int
	Concurrency     int
	ReclaimMinIdle  time.Duration
	ReclaimInterval time.Duration
}

type Worker struct {
	consumer Consumer
	engine   Engine
	cfg      Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, engine Engine, cfg Config) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Worker{
		consumer:  consumer,
		engine:    engine,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run reads and processes batches until ctx is cancelled or Stop is called.
// Pending jobs of crashed consumers are reclaimed every ReclaimInterval.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "worker"})
	slog.InfoContext(ctx, "[Worker] Started", "concurrency", w.cfg.Concurrency, "max_attempts", w.cfg.MaxAttempts)

	var reclaim <-chan time.Time
	if w.cfg.ReclaimInterval > 0 {
		ticker := time.NewTicker(w.cfg.ReclaimInterval)
		defer ticker.Stop()
		reclaim = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "[Worker] Stopping")
			return nil
		case <-reclaim:
			if err := w.reclaimOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "[Worker] Reclaim cycle failed", "error", err)
			}
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "[Worker] Batch processing failed", "error", err)
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
				}
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}
	w.processAll(ctx, messages)
	return nil
}

func (w *Worker) reclaimOnce(ctx context.Context) error {
	messages, err := w.consumer.Claim(ctx, w.cfg.ReclaimMinIdle)
	if err != nil {
		return err
	}
	if len(messages) > 0 {
		slog.InfoContext(ctx, "[Worker] Reclaimed stale messages", "count", len(messages))
	}
	w.processAll(ctx, messages)
	return nil
}

// processAll handles a batch with at most Concurrency jobs in flight.
func (w *Worker) processAll(ctx context.Context, messages []queue.Message) {
	var g errgroup.Group
	g.SetLimit(w.cfg.Concurrency)
	for _, msg := range messages {
		msg := msg
		g.Go(func() error {
			w.handleMessage(ctx, msg)
			return nil
		})
	}
	_ = g.Wait()
}

func (w *Worker) handleMessage(ctx context.Context, msg queue.Message) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: logger.Ptr(msg.ID),
		ProjectID: logger.Ptr(msg.ProjectID),
		GroupID:   logger.Ptr(msg.GroupID),
	})

	start := time.Now()
	if err := w.processMessageSafe(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "[Worker] Job failed", "job", msg.String(), "attempt", msg.Attempt, "error", err)
		w.handleFailedMessage(ctx, msg, err)
		return
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// The job will be reclaimed and run again; every job tolerates that.
		slog.WarnContext(ctx, "[Worker] Failed to ack message", "error", err)
	}
	slog.DebugContext(ctx, "[Worker] Job done", "job", msg.String(), "duration_ms", time.Since(start).Milliseconds())
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "[Worker] Panic recovered", "panic", r, "job", msg.String())
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// ProcessMessage runs the engine operation of one job.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	switch msg.TaskType {
	case queue.TaskTypeReprocessGroup:
		return w.engine.ReprocessGroup(ctx, msg.GroupJob())
	case queue.TaskTypeReprocessEvent:
		ctx = logger.WithLogFields(ctx, logger.LogFields{EventID: logger.Ptr(msg.EventID)})
		return w.engine.HandleEventJob(ctx, msg.EventJob())
	case queue.TaskTypeFinishReprocessing:
		return w.engine.FinishReprocessing(ctx, msg.ProjectID, msg.GroupID)
	default:
		return fmt.Errorf("unknown task_type %q", msg.TaskType)
	}
}

// handleFailedMessage requeues msg, or parks it on the DLQ after the last
// attempt. An event job that gives up still counts towards completion.
func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Attempt < w.cfg.MaxAttempts {
		if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
			slog.ErrorContext(ctx, "[Worker] Failed to requeue message", "error", requeueErr)
		}
		return
	}

	slog.ErrorContext(ctx, "[Worker] Max attempts reached, sending to DLQ", "job", msg.String(), "attempts", msg.Attempt)
	if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
		slog.ErrorContext(ctx, "[Worker] Failed to send to DLQ", "error", dlqErr)
		return
	}

	if msg.TaskType == queue.TaskTypeReprocessEvent {
		if markErr := w.engine.MarkEventFailed(ctx, msg.ProjectID, msg.GroupID); markErr != nil {
			slog.ErrorContext(ctx, "[Worker] Failed to count abandoned event", "error", markErr)
		}
	}
}
