// Package app wires configuration, storage, the job stream and the
// reprocessing engine into runnable processes.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aevon-lab/reprocessor/internal/core/config"
	"github.com/aevon-lab/reprocessor/internal/core/id"
	"github.com/aevon-lab/reprocessor/internal/core/storage/memory"
	"github.com/aevon-lab/reprocessor/internal/core/storage/postgres"
	"github.com/aevon-lab/reprocessor/internal/core/storage/redisstore"
	"github.com/aevon-lab/reprocessor/internal/core/telemetry"
	"github.com/aevon-lab/reprocessor/internal/httpapi"
	"github.com/aevon-lab/reprocessor/internal/migrations"
	"github.com/aevon-lab/reprocessor/internal/queue"
	"github.com/aevon-lab/reprocessor/internal/reprocessing"
	"github.com/aevon-lab/reprocessor/internal/server"
	"github.com/aevon-lab/reprocessor/internal/worker"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// App holds the long-lived dependencies of one process.
type App struct {
	cfg       *config.Config
	db        *sql.DB
	redis     redis.UniversalClient
	telemetry *telemetry.Telemetry
	closers   []func() error

	Stores reprocessing.Stores
	Jobs   *queue.Producer
	Engine *reprocessing.Engine
}

// New connects to every backing service. Postgres migrations run first when
// database.auto_migrate is set. Call Close when done.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := id.Init(cfg.NodeID); err != nil {
		return nil, err
	}

	a := &App{cfg: cfg}

	tel, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return nil, err
	}
	a.telemetry = tel

	client, err := redisstore.NewClient(cfg.Redis.URL)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.redis = client
	a.closers = append(a.closers, client.Close)

	if err := a.openStores(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.Jobs = queue.NewProducer(client, cfg.Queue.Stream)
	a.Engine = reprocessing.NewEngine(
		a.Stores,
		queue.NewIngestProducer(client, cfg.Queue.IngestStream),
		a.Jobs,
		id.Snowflake{},
		reprocessing.Config{
			BatchSize:     cfg.Reprocessing.BatchSize,
			ChunkSize:     cfg.Reprocessing.ChunkSize,
			CacheTimeout:  cfg.Reprocessing.CacheTimeout,
			CounterTTL:    cfg.Reprocessing.CounterTTL,
			ForceDisabled: cfg.Reprocessing.ForceDisabled,
		},
	)

	slog.Info("[App] Initialized", "database", cfg.Database.Type, "stream", cfg.Queue.Stream, "node_id", cfg.NodeID)
	return a, nil
}

func (a *App) openStores(ctx context.Context) error {
	cache := redisstore.NewPayloadCache(a.redis)
	counter := redisstore.NewCounter(a.redis)

	switch a.cfg.Database.Type {
	case "memory":
		slog.Warn("[App] Using in-memory group and event storage; state is lost on exit")
		a.Stores = reprocessing.Stores{
			Groups:      memory.NewGroupStore(),
			Events:      memory.NewEventStore(),
			Nodes:       memory.NewNodeStore(),
			Attachments: memory.NewAttachmentStore(),
			Cache:       cache,
			Counter:     counter,
		}
		return nil
	case "postgres":
	default:
		return fmt.Errorf("unsupported database.type %q", a.cfg.Database.Type)
	}

	db, err := postgres.Open(a.cfg.Database.DSN, a.cfg.Database.MaxOpenConns, a.cfg.Database.MaxIdleConns)
	if err != nil {
		return err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	if err := migrations.Run(db, a.cfg.Database.AutoMigrate); err != nil {
		return err
	}
	if err := postgres.ValidateSchema(ctx, db); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	events, err := postgres.NewEventAdapter(db)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, events.Close)

	a.Stores = reprocessing.Stores{
		Groups:      postgres.NewGroupAdapter(db),
		Events:      events,
		Nodes:       postgres.NewNodeAdapter(db),
		Attachments: postgres.NewAttachmentAdapter(db),
		Cache:       cache,
		Counter:     counter,
	}
	return nil
}

// Close releases connections in reverse order of opening and flushes traces.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := a.telemetry.Shutdown(context.Background()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) healthChecks() map[string]server.HealthChecker {
	checks := map[string]server.HealthChecker{
		"redis": server.HealthCheckFunc(func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		}),
	}
	if a.db != nil {
		checks["database"] = server.HealthCheckFunc(a.db.PingContext)
	}
	return checks
}

// Serve runs the HTTP API until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	srv := server.New(
		fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port),
		a.cfg.Server.Mode,
		a.cfg.Telemetry.ServiceName,
		a.healthChecks(),
	)
	httpapi.NewService(a.Engine, a.Jobs, a.Stores.Groups, a.cfg.Server.MaxBodySizeMB).RegisterRoutes(srv.Engine)
	return srv.Run(ctx)
}

// RunWorker consumes the job stream until ctx is cancelled.
func (a *App) RunWorker(ctx context.Context) error {
	consumer, err := queue.NewRedisConsumer(ctx, a.redis, queue.ConsumerConfig{
		Stream:       a.cfg.Queue.Stream,
		Group:        a.cfg.Queue.Group,
		Consumer:     a.cfg.Queue.Consumer,
		DLQStream:    a.cfg.Queue.DLQStream,
		BatchSize:    a.cfg.Queue.BatchSize,
		Block:        a.cfg.Queue.Block,
		RequeueDelay: a.cfg.Queue.RequeueDelay,
	})
	if err != nil {
		return err
	}

	w := worker.New(consumer, a.Engine, worker.Config{
		MaxAttempts:     a.cfg.Queue.MaxAttempts,
		Concurrency:     a.cfg.Worker.Concurrency,
		ReclaimMinIdle:  a.cfg.Queue.ReclaimMinIdle,
		ReclaimInterval: a.cfg.Queue.ReclaimInterval,
	})
	return w.Run(ctx)
}

// RunMonitor reports stuck groups until ctx is cancelled. It returns
// immediately when the monitor is disabled.
func (a *App) RunMonitor(ctx context.Context) error {
	if !a.cfg.Reprocessing.MonitorEnabled {
		slog.Info("[App] Reprocessing monitor disabled by config")
		return nil
	}
	return reprocessing.NewMonitor(a.Engine, a.cfg.Reprocessing.MonitorInterval).Start(ctx)
}

// RunAll serves the API, consumes jobs and runs the monitor in one process.
// The first component to fail stops the others.
func (a *App) RunAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Serve(ctx) })
	g.Go(func() error { return a.RunWorker(ctx) })
	g.Go(func() error { return a.RunMonitor(ctx) })
	return g.Wait()
}

// StartGroup forks a group and enqueues its group job.
func (a *App) StartGroup(ctx context.Context, req reprocessing.StartRequest) (int64, error) {
	startTime := time.Now().UTC()
	newGroupID, err := a.Engine.StartReprocessing(ctx, req)
	if err != nil {
		return 0, err
	}
	err = a.Jobs.ScheduleGroup(ctx, reprocessing.GroupJob{
		ProjectID:       req.ProjectID,
		GroupID:         req.GroupID,
		NewGroupID:      newGroupID,
		RemainingEvents: reprocessing.RemainingEvents(req.RemainingEvents),
		MaxEvents:       req.MaxEvents,
		StartTime:       startTime,
	})
	if err != nil {
		return newGroupID, fmt.Errorf("group %d forked into %d but scheduling failed: %w", req.GroupID, newGroupID, err)
	}
	return newGroupID, nil
}

// GroupProgress reads the progress state of a group.
func (a *App) GroupProgress(ctx context.Context, groupID int64) (reprocessing.Progress, error) {
	return a.Engine.GetProgress(ctx, groupID)
}

// MigrationStatus reports the applied schema version. Only postgres has one.
func (a *App) MigrationStatus() (migrations.Status, error) {
	if a.db == nil {
		return migrations.Status{}, fmt.Errorf("database.type %q has no schema", a.cfg.Database.Type)
	}
	return migrations.CurrentStatus(a.db)
}

