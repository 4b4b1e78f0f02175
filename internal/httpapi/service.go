// Package httpapi exposes the reprocessing engine over HTTP.
package httpapi

import (
	"context"

	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
	"github.com/aevon-lab/reprocessor/internal/reprocessing"
	"github.com/gin-gonic/gin"
)

// Engine is the part of the reprocessing engine served over HTTP.
type Engine interface {
	StartReprocessing(ctx context.Context, req reprocessing.StartRequest) (int64, error)
	GetProgress(ctx context.Context, groupID int64) (reprocessing.Progress, error)
	ReconcileGroupingKeyChange(ctx context.Context, event *v1.Event) error
	MarkEventReprocessed(ctx context.Context, payload v1.Payload) error
	BackupUnprocessedEvent(ctx context.Context, payload v1.Payload) error
	SaveUnprocessedEvent(ctx context.Context, projectID int64, eventID string) error
}

// GroupScheduler enqueues the group job once a split committed.
type GroupScheduler interface {
	ScheduleGroup(ctx context.Context, job reprocessing.GroupJob) error
}

// GroupReader reads the authoritative group status.
type GroupReader interface {
	GetGroup(ctx context.Context, groupID int64) (*v1.Group, error)
}

type Service struct {
	engine           Engine
	jobs             GroupScheduler
	groups           GroupReader
	maxBodySizeBytes int
}

func NewService(engine Engine, jobs GroupScheduler, groups GroupReader, maxBodySizeMB int) *Service {
	if engine == nil {
		panic("httpapi: engine must not be nil")
	}
	if jobs == nil {
		panic("httpapi: scheduler must not be nil")
	}
	if groups == nil {
		panic("httpapi: group reader must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1
	}
	return &Service{
		engine:           engine,
		jobs:             jobs,
		groups:           groups,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the reprocessing routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/projects/:project_id/groups/:group_id/reprocessing", s.StartHandler)
	r.GET("/v1/groups/:group_id/reprocessing", s.ProgressHandler)

	// Called by the ingestion pipeline.
	r.POST("/v1/reprocessing/outcomes", s.OutcomeHandler)
	r.POST("/v1/reprocessing/backups", s.BackupHandler)
}
