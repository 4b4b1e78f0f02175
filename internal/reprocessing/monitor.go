package reprocessing

import (
	"context"
	"log/slog"
	"time"

	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
)

const monitorScanLimit = 500

// Monitor periodically reports groups stuck in REPROCESSING without progress
// state. A group whose counter expired before it reached zero is never
// finalized; the monitor only makes that visible.
type Monitor struct {
	engine   *Engine
	interval time.Duration
}

// NewMonitor creates a monitor ticking every interval.
func NewMonitor(engine *Engine, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Monitor{engine: engine, interval: interval}
}

// Start scans once immediately and then on every tick until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	slog.Info("[Monitor] Starting reprocessing monitor", "interval", m.interval)
	m.Scan(ctx)

	for {
		select {
		case <-ticker.C:
			m.Scan(ctx)
		case <-ctx.Done():
			slog.Info("[Monitor] Stopping (context cancelled)")
			return nil
		}
	}
}

// Scan checks every reprocessing group once and returns the ids of the ones
// with no progress state.
func (m *Monitor) Scan(ctx context.Context) []int64 {
	groups, err := m.engine.groups.ListGroupsByStatus(ctx, v1.GroupStatusReprocessing, monitorScanLimit)
	if err != nil {
		slog.Error("[Monitor] Failed to list reprocessing groups", "error", err)
		return nil
	}

	var stuck []int64
	for _, group := range groups {
		progress, err := m.engine.GetProgress(ctx, group.ID)
		if err != nil {
			slog.Error("[Monitor] Failed to read progress", "group_id", group.ID, "error", err)
			continue
		}
		if progress.Info == nil {
			slog.Error("[Monitor] Reprocessing group has no progress state",
				"group_id", group.ID,
				"project_id", group.ProjectID,
			)
			stuck = append(stuck, group.ID)
		}
	}

	if len(groups) > 0 {
		slog.Info("[Monitor] Scan complete", "reprocessing", len(groups), "stuck", len(stuck))
	}
	return stuck
}
