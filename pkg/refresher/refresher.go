// Package refresher runs the periodic factor freshness sweep: every stored
// workflow gets its factors re-matched and its footprint recomputed, so
// catalog updates propagate without user interaction.
package refresher

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/carbonlens/carbonflow/pkg/services"
)

// DefaultSchedule runs the sweep nightly at 03:00.
const DefaultSchedule = "0 3 * * *"

// Refresher schedules factor refresh sweeps over all known workflows.
type Refresher struct {
	workflowService *services.Workflow
	schedule        string
	logger          *slog.Logger
	cron            *cron.Cron
}

// New creates a refresher with the given cron schedule (standard 5-field
// cron syntax). An empty schedule falls back to DefaultSchedule.
func New(workflowService *services.Workflow, schedule string, logger *slog.Logger) *Refresher {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	return &Refresher{
		workflowService: workflowService,
		schedule:        schedule,
		logger:          logger.With("module", "factor_refresher"),
	}
}

// Start begins the scheduled sweeps. Returns an error for an invalid
// schedule expression.
func (r *Refresher) Start(ctx context.Context) error {
	r.cron = cron.New()

	_, err := r.cron.AddFunc(r.schedule, func() {
		r.RunOnce(ctx)
	})
	if err != nil {
		return err
	}

	r.cron.Start()
	r.logger.InfoContext(ctx, "Factor refresher started", "schedule", r.schedule)

	return nil
}

// RunOnce sweeps every stored workflow immediately.
func (r *Refresher) RunOnce(ctx context.Context) {
	ids, err := r.workflowService.List(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list workflows for refresh", "error", err)

		return
	}

	for _, workflowID := range ids {
		refreshed, degraded, err := r.workflowService.RefreshFactors(ctx, workflowID)
		if err != nil {
			r.logger.WarnContext(ctx, "Factor refresh failed",
				"workflow_id", workflowID, "error", err)

			continue
		}

		r.logger.InfoContext(ctx, "Factor refresh finished",
			"workflow_id", workflowID, "refreshed", refreshed, "degraded", degraded)
	}
}

// Stop halts the schedule and waits for a running sweep to finish.
func (r *Refresher) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}
