// Package jobs holds the scheduled job implementations
package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/macrolens/backend/internal/contracts"
	"github.com/wonny/macrolens/backend/internal/delivery"
	"github.com/wonny/macrolens/backend/internal/persist"
	"github.com/wonny/macrolens/backend/internal/pipeline"
	"github.com/wonny/macrolens/backend/pkg/logger"
)

// AnalysisJob runs the full analysis pipeline on schedule, archives the
// result and pushes it to subscribers. Archive and delivery failures are
// logged but do not fail the job: the run itself already succeeded.
type AnalysisJob struct {
	orchestrator *pipeline.Orchestrator
	repo         *persist.RunRepository
	telegram     *delivery.TelegramNotifier
	hub          *delivery.Hub
	schedule     string
	logger       *logger.Logger
}

// NewAnalysisJob wires the job. repo, telegram and hub may each be nil
// when that sink is not configured.
func NewAnalysisJob(
	orchestrator *pipeline.Orchestrator,
	repo *persist.RunRepository,
	telegram *delivery.TelegramNotifier,
	hub *delivery.Hub,
	schedule string,
	log *logger.Logger,
) *AnalysisJob {
	return &AnalysisJob{
		orchestrator: orchestrator,
		repo:         repo,
		telegram:     telegram,
		hub:          hub,
		schedule:     schedule,
		logger:       log.WithField("job", "scheduled_analysis"),
	}
}

// Name returns the job name
func (j *AnalysisJob) Name() string { return "scheduled_analysis" }

// Schedule returns the cron expression from the analysis config
func (j *AnalysisJob) Schedule() string { return j.schedule }

// Run executes one analysis run end to end
func (j *AnalysisJob) Run(ctx context.Context) error {
	state, err := j.orchestrator.Run(ctx)
	if err != nil {
		return fmt.Errorf("analysis run failed: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":  state.RunID,
		"signals": len(state.Signals),
		"alerts":  len(state.Alerts),
		"errors":  len(state.Errors),
	}).Info("Analysis run finished")

	if j.repo != nil {
		if err := j.repo.SaveRun(ctx, state); err != nil {
			j.logger.WithError(err).Error("Failed to archive run")
		}
	}

	j.deliver(ctx, state)
	return nil
}

func (j *AnalysisJob) deliver(ctx context.Context, state *contracts.RunState) {
	if j.hub != nil {
		j.hub.BroadcastAlerts(state.Alerts)
		if state.Report != nil {
			j.hub.BroadcastReport(*state.Report)
		}
	}

	if j.telegram != nil {
		if err := j.telegram.SendAlerts(ctx, state.Alerts); err != nil {
			j.logger.WithError(err).Error("Failed to send Telegram alerts")
		}
		if state.Report != nil {
			if err := j.telegram.SendReport(ctx, *state.Report); err != nil {
				j.logger.WithError(err).Error("Failed to send Telegram report")
			}
		}
	}
}
