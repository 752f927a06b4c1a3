// Package pipeline runs the fixed-topology analysis workflow:
//
//	Bootstrap → MacroIngest → CrossAssetIngest → NewsIngest → Synthesize
//
// The orchestrator owns the run state. Stages get a clone and hand back a
// StageUpdate; failures inside a stage degrade the run instead of aborting
// it. Only bootstrap failure is fatal.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/macrolens/backend/internal/analysisconfig"
	"github.com/wonny/macrolens/backend/internal/contracts"
	"github.com/wonny/macrolens/backend/internal/provider"
	"github.com/wonny/macrolens/backend/internal/report"
	"github.com/wonny/macrolens/backend/internal/rules"
	"github.com/wonny/macrolens/backend/internal/signals"
	"github.com/wonny/macrolens/backend/pkg/logger"
)

// stageFunc is one stage body. It reads the clone, never the live state.
type stageFunc func(ctx context.Context, view contracts.RunState) contracts.StageUpdate

// Orchestrator drives one analysis run end to end
// ⭐ SSOT: RunState 쓰기는 오직 여기서만
type Orchestrator struct {
	registry   *provider.Registry
	builder    *signals.Builder
	engine     *rules.Engine
	summarizer report.Summarizer
	params     analysisconfig.SignalParams
	timezone   string
	deadline   time.Duration
	logger     *logger.Logger

	now func() time.Time // injectable for tests
}

// New wires an orchestrator. summarizer may be nil; the deterministic
// report summary is used then.
func New(
	cfg *analysisconfig.Config,
	registry *provider.Registry,
	builder *signals.Builder,
	engine *rules.Engine,
	summarizer report.Summarizer,
	deadline time.Duration,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		registry:   registry,
		builder:    builder,
		engine:     engine,
		summarizer: summarizer,
		params:     cfg.Signals,
		timezone:   cfg.Meta.Timezone,
		deadline:   deadline,
		logger:     log.WithField("component", "pipeline"),
		now:        time.Now,
	}
}

// Run executes the full pipeline once and returns the final state.
// The returned error is non-nil only when bootstrap fails; every later
// failure lands in state.Errors instead.
func (o *Orchestrator) Run(ctx context.Context) (*contracts.RunState, error) {
	if o.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.deadline)
		defer cancel()
	}

	state, err := o.bootstrap()
	if err != nil {
		return nil, err
	}

	log := o.logger.WithFields(map[string]interface{}{
		"run_id": state.RunID,
		"asof":   state.AsOf.Format(time.RFC3339),
	})
	log.Info("run started")

	stages := []struct {
		name contracts.Stage
		fn   stageFunc
	}{
		{contracts.StageMacroIngest, o.macroIngest},
		{contracts.StageCrossAssetIngest, o.crossAssetIngest},
		{contracts.StageNewsIngest, o.newsIngest},
		{contracts.StageSynthesize, o.synthesize},
	}

	for _, st := range stages {
		update := o.runStage(ctx, st.name, st.fn, state.Clone())
		state.ApplyUpdate(update)
	}

	log.WithFields(map[string]interface{}{
		"signals": len(state.Signals),
		"alerts":  len(state.Alerts),
		"errors":  len(state.Errors),
	}).Info("run complete")

	return state, nil
}

// bootstrap fixes run identity and the as-of timestamp. Everything
// time-relative downstream uses this instant, never the wall clock.
func (o *Orchestrator) bootstrap() (*contracts.RunState, error) {
	loc, err := time.LoadLocation(o.timezone)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load timezone %q: %w", o.timezone, err)
	}

	asof := o.now().In(loc)
	runID := fmt.Sprintf("run_%s_%s", asof.Format("20060102_150405"), uuid.NewString()[:8])

	return contracts.NewRunState(runID, asof, o.timezone), nil
}

// runStage executes one stage with panic containment. A panicking stage
// contributes an error entry and nothing else; the run moves on.
func (o *Orchestrator) runStage(ctx context.Context, name contracts.Stage, fn stageFunc, view contracts.RunState) (update contracts.StageUpdate) {
	start := time.Now()
	log := o.logger.WithFields(map[string]interface{}{
		"run_id": view.RunID,
		"stage":  name.String(),
	})

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", fmt.Sprint(r)).Error("stage panicked")
			update = contracts.StageUpdate{Errors: []contracts.RunError{{
				Source:      name.String(),
				Stage:       name,
				Message:     fmt.Sprintf("stage panicked: %v", r),
				Level:       contracts.LevelError,
				Recoverable: true,
				Timestamp:   view.AsOf,
			}}}
		}
	}()

	update = fn(ctx, view)

	log.WithFields(map[string]interface{}{
		"elapsed_ms": time.Since(start).Milliseconds(),
		"signals":    len(update.Signals),
		"errors":     len(update.Errors),
	}).Info("stage complete")

	return update
}

// fetchError folds a failed provider outcome into a run error. Optional
// needs degrade to info; required needs are errors but never fatal.
func (o *Orchestrator) fetchError(need string, stage contracts.Stage, out contracts.Outcome, asof time.Time) contracts.RunError {
	level := contracts.LevelError
	if o.registry.Optional(need) {
		level = contracts.LevelInfo
	}
	source := out.Adapter
	if source == "" {
		source = need
	}
	return contracts.RunError{
		Source:      source,
		Stage:       stage,
		Message:     fmt.Sprintf("%s unavailable: %s (%s)", need, out.Err, out.Class),
		Level:       level,
		Recoverable: true,
		Timestamp:   asof,
	}
}

// noteErrors turns signal-builder notes (clamps, coercions) into warn entries
func noteErrors(stage contracts.Stage, notes []string, asof time.Time) []contracts.RunError {
	if len(notes) == 0 {
		return nil
	}
	out := make([]contracts.RunError, len(notes))
	for i, n := range notes {
		out[i] = contracts.RunError{
			Source:      "signal_builder",
			Stage:       stage,
			Message:     n,
			Level:       contracts.LevelWarn,
			Recoverable: true,
			Timestamp:   asof,
		}
	}
	return out
}
