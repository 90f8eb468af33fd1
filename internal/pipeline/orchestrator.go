package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/config"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/pipeline/forecasting"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/pipeline/optimization"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/pipeline/profiling"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/signals"
	"github.com/apothecaryhq/apothecary-ai/backend-go/pkg/logger"
)

// Orchestrator walks one analysis run through the pipeline stages,
// logging and recording each transition. The calculators stay pure;
// signal collection and run bookkeeping happen here.
type Orchestrator struct {
	cfg       config.PipelineConfig
	profiler  *profiling.Profiler
	optimizer *optimization.Optimizer
	provider  signals.Provider
	recorder  RunRecorder
}

// NewOrchestrator creates an orchestrator. provider may be nil to run
// without external signals; recorder may be nil to skip run persistence.
func NewOrchestrator(cfg config.PipelineConfig, provider signals.Provider, recorder RunRecorder) *Orchestrator {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Orchestrator{
		cfg:       cfg,
		profiler:  profiling.NewProfiler(cfg.Profiling),
		optimizer: optimization.NewOptimizer(cfg.Optimization),
		provider:  provider,
		recorder:  recorder,
	}
}

// Run executes profiling, forecasting and optimization over the inputs.
// Partial or missing external signals degrade the forecast; they never
// fail the run. A stage precondition failure moves the run to failed
// and returns the error.
func (o *Orchestrator) Run(ctx context.Context, in Inputs) (*Result, error) {
	analysisDate := in.AnalysisDate
	if analysisDate.IsZero() {
		now := time.Now().UTC()
		analysisDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}

	run := &domain.AnalysisRun{
		ID:            uuid.New(),
		AnalysisDate:  analysisDate,
		Stage:         domain.StageIdle,
		StartedAt:     time.Now().UTC(),
		Prescriptions: len(in.Prescriptions),
	}

	runLog := logger.ForRun(run.ID.String())
	runLog.Info().
		Time("analysis_date", analysisDate).
		Int("prescriptions", len(in.Prescriptions)).
		Int("lots", len(in.Lots)).
		Int("medications", len(in.Medications)).
		Msg("starting analysis run")
	o.record(ctx, run, runLog)

	// Stage 1: profile refill behavior per patient/medication pair.
	stageLog := o.transition(ctx, run, domain.StageProfiling)
	started := time.Now()
	profiles, err := profilePairs(ctx, o.profiler, in.Prescriptions, analysisDate, o.cfg.WorkerCount)
	if err != nil {
		return nil, o.fail(ctx, run, runLog, fmt.Errorf("profiling: %w", err))
	}
	run.ProfilingTime = time.Since(started)
	run.Profiles = len(profiles.Profiles)
	stageLog.Info().
		Dur("took", run.ProfilingTime).
		Int("profiles", run.Profiles).
		Int("due_soon", profiles.PatientsDueSoon).
		Msg("profiling complete")

	// Stage 2: collect external signals, then forecast demand.
	stageLog = o.transition(ctx, run, domain.StageForecasting)
	bundle := o.collectSignals(ctx, analysisDate, stageLog)
	started = time.Now()
	resolver := forecasting.NewReferenceResolver(in.Medications, nil)
	forecaster := forecasting.NewForecaster(o.cfg.Forecasting, resolver)
	forecast, err := forecaster.Forecast(profiles, bundle, analysisDate)
	if err != nil {
		return nil, o.fail(ctx, run, runLog, fmt.Errorf("forecasting: %w", err))
	}
	run.ForecastingTime = time.Since(started)
	run.Forecasts = len(forecast.MedicationForecasts)
	stageLog.Info().
		Dur("took", run.ForecastingTime).
		Int("forecasts", run.Forecasts).
		Str("completeness", forecast.Summary.DataCompleteness).
		Msg("forecasting complete")

	// Stage 3: optimize stock positions into order recommendations.
	stageLog = o.transition(ctx, run, domain.StageOptimizing)
	started = time.Now()
	orders, err := o.optimizer.Optimize(forecast, in.Lots, in.Medications)
	if err != nil {
		return nil, o.fail(ctx, run, runLog, fmt.Errorf("optimization: %w", err))
	}
	run.OptimizingTime = time.Since(started)
	run.Orders = len(orders.OrderRecommendations)
	stageLog.Info().
		Dur("took", run.OptimizingTime).
		Int("orders", run.Orders).
		Msg("optimization complete")

	now := time.Now().UTC()
	run.Stage = domain.StageComplete
	run.CompletedAt = &now
	o.record(ctx, run, runLog)
	runLog.Info().
		Dur("took", run.Duration()).
		Int("orders", run.Orders).
		Int("critical", len(orders.CriticalOrders())).
		Msg("analysis run complete")

	return &Result{
		Run:          run,
		Signals:      bundle,
		Profiles:     profiles,
		Forecast:     forecast,
		Optimization: orders,
	}, nil
}

// collectSignals asks the provider for the external bundle. Collection
// failures lower forecast confidence downstream; they never fail the run.
func (o *Orchestrator) collectSignals(ctx context.Context, asOf time.Time, log zerolog.Logger) *domain.ExternalSignals {
	if o.provider == nil {
		return nil
	}
	bundle, err := o.provider.Collect(ctx, asOf)
	if err != nil {
		log.Warn().Err(err).Msg("external signal collection failed, forecasting without signals")
		return nil
	}
	log.Info().
		Str("quality", string(bundle.Quality)).
		Int("events", len(bundle.Events)).
		Int("disruptions", len(bundle.Disruptions)).
		Msg("external signals collected")
	return bundle
}

func (o *Orchestrator) transition(ctx context.Context, run *domain.AnalysisRun, stage domain.RunStage) zerolog.Logger {
	run.Stage = stage
	stageLog := logger.ForStage(run.ID.String(), string(stage))
	o.record(ctx, run, stageLog)
	return stageLog
}

func (o *Orchestrator) record(ctx context.Context, run *domain.AnalysisRun, log zerolog.Logger) {
	if err := o.recorder.RecordRun(ctx, run); err != nil {
		log.Warn().Err(err).Str("stage", string(run.Stage)).Msg("failed to record run state")
	}
}

func (o *Orchestrator) fail(ctx context.Context, run *domain.AnalysisRun, log zerolog.Logger, err error) error {
	now := time.Now().UTC()
	run.Stage = domain.StageFailed
	run.Error = err.Error()
	run.CompletedAt = &now
	o.record(ctx, run, log)
	log.Error().Err(err).Msg("analysis run failed")
	return err
}
