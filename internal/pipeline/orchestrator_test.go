package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/config"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/signals"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/synthetic"
)

// stageRecorder captures the stage of every recorded transition.
type stageRecorder struct {
	mu     sync.Mutex
	stages []domain.RunStage
}

func (r *stageRecorder) RecordRun(_ context.Context, run *domain.AnalysisRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, run.Stage)
	return nil
}

func testInputs(t *testing.T) Inputs {
	t.Helper()
	ds := synthetic.NewGenerator(synthetic.Config{
		Patients: 15,
		Months:   6,
		Seed:     42,
		AsOf:     runDate,
	}).Generate()
	return Inputs{
		AnalysisDate:  runDate,
		Prescriptions: ds.Prescriptions,
		Lots:          ds.Lots,
		Medications:   ds.Medications,
	}
}

func testPipelineConfig() config.PipelineConfig {
	cfg := config.DefaultPipelineConfig()
	cfg.WorkerCount = 4
	return cfg
}

func TestRunWalksAllStages(t *testing.T) {
	in := testInputs(t)
	provider := signals.NewSeasonalProvider(config.SignalsConfig{Region: "greece"})
	recorder := &stageRecorder{}

	result, err := NewOrchestrator(testPipelineConfig(), provider, recorder).Run(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, result)

	run := result.Run
	assert.Equal(t, domain.StageComplete, run.Stage)
	require.NotNil(t, run.CompletedAt)
	assert.False(t, run.Failed())
	assert.Equal(t, runDate, run.AnalysisDate)
	assert.Equal(t, len(in.Prescriptions), run.Prescriptions)
	assert.Equal(t, len(result.Profiles.Profiles), run.Profiles)
	assert.Equal(t, len(result.Forecast.MedicationForecasts), run.Forecasts)
	assert.Equal(t, len(result.Optimization.OrderRecommendations), run.Orders)

	assert.NotEmpty(t, result.Profiles.Profiles)
	assert.NotEmpty(t, result.Forecast.MedicationForecasts)
	require.NotNil(t, result.Signals)
	assert.True(t, result.Forecast.ExternalSignalsAvailable)
	assert.True(t, result.Optimization.InventoryAvailable)

	assert.Equal(t, []domain.RunStage{
		domain.StageIdle,
		domain.StageProfiling,
		domain.StageForecasting,
		domain.StageOptimizing,
		domain.StageComplete,
	}, recorder.stages)
}

func TestRunFailsWithoutPrescriptions(t *testing.T) {
	recorder := &stageRecorder{}

	_, err := NewOrchestrator(testPipelineConfig(), nil, recorder).Run(context.Background(), Inputs{AnalysisDate: runDate})
	require.ErrorIs(t, err, domain.ErrNoPrescriptions)

	assert.Equal(t, []domain.RunStage{
		domain.StageIdle,
		domain.StageProfiling,
		domain.StageFailed,
	}, recorder.stages)
}

func TestRunContinuesWhenSignalCollectionFails(t *testing.T) {
	in := testInputs(t)
	provider := signals.NewFileProvider("/nonexistent/bundle.json")

	result, err := NewOrchestrator(testPipelineConfig(), provider, nil).Run(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, domain.StageComplete, result.Run.Stage)
	assert.Nil(t, result.Signals)
	assert.False(t, result.Forecast.ExternalSignalsAvailable)
	assert.Equal(t, "degraded", result.Forecast.Summary.DataCompleteness)
}

func TestRunWithoutProviderOrRecorder(t *testing.T) {
	in := testInputs(t)

	result, err := NewOrchestrator(testPipelineConfig(), nil, nil).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, domain.StageComplete, result.Run.Stage)
	assert.Nil(t, result.Signals)
}

func TestRunDefaultsAnalysisDate(t *testing.T) {
	in := testInputs(t)
	in.AnalysisDate = time.Time{}

	result, err := NewOrchestrator(testPipelineConfig(), nil, nil).Run(context.Background(), in)
	require.NoError(t, err)

	run := result.Run
	assert.False(t, run.AnalysisDate.IsZero())
	assert.Equal(t, 0, run.AnalysisDate.Hour())
	assert.Equal(t, 0, run.AnalysisDate.Minute())
}
