package pipeline

import (
	"time"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
)

// Inputs is the materialized data one analysis run consumes.
// Prescriptions are required; lots and medications may be empty, in
// which case the optimizer notes the gaps instead of failing. External
// signals are collected by the orchestrator, not supplied here.
type Inputs struct {
	AnalysisDate  time.Time // zero means today (UTC)
	Prescriptions []domain.RefillEvent
	Lots          []domain.InventoryLot
	Medications   []domain.MedicationInfo
}

// Result bundles the run record with the three stage outputs and the
// signal bundle the forecast saw.
type Result struct {
	Run          *domain.AnalysisRun
	Signals      *domain.ExternalSignals
	Profiles     *domain.ProfilingResult
	Forecast     *domain.ForecastingResult
	Optimization *domain.OptimizationResult
}
