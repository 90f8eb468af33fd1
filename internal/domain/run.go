package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStage is the pipeline state machine position. A run walks
// idle -> profiling -> forecasting -> optimizing -> complete; failed is
// terminal and reachable from any stage.
type RunStage string

const (
	StageIdle        RunStage = "idle"
	StageProfiling   RunStage = "profiling"
	StageForecasting RunStage = "forecasting"
	StageOptimizing  RunStage = "optimizing"
	StageComplete    RunStage = "complete"
	StageFailed      RunStage = "failed"
)

// Terminal reports whether the stage ends the run.
func (s RunStage) Terminal() bool {
	return s == StageComplete || s == StageFailed
}

// AnalysisRun tracks one pipeline execution end to end: where it is in
// the state machine, what it consumed and produced, and how long each
// stage took.
type AnalysisRun struct {
	ID              uuid.UUID     `json:"id" db:"id"`
	AnalysisDate    time.Time     `json:"analysis_date" db:"analysis_date"`
	Stage           RunStage      `json:"stage" db:"stage"`
	StartedAt       time.Time     `json:"started_at" db:"started_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
	Prescriptions   int           `json:"prescriptions" db:"prescriptions"`
	Profiles        int           `json:"profiles" db:"profiles"`
	Forecasts       int           `json:"forecasts" db:"forecasts"`
	Orders          int           `json:"orders" db:"orders"`
	ProfilingTime   time.Duration `json:"profiling_time" db:"profiling_time"`
	ForecastingTime time.Duration `json:"forecasting_time" db:"forecasting_time"`
	OptimizingTime  time.Duration `json:"optimizing_time" db:"optimizing_time"`
	Error           string        `json:"error,omitempty" db:"error_message"`
}

// RunFilter narrows run listings. Zero-valued fields match everything.
type RunFilter struct {
	Stage RunStage
	Since time.Time
	Limit int // <=0 uses the store default
}

// Duration is the wall time of the run, up to now when still in flight.
func (r *AnalysisRun) Duration() time.Duration {
	if r.CompletedAt != nil {
		return r.CompletedAt.Sub(r.StartedAt)
	}
	return time.Since(r.StartedAt)
}

// Failed reports whether the run ended in the failed stage.
func (r *AnalysisRun) Failed() bool {
	return r.Stage == StageFailed
}
