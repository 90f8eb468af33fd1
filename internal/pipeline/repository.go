package pipeline

import (
	"context"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
)

// RunRecorder receives run records as they change state. The
// orchestrator records after every transition, so an observer sees the
// run move through the stages rather than only the end state. Recorder
// failures are logged and never fail the run.
type RunRecorder interface {
	RecordRun(ctx context.Context, run *domain.AnalysisRun) error
}

// NopRecorder discards run transitions. Used when no store is wired,
// such as one-shot CLI runs.
type NopRecorder struct{}

func (NopRecorder) RecordRun(context.Context, *domain.AnalysisRun) error {
	return nil
}
