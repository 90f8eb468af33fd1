package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/domain"
	"github.com/apothecaryhq/apothecary-ai/backend-go/internal/pipeline/profiling"
)

// profilePairs validates and groups refill events, fans the
// patient/medication pairs out over a bounded worker pool and merges
// the profiles into one result. Pair computations share no state;
// BuildResult sorts the merged profiles, so output ordering does not
// depend on scheduling.
func profilePairs(ctx context.Context, p *profiling.Profiler, events []domain.RefillEvent, analysisDate time.Time, workers int) (*domain.ProfilingResult, error) {
	if err := profiling.ValidateEvents(events); err != nil {
		return nil, err
	}

	pairs := profiling.GroupPairs(events)
	if workers < 1 {
		workers = 1
	}

	profiles := make([]domain.PatientMedicationProfile, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, pair := range pairs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			profiles[i] = p.ProfilePair(pair, analysisDate)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return p.BuildResult(profiles, analysisDate), nil
}
