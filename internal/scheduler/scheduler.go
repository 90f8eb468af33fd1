// backend-go/internal/scheduler/scheduler.go
// Package scheduler triggers analysis runs on a cron cadence.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/apothecaryhq/apothecary-ai/backend-go/pkg/logger"
)

// Runner is the unit of work the scheduler fires on each tick.
type Runner func(ctx context.Context) error

// Scheduler wraps a cron instance around a single recurring job. Ticks that
// arrive while a previous run is still executing are skipped, not queued.
type Scheduler struct {
	cron    *cron.Cron
	spec    string
	run     Runner
	running atomic.Bool
}

// New builds a scheduler for the given 5-field cron spec ("0 6 * * *" fires
// daily at 06:00; "@every 15m" style descriptors also work).
func New(spec string, run Runner) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		spec: spec,
		run:  run,
	}
}

// Start registers the job and begins the cron loop. It returns an error when
// the spec does not parse; the loop itself runs on the cron's own goroutine.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.trigger); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", s.spec, err)
	}
	s.cron.Start()
	logger.Log.Info().Str("cron", s.spec).Msg("scheduler started")
	return nil
}

// Stop halts the cron loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) trigger() {
	if !s.running.CompareAndSwap(false, true) {
		logger.Log.Warn().Msg("scheduled run skipped, previous run still in progress")
		return
	}
	defer s.running.Store(false)

	start := time.Now()
	if err := s.run(context.Background()); err != nil {
		logger.Log.Error().Err(err).Msg("scheduled analysis run failed")
		return
	}
	logger.Log.Info().Dur("took", time.Since(start)).Msg("scheduled analysis run complete")
}
