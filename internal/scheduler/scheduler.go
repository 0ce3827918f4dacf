// Package scheduler re-warms the snapshot store for configured locations on a fixed interval.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Warmer refreshes snapshots for a set of locations. *cache.CacheWarmer implements it.
type Warmer interface {
	Warm(ctx context.Context, locations []string) error
}

// Scheduler runs a Warmer periodically.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	warmer     Warmer
	locations  []string
	interval   time.Duration
	runTimeout time.Duration
	logger     *zap.Logger
}

// New creates a Scheduler. Each run is bounded by runTimeout; a non-positive value uses 30s.
func New(warmer Warmer, locations []string, interval, runTimeout time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if runTimeout <= 0 {
		runTimeout = 30 * time.Second
	}
	return &Scheduler{
		scheduler:  gocron.NewScheduler(time.UTC),
		warmer:     warmer,
		locations:  locations,
		interval:   interval,
		runTimeout: runTimeout,
		logger:     logger,
	}
}

// Start schedules the warming job and starts the underlying scheduler. The first run
// happens one interval after Start. Overlapping runs are skipped.
func (s *Scheduler) Start() error {
	if len(s.locations) == 0 || s.interval <= 0 {
		s.logger.Info("scheduler: nothing to schedule",
			zap.Int("locations", len(s.locations)), zap.Duration("interval", s.interval))
		return nil
	}

	_, err := s.scheduler.Every(s.interval).WaitForSchedule().SingletonMode().Do(s.run)
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	s.logger.Info("scheduler started",
		zap.Int("locations", len(s.locations)), zap.Duration("interval", s.interval))
	return nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()
	if err := s.warmer.Warm(ctx, s.locations); err != nil {
		s.logger.Warn("scheduled warming failed", zap.Error(err))
	}
}

// Stop stops the scheduler and cancels any future runs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}
