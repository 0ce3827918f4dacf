package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-snapshot-service/internal/models"
	"github.com/kjstillabower/weather-snapshot-service/internal/observability"
)

// SnapshotFetcher is implemented by the service layer. GetCurrent returns a fresh snapshot,
// fetching and persisting one when the stored snapshot is stale or missing.
// Declared here to avoid a circular dependency on the service package.
type SnapshotFetcher interface {
	GetCurrent(ctx context.Context, location string) (models.WeatherSnapshot, error)
}

// CacheWarmer keeps snapshots for a fixed set of locations fresh so that requests for
// them are answered from storage.
type CacheWarmer struct {
	fetcher SnapshotFetcher
	logger  *zap.Logger
}

// NewCacheWarmer creates a CacheWarmer that uses the given fetcher and logger.
func NewCacheWarmer(fetcher SnapshotFetcher, logger *zap.Logger) *CacheWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheWarmer{fetcher: fetcher, logger: logger}
}

// Warm requests a current snapshot for each location concurrently.
// Returns the joined per-location errors if any location failed.
func (w *CacheWarmer) Warm(ctx context.Context, locations []string) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	w.logger.Info("warming snapshots", zap.Int("locations", len(locations)))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, loc := range locations {
		wg.Add(1)
		go func(loc string) {
			defer wg.Done()
			if _, err := w.fetcher.GetCurrent(ctx, loc); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("warm %s: %w", loc, err))
				mu.Unlock()
			}
		}(loc)
	}
	wg.Wait()

	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	w.logger.Info("snapshot warming complete",
		zap.Int("locations", len(locations)),
		zap.Int("errors", len(errs)),
		zap.Float64("duration_seconds", duration))

	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return fmt.Errorf("cache warming: %w", errors.Join(errs...))
	}
	return nil
}
