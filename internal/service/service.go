// Package service implements cache-aside current weather, forecast aggregation and
// snapshot history on top of the weather source and repository ports.
package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-snapshot-service/internal/client"
	"github.com/kjstillabower/weather-snapshot-service/internal/observability"
	"github.com/kjstillabower/weather-snapshot-service/internal/repository"
)

// DefaultFreshnessWindow is how long a stored snapshot is served without asking the source.
const DefaultFreshnessWindow = 30 * time.Minute

// Operation names used in metrics and logs.
const (
	opGetCurrent  = "get_current"
	opGetForecast = "get_forecast"
	opGetRecent   = "get_recent"
	opDelete      = "delete"
	opGetByID     = "get_by_id"
)

// WeatherService holds the two ports for the process lifetime. Each operation is
// request-scoped and runs one sequential chain of port calls; nothing is retried here.
type WeatherService struct {
	source          client.WeatherSource
	repo            repository.Repository
	now             func() time.Time
	freshness       time.Duration
	maxLocationLen  int
	stampedeTracker *stampedeTracker
}

// Option configures a WeatherService.
type Option func(*WeatherService)

// WithClock overrides time.Now. Used by tests to age snapshots deterministically.
func WithClock(now func() time.Time) Option {
	return func(s *WeatherService) { s.now = now }
}

// WithFreshnessWindow overrides DefaultFreshnessWindow. Non-positive values are ignored.
func WithFreshnessWindow(d time.Duration) Option {
	return func(s *WeatherService) {
		if d > 0 {
			s.freshness = d
		}
	}
}

// WithMaxLocationLength rejects longer locations as invalid input. Zero disables the check.
func WithMaxLocationLength(n int) Option {
	return func(s *WeatherService) { s.maxLocationLen = n }
}

// NewWeatherService creates a WeatherService over the given ports.
func NewWeatherService(source client.WeatherSource, repo repository.Repository, opts ...Option) *WeatherService {
	s := &WeatherService{
		source:          source,
		repo:            repo,
		now:             time.Now,
		freshness:       DefaultFreshnessWindow,
		stampedeTracker: newStampedeTracker(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// fail records a failed operation on its span and in metrics, then returns err.
func fail(ctx context.Context, span trace.Span, op string, err error) error {
	kind := ErrorKind(err)
	observability.OperationErrorsTotal.WithLabelValues(op, kind).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, kind)

	logger := observability.LoggerFromContext(ctx)
	switch kind {
	case KindTransport:
		logger.Warn("weather operation failed", zap.String("operation", op), zap.String("kind", kind), zap.Error(err))
	default:
		logger.Debug("weather operation rejected", zap.String("operation", op), zap.String("kind", kind), zap.Error(err))
	}
	return err
}
