package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-snapshot-service/internal/models"
	"github.com/kjstillabower/weather-snapshot-service/internal/observability"
	"github.com/kjstillabower/weather-snapshot-service/internal/validation"
)

// GetCurrent returns the current snapshot for location. A stored snapshot younger than
// the freshness window is returned unchanged without calling the weather source.
// Otherwise the source is asked once; its snapshot is saved and returned, and no data
// yields ErrNotFound with nothing written.
//
// Concurrent cold requests for one location are not serialized: each fetches and saves
// its own row. This is counted in coldFetchStampedeTotal.
func (s *WeatherService) GetCurrent(ctx context.Context, location string) (models.WeatherSnapshot, error) {
	ctx, span := observability.Tracer().Start(ctx, "weather.get_current")
	defer span.End()

	loc, err := validation.ValidateLocation(location, 0, s.maxLocationLen)
	if err != nil {
		return models.WeatherSnapshot{}, fail(ctx, span, opGetCurrent, invalidInput(err))
	}
	span.SetAttributes(attribute.String("location", loc))
	observability.RecordWeatherQuery(loc)
	logger := observability.LoggerFromContext(ctx).With(zap.String("location", loc))
	start := time.Now()

	stored, found, err := s.repo.GetByCity(ctx, loc)
	if err != nil {
		return models.WeatherSnapshot{}, fail(ctx, span, opGetCurrent, portError(ctx, "read stored snapshot", err))
	}
	if found && s.isFresh(stored) {
		observability.SnapshotLookupsTotal.WithLabelValues("fresh").Inc()
		span.SetAttributes(attribute.Bool("cache_hit", true))
		logger.Debug("serving stored snapshot", zap.String("id", stored.ID), zap.Time("captured_at", stored.CapturedAt))
		return stored, nil
	}

	result := "miss"
	if found {
		result = "stale"
	}
	observability.SnapshotLookupsTotal.WithLabelValues(result).Inc()
	span.SetAttributes(attribute.Bool("cache_hit", false))
	logger.Debug("stored snapshot unusable, fetching from source", zap.String("result", result))

	s.trackColdFetch(loc)
	defer s.stampedeTracker.RecordHit(normalizeLocation(loc))

	fetched, found, err := s.source.GetCurrent(ctx, loc)
	if err != nil {
		return models.WeatherSnapshot{}, fail(ctx, span, opGetCurrent, portError(ctx, "fetch current weather", err))
	}
	if !found {
		return models.WeatherSnapshot{}, fail(ctx, span, opGetCurrent, fmt.Errorf("current weather for %q: %w", loc, ErrNotFound))
	}
	if err := s.repo.Save(ctx, fetched); err != nil {
		return models.WeatherSnapshot{}, fail(ctx, span, opGetCurrent, portError(ctx, "save snapshot", err))
	}

	logger.Debug("weather served", zap.String("id", fetched.ID), zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	return fetched, nil
}

// isFresh reports whether the snapshot is strictly younger than the freshness window.
// A snapshot exactly at the window boundary is stale.
func (s *WeatherService) isFresh(snap models.WeatherSnapshot) bool {
	return s.now().Sub(snap.CapturedAt) < s.freshness
}

func (s *WeatherService) trackColdFetch(loc string) {
	concurrent := s.stampedeTracker.RecordMiss(normalizeLocation(loc))
	if concurrent > 1 {
		label := observability.MetricLocationLabel(loc)
		observability.ColdFetchStampedeTotal.WithLabelValues(label).Inc()
		observability.ColdFetchConcurrency.WithLabelValues(label).Observe(float64(concurrent))
	}
}
