package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-snapshot-service/internal/models"
	"github.com/kjstillabower/weather-snapshot-service/internal/observability"
	"github.com/kjstillabower/weather-snapshot-service/internal/validation"
)

// GetForecast returns per-day summaries for location covering at most days dates.
// The summary is built per request and never stored.
func (s *WeatherService) GetForecast(ctx context.Context, location string, days int) (models.ForecastSummary, error) {
	ctx, span := observability.Tracer().Start(ctx, "weather.get_forecast")
	defer span.End()

	loc, err := validation.ValidateLocation(location, 0, s.maxLocationLen)
	if err != nil {
		return models.ForecastSummary{}, fail(ctx, span, opGetForecast, invalidInput(err))
	}
	if err := validation.ValidateDays(days); err != nil {
		return models.ForecastSummary{}, fail(ctx, span, opGetForecast, invalidInput(err))
	}
	span.SetAttributes(attribute.String("location", loc), attribute.Int("days", days))
	observability.RecordWeatherQuery(loc)

	samples, found, err := s.source.GetForecast(ctx, loc, days)
	if err != nil {
		return models.ForecastSummary{}, fail(ctx, span, opGetForecast, portError(ctx, "fetch forecast", err))
	}
	if !found || len(samples) == 0 {
		return models.ForecastSummary{}, fail(ctx, span, opGetForecast, fmt.Errorf("forecast for %q: %w", loc, ErrNotFound))
	}

	summary := models.ForecastSummary{
		ID:          uuid.NewString(),
		City:        loc,
		Days:        AggregateDays(samples, days),
		GeneratedAt: s.now().UTC(),
	}
	observability.ForecastDaysProduced.Observe(float64(len(summary.Days)))
	observability.LoggerFromContext(ctx).Debug("forecast aggregated",
		zap.String("location", loc),
		zap.Int("samples", len(samples)),
		zap.Int("days", len(summary.Days)))
	return summary, nil
}
