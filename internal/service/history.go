package service

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-snapshot-service/internal/models"
	"github.com/kjstillabower/weather-snapshot-service/internal/observability"
	"github.com/kjstillabower/weather-snapshot-service/internal/validation"
)

// GetRecent returns at most count snapshots, most recently captured first. The order
// and cap are enforced here whatever the repository returns.
func (s *WeatherService) GetRecent(ctx context.Context, count int) ([]models.WeatherSnapshot, error) {
	ctx, span := observability.Tracer().Start(ctx, "weather.get_recent")
	defer span.End()

	if err := validation.ValidateCount(count); err != nil {
		return nil, fail(ctx, span, opGetRecent, invalidInput(err))
	}
	span.SetAttributes(attribute.Int("count", count))

	stored, err := s.repo.GetRecent(ctx, count)
	if err != nil {
		return nil, fail(ctx, span, opGetRecent, portError(ctx, "read recent snapshots", err))
	}

	out := make([]models.WeatherSnapshot, len(stored))
	copy(out, stored)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CapturedAt.After(out[j].CapturedAt) })
	if len(out) > count {
		out = out[:count]
	}
	return out, nil
}

// Delete removes the snapshot with id. Deleting an unknown id succeeds.
func (s *WeatherService) Delete(ctx context.Context, id string) error {
	ctx, span := observability.Tracer().Start(ctx, "weather.delete")
	defer span.End()

	id, err := validation.ValidateID(id)
	if err != nil {
		return fail(ctx, span, opDelete, invalidInput(err))
	}
	span.SetAttributes(attribute.String("id", id))

	if err := s.repo.Delete(ctx, id); err != nil {
		return fail(ctx, span, opDelete, portError(ctx, "delete snapshot", err))
	}
	observability.LoggerFromContext(ctx).Info("snapshot deleted", zap.String("id", id))
	return nil
}

// GetByID returns one stored snapshot.
func (s *WeatherService) GetByID(ctx context.Context, id string) (models.WeatherSnapshot, error) {
	ctx, span := observability.Tracer().Start(ctx, "weather.get_by_id")
	defer span.End()

	id, err := validation.ValidateID(id)
	if err != nil {
		return models.WeatherSnapshot{}, fail(ctx, span, opGetByID, invalidInput(err))
	}
	span.SetAttributes(attribute.String("id", id))

	snap, found, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return models.WeatherSnapshot{}, fail(ctx, span, opGetByID, portError(ctx, "read snapshot", err))
	}
	if !found {
		return models.WeatherSnapshot{}, fail(ctx, span, opGetByID, fmt.Errorf("snapshot %q: %w", id, ErrNotFound))
	}
	return snap, nil
}
