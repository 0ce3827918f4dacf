// Package repository stores weather snapshots keyed by id and by location.
package repository

import (
	"context"
	"strings"

	"github.com/kjstillabower/weather-snapshot-service/internal/models"
)

// Repository is durable snapshot storage. Get methods return found=false with a nil
// error when nothing matches; a non-nil error always means the store itself failed.
type Repository interface {
	GetByID(ctx context.Context, id string) (models.WeatherSnapshot, bool, error)
	// GetByCity returns the most recently captured snapshot for the location.
	GetByCity(ctx context.Context, city string) (models.WeatherSnapshot, bool, error)
	// GetRecent returns up to count snapshots. Ordering is implementation-defined.
	GetRecent(ctx context.Context, count int) ([]models.WeatherSnapshot, error)
	// Save upserts the snapshot by ID.
	Save(ctx context.Context, snapshot models.WeatherSnapshot) error
	// Delete removes the snapshot. Unknown ids are ignored.
	Delete(ctx context.Context, id string) error
}

// Backend names used in metrics and configuration.
const (
	BackendInMemory = "in_memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// cityKey normalizes a location for lookups. Matching is case-insensitive so that
// "paris" finds the snapshot the upstream named "Paris".
func cityKey(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}
