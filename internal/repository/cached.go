package repository

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-snapshot-service/internal/cache"
	"github.com/kjstillabower/weather-snapshot-service/internal/models"
	"github.com/kjstillabower/weather-snapshot-service/internal/observability"
)

// CachedRepository puts a read cache in front of GetByCity. Writes go to the wrapped
// repository first and then invalidate the affected location. Cache failures are logged
// and counted but never fail the call; the wrapped repository stays authoritative.
type CachedRepository struct {
	Repository
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedRepository wraps repo. ttl bounds how long a cached latest snapshot may
// hide a newer row written by another process.
func NewCachedRepository(repo Repository, c cache.Cache, ttl time.Duration, logger *zap.Logger) *CachedRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedRepository{Repository: repo, cache: c, ttl: ttl, logger: logger}
}

func (r *CachedRepository) GetByCity(ctx context.Context, city string) (models.WeatherSnapshot, bool, error) {
	key := cityKey(city)
	snap, hit, err := r.cache.Get(ctx, key)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return models.WeatherSnapshot{}, false, ctx.Err()
		}
		observability.ReadCacheOperationsTotal.WithLabelValues("get", "error").Inc()
		r.logger.Warn("read cache get failed", zap.String("location", city), zap.Error(err))
	case hit:
		observability.ReadCacheOperationsTotal.WithLabelValues("get", "hit").Inc()
		return snap, true, nil
	default:
		observability.ReadCacheOperationsTotal.WithLabelValues("get", "miss").Inc()
	}

	snap, found, err := r.Repository.GetByCity(ctx, city)
	if err != nil || !found {
		return snap, found, err
	}
	if err := r.cache.Set(ctx, key, snap, r.ttl); err != nil {
		observability.ReadCacheOperationsTotal.WithLabelValues("set", "error").Inc()
		r.logger.Warn("read cache set failed", zap.String("location", city), zap.Error(err))
	}
	return snap, true, nil
}

func (r *CachedRepository) Save(ctx context.Context, snapshot models.WeatherSnapshot) error {
	previous, existed, err := r.Repository.GetByID(ctx, snapshot.ID)
	if err != nil {
		return err
	}
	if err := r.Repository.Save(ctx, snapshot); err != nil {
		return err
	}
	r.invalidate(ctx, snapshot.City)
	if existed && cityKey(previous.City) != cityKey(snapshot.City) {
		r.invalidate(ctx, previous.City)
	}
	return nil
}

func (r *CachedRepository) Delete(ctx context.Context, id string) error {
	snap, found, err := r.Repository.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := r.Repository.Delete(ctx, id); err != nil {
		return err
	}
	if found {
		r.invalidate(ctx, snap.City)
	}
	return nil
}

func (r *CachedRepository) invalidate(ctx context.Context, city string) {
	if err := r.cache.Delete(ctx, cityKey(city)); err != nil {
		observability.ReadCacheOperationsTotal.WithLabelValues("delete", "error").Inc()
		r.logger.Warn("read cache invalidation failed", zap.String("location", city), zap.Error(err))
	}
}

// Ping reports the health of the wrapped repository.
func (r *CachedRepository) Ping(ctx context.Context) error {
	if p, ok := r.Repository.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}
