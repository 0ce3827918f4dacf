package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kjstillabower/weather-snapshot-service/internal/models"
	"github.com/kjstillabower/weather-snapshot-service/internal/observability"
)

// MemoryRepository is a concurrency-safe in-memory Repository. Contents are lost on restart.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[string]models.WeatherSnapshot
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]models.WeatherSnapshot)}
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (snap models.WeatherSnapshot, found bool, err error) {
	defer func(start time.Time) { observability.ObserveRepository(BackendInMemory, "get_by_id", start, err) }(time.Now())
	if err = ctx.Err(); err != nil {
		return models.WeatherSnapshot{}, false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, found = r.byID[id]
	return snap, found, nil
}

func (r *MemoryRepository) GetByCity(ctx context.Context, city string) (snap models.WeatherSnapshot, found bool, err error) {
	defer func(start time.Time) { observability.ObserveRepository(BackendInMemory, "get_by_city", start, err) }(time.Now())
	if err = ctx.Err(); err != nil {
		return models.WeatherSnapshot{}, false, err
	}

	key := cityKey(city)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.byID {
		if cityKey(s.City) != key {
			continue
		}
		if !found || s.CapturedAt.After(snap.CapturedAt) {
			snap, found = s, true
		}
	}
	return snap, found, nil
}

// GetRecent returns up to count snapshots, most recently captured first.
func (r *MemoryRepository) GetRecent(ctx context.Context, count int) (out []models.WeatherSnapshot, err error) {
	defer func(start time.Time) { observability.ObserveRepository(BackendInMemory, "get_recent", start, err) }(time.Now())
	if err = ctx.Err(); err != nil {
		return nil, err
	}
	if count <= 0 {
		return []models.WeatherSnapshot{}, nil
	}

	r.mu.RLock()
	out = make([]models.WeatherSnapshot, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CapturedAt.After(out[j].CapturedAt) })
	if len(out) > count {
		out = out[:count]
	}
	return out, nil
}

func (r *MemoryRepository) Save(ctx context.Context, snapshot models.WeatherSnapshot) (err error) {
	defer func(start time.Time) { observability.ObserveRepository(BackendInMemory, "save", start, err) }(time.Now())
	if err = ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	r.byID[snapshot.ID] = snapshot
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { observability.ObserveRepository(BackendInMemory, "delete", start, err) }(time.Now())
	if err = ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.byID, id)
	r.mu.Unlock()
	return nil
}

// Ping always succeeds.
func (r *MemoryRepository) Ping(ctx context.Context) error { return nil }
