package service

import (
	"context"
	"sync"

	"github.com/kjstillabower/weather-snapshot-service/internal/models"
)

// fakeSource is a WeatherSource that counts calls.
type fakeSource struct {
	mu            sync.Mutex
	current       models.WeatherSnapshot
	currentFound  bool
	samples       []models.ForecastSample
	forecastFound bool
	err           error
	block         chan struct{} // when set, calls wait for close or ctx.Done

	currentCalls  int
	forecastCalls int
	lastDays      int
}

func (f *fakeSource) GetCurrent(ctx context.Context, location string) (models.WeatherSnapshot, bool, error) {
	f.mu.Lock()
	f.currentCalls++
	f.mu.Unlock()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return models.WeatherSnapshot{}, false, ctx.Err()
		}
	}
	if f.err != nil {
		return models.WeatherSnapshot{}, false, f.err
	}
	return f.current, f.currentFound, nil
}

func (f *fakeSource) GetForecast(ctx context.Context, location string, days int) ([]models.ForecastSample, bool, error) {
	f.mu.Lock()
	f.forecastCalls++
	f.lastDays = days
	f.mu.Unlock()
	if f.err != nil {
		return nil, false, f.err
	}
	return f.samples, f.forecastFound, nil
}

func (f *fakeSource) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentCalls + f.forecastCalls
}

// fakeRepo is a Repository backed by a slice that counts calls. GetRecent returns rows in
// insertion order so tests can feed unordered data.
type fakeRepo struct {
	mu       sync.Mutex
	rows     []models.WeatherSnapshot
	getErr   error
	saveErr  error
	recent   []models.WeatherSnapshot // returned verbatim by GetRecent when set
	deleteFn func(id string) error

	getByCityCalls int
	saveCalls      int
	recentCalls    int
	deleteCalls    int
	getByIDCalls   int
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (models.WeatherSnapshot, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getByIDCalls++
	if r.getErr != nil {
		return models.WeatherSnapshot{}, false, r.getErr
	}
	for _, s := range r.rows {
		if s.ID == id {
			return s, true, nil
		}
	}
	return models.WeatherSnapshot{}, false, nil
}

func (r *fakeRepo) GetByCity(ctx context.Context, city string) (models.WeatherSnapshot, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getByCityCalls++
	if r.getErr != nil {
		return models.WeatherSnapshot{}, false, r.getErr
	}
	var latest models.WeatherSnapshot
	found := false
	for _, s := range r.rows {
		if normalizeLocation(s.City) == normalizeLocation(city) && (!found || s.CapturedAt.After(latest.CapturedAt)) {
			latest, found = s, true
		}
	}
	return latest, found, nil
}

func (r *fakeRepo) GetRecent(ctx context.Context, count int) ([]models.WeatherSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recentCalls++
	if r.getErr != nil {
		return nil, r.getErr
	}
	if r.recent != nil {
		return r.recent, nil
	}
	return append([]models.WeatherSnapshot(nil), r.rows...), nil
}

func (r *fakeRepo) Save(ctx context.Context, snapshot models.WeatherSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveCalls++
	if r.saveErr != nil {
		return r.saveErr
	}
	r.rows = append(r.rows, snapshot)
	return nil
}

func (r *fakeRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteCalls++
	if r.deleteFn != nil {
		return r.deleteFn(id)
	}
	for i, s := range r.rows {
		if s.ID == id {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			break
		}
	}
	return nil
}

func (r *fakeRepo) portCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getByCityCalls + r.saveCalls + r.recentCalls + r.deleteCalls + r.getByIDCalls
}
