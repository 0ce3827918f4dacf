package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/weather-snapshot-service/internal/health"
	"github.com/kjstillabower/weather-snapshot-service/internal/models"
	"github.com/kjstillabower/weather-snapshot-service/internal/service"
	"github.com/kjstillabower/weather-snapshot-service/internal/validation"
)

// fakeWeather implements WeatherAPI with canned results and records the arguments it saw.
type fakeWeather struct {
	snapshot  models.WeatherSnapshot
	forecast  models.ForecastSummary
	recent    []models.WeatherSnapshot
	err       error
	block     chan struct{}
	lastCity  string
	lastDays  int
	lastCount int
	lastID    string
}

func (f *fakeWeather) wait(ctx context.Context) error {
	if f.block == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", service.ErrCancelled, ctx.Err())
	case <-f.block:
		return nil
	}
}

func (f *fakeWeather) GetCurrent(ctx context.Context, location string) (models.WeatherSnapshot, error) {
	f.lastCity = location
	if err := f.wait(ctx); err != nil {
		return models.WeatherSnapshot{}, err
	}
	return f.snapshot, f.err
}

func (f *fakeWeather) GetForecast(ctx context.Context, location string, days int) (models.ForecastSummary, error) {
	f.lastCity, f.lastDays = location, days
	return f.forecast, f.err
}

func (f *fakeWeather) GetRecent(ctx context.Context, count int) ([]models.WeatherSnapshot, error) {
	f.lastCount = count
	return f.recent, f.err
}

func (f *fakeWeather) GetByID(ctx context.Context, id string) (models.WeatherSnapshot, error) {
	f.lastID = id
	return f.snapshot, f.err
}

func (f *fakeWeather) Delete(ctx context.Context, id string) error {
	f.lastID = id
	return f.err
}

type errorEnvelope struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

func newTestRouter(t *testing.T, weather WeatherAPI, monitor *health.Monitor) http.Handler {
	t.Helper()
	h := NewHandler(weather, monitor, HealthChecks{}, zap.NewNop(), "test")
	return NewRouter(RouterConfig{Handler: h, Logger: zap.NewNop(), RequestTimeout: time.Second})
}

func serve(router http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return env
}

func TestHandler_GetCurrent_Success(t *testing.T) {
	captured := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	weather := &fakeWeather{snapshot: models.WeatherSnapshot{
		ID: "snap-1", City: "Paris", Country: "FR", Temperature: 18.5, CapturedAt: captured, Source: "OpenWeatherMap",
	}}
	router := newTestRouter(t, weather, nil)

	w := serve(router, http.MethodGet, "/weather/current/Paris")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var got models.WeatherSnapshot
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "snap-1" || got.City != "Paris" || !got.CapturedAt.Equal(captured) {
		t.Errorf("snapshot = %+v", got)
	}
	if weather.lastCity != "Paris" {
		t.Errorf("service saw city %q, want Paris", weather.lastCity)
	}
}

func TestHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid input", fmt.Errorf("%w: %w", service.ErrInvalidInput, validation.ErrLocationTooShort), http.StatusBadRequest, "INVALID_REQUEST"},
		{"not found", fmt.Errorf("current weather for %q: %w", "atlantis", service.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"transport", fmt.Errorf("save: %w: %w", service.ErrTransport, errors.New("disk full")), http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE"},
		{"cancelled", fmt.Errorf("source: %w: %w", service.ErrCancelled, context.DeadlineExceeded), http.StatusGatewayTimeout, "REQUEST_CANCELLED"},
		{"unknown", errors.New("boom"), http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(t, &fakeWeather{err: tc.err}, nil)
			req := httptest.NewRequest(http.MethodGet, "/weather/current/x", nil)
			req.Header.Set("X-Correlation-ID", "corr-123")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			env := decodeError(t, w)
			if env.Error.Code != tc.wantCode {
				t.Errorf("error.code = %q, want %q", env.Error.Code, tc.wantCode)
			}
			if env.Error.RequestID != "corr-123" {
				t.Errorf("error.requestId = %q, want corr-123", env.Error.RequestID)
			}
		})
	}
}

func TestHandler_InvalidInputMessageOmitsPrefix(t *testing.T) {
	err := fmt.Errorf("%w: %w", service.ErrInvalidInput, validation.ErrLocationTooShort)
	router := newTestRouter(t, &fakeWeather{err: err}, nil)

	w := serve(router, http.MethodGet, "/weather/current/x")

	if got := decodeError(t, w).Error.Message; got != "location too short" {
		t.Errorf("message = %q, want %q", got, "location too short")
	}
}

func TestHandler_GetForecast_DaysParameter(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantDays int
	}{
		{"default", "", defaultForecastDays},
		{"explicit", "?days=3", 3},
		{"out of range passes through", "?days=11", 11},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			weather := &fakeWeather{forecast: models.ForecastSummary{ID: "f-1", City: "Paris"}}
			router := newTestRouter(t, weather, nil)

			w := serve(router, http.MethodGet, "/weather/forecast/Paris"+tc.query)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			if weather.lastDays != tc.wantDays {
				t.Errorf("days = %d, want %d", weather.lastDays, tc.wantDays)
			}
		})
	}
}

func TestHandler_GetForecast_NonIntegerDays(t *testing.T) {
	weather := &fakeWeather{}
	router := newTestRouter(t, weather, nil)

	w := serve(router, http.MethodGet, "/weather/forecast/Paris?days=five")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if code := decodeError(t, w).Error.Code; code != "INVALID_REQUEST" {
		t.Errorf("error.code = %q, want INVALID_REQUEST", code)
	}
	if weather.lastCity != "" {
		t.Error("service should not be called for a malformed days parameter")
	}
}

func TestHandler_GetHistory(t *testing.T) {
	weather := &fakeWeather{recent: []models.WeatherSnapshot{{ID: "b"}, {ID: "a"}}}
	router := newTestRouter(t, weather, nil)

	w := serve(router, http.MethodGet, "/weather/history")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if weather.lastCount != defaultHistoryCount {
		t.Errorf("count = %d, want default %d", weather.lastCount, defaultHistoryCount)
	}
	var got []models.WeatherSnapshot
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" {
		t.Errorf("history = %+v, want service order preserved", got)
	}

	w = serve(router, http.MethodGet, "/weather/history?count=x")
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-integer count status = %d, want 400", w.Code)
	}
}

func TestHandler_GetSnapshotAndDelete(t *testing.T) {
	weather := &fakeWeather{snapshot: models.WeatherSnapshot{ID: "abc"}}
	router := newTestRouter(t, weather, nil)

	w := serve(router, http.MethodGet, "/weather/snapshots/abc")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", w.Code)
	}
	if weather.lastID != "abc" {
		t.Errorf("get id = %q, want abc", weather.lastID)
	}

	w = serve(router, http.MethodDelete, "/weather/abc")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("delete body = %q, want empty", w.Body.String())
	}

	weather.err = fmt.Errorf("snapshot %q: %w", "missing", service.ErrNotFound)
	w = serve(router, http.MethodGet, "/weather/snapshots/missing")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing snapshot status = %d, want 404", w.Code)
	}
}

func TestHandler_RecordsOutcomes(t *testing.T) {
	tracker := health.NewTracker()
	monitor := health.NewMonitor(tracker, time.Minute, 50)
	weather := &fakeWeather{}
	router := newTestRouter(t, weather, monitor)

	serve(router, http.MethodGet, "/weather/current/Paris")
	weather.err = fmt.Errorf("%w: %w", service.ErrInvalidInput, validation.ErrLocationEmpty)
	serve(router, http.MethodGet, "/weather/current/x")
	weather.err = fmt.Errorf("x: %w", service.ErrNotFound)
	serve(router, http.MethodGet, "/weather/current/Atlantis")
	weather.err = fmt.Errorf("x: %w", service.ErrTransport)
	serve(router, http.MethodGet, "/weather/current/Paris")

	errs, total := tracker.ErrorRate(time.Minute)
	if errs != 1 || total != 4 {
		t.Errorf("ErrorRate = %d/%d, want 1/4 (only transport counts as an error)", errs, total)
	}
}

func TestHandler_GetHealth(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(m *health.Monitor)
		storageErr   error
		cacheErr     error
		wantStatus   string
		wantCode     int
		wantStorage  string
		wantCacheVal string
		wantDenials  int
	}{
		{name: "healthy", wantStatus: health.StatusHealthy, wantCode: http.StatusOK, wantStorage: "healthy", wantCacheVal: "healthy"},
		{
			name:       "shutting down",
			setup:      func(m *health.Monitor) { m.SetShuttingDown(true) },
			wantStatus: health.StatusShuttingDown, wantCode: http.StatusServiceUnavailable, wantStorage: "healthy", wantCacheVal: "healthy",
		},
		{
			name: "error rate breach",
			setup: func(m *health.Monitor) {
				m.Tracker().RecordSuccess()
				m.Tracker().RecordError()
				m.Tracker().RecordError()
			},
			wantStatus: health.StatusDegraded, wantCode: http.StatusServiceUnavailable, wantStorage: "healthy", wantCacheVal: "healthy",
		},
		{
			name: "rate limit denials are reported",
			setup: func(m *health.Monitor) {
				m.Tracker().RecordDenied()
				m.Tracker().RecordDenied()
			},
			wantStatus: health.StatusHealthy, wantCode: http.StatusOK, wantStorage: "healthy", wantCacheVal: "healthy", wantDenials: 2,
		},
		{
			name:       "storage down",
			storageErr: errors.New("connection refused"),
			wantStatus: health.StatusDegraded, wantCode: http.StatusServiceUnavailable, wantStorage: "unhealthy", wantCacheVal: "healthy",
		},
		{
			name:       "cache down is reported only",
			cacheErr:   errors.New("memcache: no servers"),
			wantStatus: health.StatusHealthy, wantCode: http.StatusOK, wantStorage: "healthy", wantCacheVal: "unhealthy",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			monitor := health.NewMonitor(health.NewTracker(), time.Minute, 50)
			if tc.setup != nil {
				tc.setup(monitor)
			}
			checks := HealthChecks{
				Storage: func(context.Context) error { return tc.storageErr },
				Cache:   func() error { return tc.cacheErr },
			}
			h := NewHandler(&fakeWeather{}, monitor, checks, zap.NewNop(), "1.2.3")

			w := httptest.NewRecorder()
			h.GetHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tc.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tc.wantCode)
			}
			var body struct {
				Status  string            `json:"status"`
				Service string            `json:"service"`
				Version string            `json:"version"`
				Checks  map[string]string `json:"checks"`
				Denials *int              `json:"rateLimitDenials"`
			}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tc.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tc.wantStatus)
			}
			if body.Denials == nil || *body.Denials != tc.wantDenials {
				t.Errorf("rateLimitDenials = %v, want %d", body.Denials, tc.wantDenials)
			}
			if body.Service != serviceName || body.Version != "1.2.3" {
				t.Errorf("service/version = %q/%q", body.Service, body.Version)
			}
			if body.Checks["storage"] != tc.wantStorage || body.Checks["cache"] != tc.wantCacheVal {
				t.Errorf("checks = %v", body.Checks)
			}
		})
	}
}

func TestHandler_GetHealth_LogsTransition(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	monitor := health.NewMonitor(health.NewTracker(), time.Minute, 50)
	h := NewHandler(&fakeWeather{}, monitor, HealthChecks{}, zap.New(core), "")

	call := func() {
		h.GetHealth(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	}

	call()
	if n := logs.FilterMessage("health status transition").Len(); n != 0 {
		t.Fatalf("first call logged %d transitions, want 0", n)
	}

	monitor.Tracker().RecordError()
	call()
	call()

	entries := logs.FilterMessage("health status transition").All()
	if len(entries) != 1 {
		t.Fatalf("want 1 transition log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["previous_status"] != health.StatusHealthy || fields["current_status"] != health.StatusDegraded {
		t.Errorf("transition fields = %v", fields)
	}
}
