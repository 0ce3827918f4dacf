package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-snapshot-service/internal/health"
	"github.com/kjstillabower/weather-snapshot-service/internal/models"
	"github.com/kjstillabower/weather-snapshot-service/internal/observability"
	"github.com/kjstillabower/weather-snapshot-service/internal/service"
)

const serviceName = "weather-snapshot-service"

// Query defaults when the parameter is omitted.
const (
	defaultForecastDays = 5
	defaultHistoryCount = 10
)

// WeatherAPI is the service surface the handlers need. *service.WeatherService implements it.
type WeatherAPI interface {
	GetCurrent(ctx context.Context, location string) (models.WeatherSnapshot, error)
	GetForecast(ctx context.Context, location string, days int) (models.ForecastSummary, error)
	GetRecent(ctx context.Context, count int) ([]models.WeatherSnapshot, error)
	GetByID(ctx context.Context, id string) (models.WeatherSnapshot, error)
	Delete(ctx context.Context, id string) error
}

// HealthChecks holds optional dependency probes reported by /health.
type HealthChecks struct {
	// Storage pings the snapshot repository. A failure reports the service as degraded.
	Storage func(ctx context.Context) error
	// Cache pings the read cache. A failure is reported but does not change the status.
	Cache func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weather          WeatherAPI
	monitor          *health.Monitor
	checks           HealthChecks
	logger           *zap.Logger
	version          string
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. monitor may be nil, in which case /health only
// reflects the dependency probes.
func NewHandler(weather WeatherAPI, monitor *health.Monitor, checks HealthChecks, logger *zap.Logger, version string) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if version == "" {
		version = "dev"
	}
	return &Handler{weather: weather, monitor: monitor, checks: checks, logger: logger, version: version}
}

// GetCurrent handles GET /weather/current/{city}.
func (h *Handler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	snap, err := h.weather.GetCurrent(r.Context(), mux.Vars(r)["city"])
	h.recordOutcome(err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GetForecast handles GET /weather/forecast/{city}?days=N.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	days, ok := intQuery(w, r, "days", defaultForecastDays)
	if !ok {
		return
	}
	summary, err := h.weather.GetForecast(r.Context(), mux.Vars(r)["city"], days)
	h.recordOutcome(err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetHistory handles GET /weather/history?count=N.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	count, ok := intQuery(w, r, "count", defaultHistoryCount)
	if !ok {
		return
	}
	snaps, err := h.weather.GetRecent(r.Context(), count)
	h.recordOutcome(err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

// GetSnapshot handles GET /weather/snapshots/{id}.
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.weather.GetByID(r.Context(), mux.Vars(r)["id"])
	h.recordOutcome(err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// DeleteSnapshot handles DELETE /weather/{id}. Unknown ids also return 204.
func (h *Handler) DeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	err := h.weather.Delete(r.Context(), mux.Vars(r)["id"])
	h.recordOutcome(err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// recordOutcome feeds the degraded detector. Only faults on our side or upstream count
// as errors; bad input and unknown locations are normal traffic.
func (h *Handler) recordOutcome(err error) {
	if h.monitor == nil {
		return
	}
	switch service.ErrorKind(err) {
	case service.KindTransport, service.KindCancelled, service.KindUnknown:
		h.monitor.Tracker().RecordError()
	default:
		h.monitor.Tracker().RecordSuccess()
	}
}

func (h *Handler) tracker() *health.Tracker {
	if h.monitor == nil {
		return nil
	}
	return h.monitor.Tracker()
}

// intQuery parses an optional integer query parameter. On a malformed value it writes a
// 400 response and returns ok=false. Range checks are left to the service.
func intQuery(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", name+" must be an integer")
		return 0, false
	}
	return n, true
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := health.StatusHealthy
	if h.monitor != nil {
		status = h.monitor.Status()
	}

	checks := make(map[string]string)
	if h.checks.Storage != nil {
		checks["storage"] = "healthy"
		if err := h.checks.Storage(r.Context()); err != nil {
			checks["storage"] = "unhealthy"
			h.logger.Warn("storage health check failed", zap.Error(err))
			if status == health.StatusHealthy {
				status = health.StatusDegraded
			}
		}
	}
	if h.checks.Cache != nil {
		checks["cache"] = "healthy"
		if err := h.checks.Cache(); err != nil {
			checks["cache"] = "unhealthy"
			h.logger.Warn("cache health check failed", zap.Error(err))
		}
	}

	h.logTransition(status)

	statusCode := http.StatusOK
	if status != health.StatusHealthy {
		statusCode = http.StatusServiceUnavailable
	}
	body := map[string]interface{}{
		"status":    status,
		"service":   serviceName,
		"version":   h.version,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.monitor != nil {
		body["rateLimitDenials"] = h.monitor.Tracker().DenialCount(h.monitor.Window())
	}
	writeJSON(w, statusCode, body)
}

func (h *Handler) logTransition(status string) {
	h.healthStatusMu.Lock()
	defer h.healthStatusMu.Unlock()
	if h.healthStatusPrev != "" && h.healthStatusPrev != status {
		h.logger.Info("health status transition",
			zap.String("previous_status", h.healthStatusPrev),
			zap.String("current_status", status))
	}
	h.healthStatusPrev = status
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error envelope. requestId is the correlation ID.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationIDFromContext(r.Context()),
		},
	})
}

// writeServiceError maps a service error kind to a status code and error code.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.LoggerFromContext(r.Context())
	switch service.ErrorKind(err) {
	case service.KindInvalidInput:
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", validationMessage(err))
	case service.KindNotFound:
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "No weather data found")
	case service.KindCancelled:
		logger.Debug("request cancelled", zap.Error(err))
		writeError(w, r, http.StatusGatewayTimeout, "REQUEST_CANCELLED", "Request cancelled or timed out")
	default:
		logger.Debug("upstream error", zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to fetch weather data")
	}
}

// validationMessage strips the service prefix so clients see only the validation text.
func validationMessage(err error) string {
	var wrapped interface{ Unwrap() []error }
	if errors.As(err, &wrapped) {
		for _, e := range wrapped.Unwrap() {
			if !errors.Is(e, service.ErrInvalidInput) {
				return e.Error()
			}
		}
	}
	return err.Error()
}
