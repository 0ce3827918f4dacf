package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-snapshot-service/internal/observability"
)

// RouterConfig wires the router. Limiter may be nil to disable rate limiting.
type RouterConfig struct {
	Handler        *Handler
	Logger         *zap.Logger
	Limiter        *rate.Limiter
	RequestTimeout time.Duration
}

// NewRouter builds the service routes. /weather routes get the rate limit and request
// timeout; /health and /metrics never do.
func NewRouter(cfg RouterConfig) *mux.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tracker := cfg.Handler.tracker()

	r := mux.NewRouter()
	r.Use(CorrelationIDMiddleware(logger))
	r.Use(MetricsMiddleware)
	r.Use(RequestLoggingMiddleware)

	r.HandleFunc("/health", cfg.Handler.GetHealth).Methods(http.MethodGet)
	r.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	weather := r.PathPrefix("/weather").Subrouter()
	weather.Use(RateLimitMiddleware(cfg.Limiter, tracker))
	if cfg.RequestTimeout > 0 {
		weather.Use(TimeoutMiddleware(cfg.RequestTimeout))
	}
	weather.HandleFunc("/current/{city}", cfg.Handler.GetCurrent).Methods(http.MethodGet)
	weather.HandleFunc("/forecast/{city}", cfg.Handler.GetForecast).Methods(http.MethodGet)
	weather.HandleFunc("/history", cfg.Handler.GetHistory).Methods(http.MethodGet)
	weather.HandleFunc("/snapshots/{id}", cfg.Handler.GetSnapshot).Methods(http.MethodGet)
	weather.HandleFunc("/{id}", cfg.Handler.DeleteSnapshot).Methods(http.MethodDelete)

	return r
}
