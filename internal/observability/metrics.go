package observability

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases, SLO breaches.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// OpenWeatherMap API call rate by endpoint (current, forecast). Watch for: error vs success ratio.
	WeatherAPICallsTotal *prometheus.CounterVec

	// External API latency per request. Watch for: p95 > 2s (upstream degradation).
	WeatherAPIDuration *prometheus.HistogramVec

	// Retry attempts for weather API. Watch for: high retries = unstable upstream.
	WeatherAPIRetriesTotal prometheus.Counter

	// Current-weather lookups by outcome: fresh (served from repository), stale, miss.
	// Hit rate = fresh / sum.
	SnapshotLookupsTotal *prometheus.CounterVec

	// Concurrent cold fetches for the same location. Each one saves its own row.
	ColdFetchStampedeTotal *prometheus.CounterVec

	// Number of concurrent cold fetches observed when a stampede is detected.
	ColdFetchConcurrency *prometheus.HistogramVec

	// Repository latency by backend and operation. Watch for: storage saturation.
	RepositoryOperationDurationSeconds *prometheus.HistogramVec

	// Repository failures by backend and operation.
	RepositoryErrorsTotal *prometheus.CounterVec

	// Memcached read cache in front of the repository: get hit/miss/error, set/delete errors.
	ReadCacheOperationsTotal *prometheus.CounterVec

	// Days produced per forecast response.
	ForecastDaysProduced prometheus.Histogram

	// Operation failures by kind (invalid_input, not_found, transport, cancelled).
	OperationErrorsTotal *prometheus.CounterVec

	// Total weather lookups. Watch for: traffic volume, rate() for QPS.
	WeatherQueriesTotal prometheus.Counter

	// Per-location query count (allow-list; others go to "other").
	WeatherQueriesByLocationTotal *prometheus.CounterVec

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// Cache warming runs, failed runs and duration.
	CacheWarmingTotal           prometheus.Counter
	CacheWarmingErrorsTotal     prometheus.Counter
	CacheWarmingDurationSeconds prometheus.Histogram

	// trackedLocations is built from config; used to resolve location for metrics.
	trackedLocationsMu sync.RWMutex
	trackedLocations   map[string]struct{}

	errorRateGaugeOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	WeatherAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiCallsTotal",
			Help: "Total number of OpenWeatherMap API calls",
		},
		[]string{"endpoint", "status"},
	)
	WeatherAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherApiDurationSeconds",
			Help:    "OpenWeatherMap API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "status"},
	)
	WeatherAPIRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "weatherApiRetriesTotal",
			Help: "Total number of retry attempts for weather API calls",
		},
	)
	SnapshotLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshotLookupsTotal",
			Help: "Current weather lookups by outcome (fresh, stale, miss)",
		},
		[]string{"result"},
	)
	ColdFetchStampedeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coldFetchStampedeTotal",
			Help: "Concurrent cold fetches detected for the same location",
		},
		[]string{"location"},
	)
	ColdFetchConcurrency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coldFetchConcurrency",
			Help:    "Concurrent cold fetches in flight when a stampede is detected",
			Buckets: []float64{2, 3, 5, 10, 20, 50},
		},
		[]string{"location"},
	)
	RepositoryOperationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repositoryOperationDurationSeconds",
			Help:    "Repository operation latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"backend", "operation", "result"},
	)
	RepositoryErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repositoryErrorsTotal",
			Help: "Repository operation failures",
		},
		[]string{"backend", "operation"},
	)
	ReadCacheOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readCacheOperationsTotal",
			Help: "Latest-snapshot read cache operations by result",
		},
		[]string{"operation", "result"},
	)
	ForecastDaysProduced = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "forecastDaysProduced",
			Help:    "Number of day summaries returned per forecast",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		},
	)
	OperationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "operationErrorsTotal",
			Help: "Service operation failures by operation and kind",
		},
		[]string{"operation", "kind"},
	)
	WeatherQueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "weatherQueriesTotal",
			Help: "Total number of weather lookups",
		},
	)
	WeatherQueriesByLocationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherQueriesByLocationTotal",
			Help: "Weather queries by location (allow-list; others use location=other)",
		},
		[]string{"location"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CacheWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Total number of cache warming runs",
		},
	)
	CacheWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingErrorsTotal",
			Help: "Cache warming runs with at least one failed location",
		},
	)
	CacheWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheWarmingDurationSeconds",
			Help:    "Cache warming run duration in seconds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30},
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		WeatherAPICallsTotal, WeatherAPIDuration, WeatherAPIRetriesTotal,
		SnapshotLookupsTotal, ColdFetchStampedeTotal, ColdFetchConcurrency,
		RepositoryOperationDurationSeconds, RepositoryErrorsTotal, ReadCacheOperationsTotal,
		ForecastDaysProduced, OperationErrorsTotal,
		WeatherQueriesTotal, WeatherQueriesByLocationTotal,
		RateLimitDeniedTotal,
		CacheWarmingTotal, CacheWarmingErrorsTotal, CacheWarmingDurationSeconds,
	)
}

// RegisterErrorRateGauge exposes the error percentage over window, as computed by errorRate.
// Call once from main after config load; later calls are ignored.
func RegisterErrorRateGauge(window time.Duration, errorRate func(time.Duration) (errors, total int)) {
	errorRateGaugeOnce.Do(func() {
		registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "operationErrorRatePct",
				Help: "Percentage of failed weather operations in the degraded window",
			},
			func() float64 {
				errs, total := errorRate(window)
				if total == 0 {
					return 0
				}
				return float64(errs) * 100 / float64(total)
			},
		))
	})
}

// SetTrackedLocations sets the allow-list for location metrics. Non-tracked locations increment "other".
func SetTrackedLocations(locations []string) {
	trackedLocationsMu.Lock()
	defer trackedLocationsMu.Unlock()
	trackedLocations = make(map[string]struct{}, len(locations))
	for _, loc := range locations {
		trackedLocations[normalizeLocationForMetrics(loc)] = struct{}{}
	}
}

// MetricLocationLabel returns the location label if tracked, otherwise "other".
// Keeps per-location label cardinality bounded.
func MetricLocationLabel(location string) string {
	loc := normalizeLocationForMetrics(location)
	trackedLocationsMu.RLock()
	_, ok := trackedLocations[loc] // nil map read is safe in Go
	trackedLocationsMu.RUnlock()
	if ok {
		return loc
	}
	return "other"
}

// RecordWeatherQuery records a weather query for the given location.
func RecordWeatherQuery(location string) {
	WeatherQueriesTotal.Inc()
	WeatherQueriesByLocationTotal.WithLabelValues(MetricLocationLabel(location)).Inc()
}

// ObserveRepository records latency and failures for one repository call.
func ObserveRepository(backend, operation string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
		RepositoryErrorsTotal.WithLabelValues(backend, operation).Inc()
	}
	RepositoryOperationDurationSeconds.WithLabelValues(backend, operation, result).Observe(time.Since(start).Seconds())
}

func normalizeLocationForMetrics(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return s
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
