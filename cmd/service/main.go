package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-snapshot-service/internal/cache"
	"github.com/kjstillabower/weather-snapshot-service/internal/client"
	"github.com/kjstillabower/weather-snapshot-service/internal/config"
	"github.com/kjstillabower/weather-snapshot-service/internal/health"
	httphandler "github.com/kjstillabower/weather-snapshot-service/internal/http"
	"github.com/kjstillabower/weather-snapshot-service/internal/observability"
	"github.com/kjstillabower/weather-snapshot-service/internal/repository"
	"github.com/kjstillabower/weather-snapshot-service/internal/scheduler"
	"github.com/kjstillabower/weather-snapshot-service/internal/service"
)

const serviceName = "weather-snapshot-service"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	startupTimeout         = 10 * time.Second
	warmTimeout            = 30 * time.Second
	inFlightCheckInterval  = 100 * time.Millisecond
	defaultInFlightTimeout = 10 * time.Second
)

// storage bundles the repository with its health probe and cleanup.
type storage struct {
	repo  repository.Repository
	ping  func(context.Context) error
	close func() error
}

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	var shutdownTracer func(context.Context) error
	if cfg.TracingEnabled {
		shutdownTracer, err = observability.InitTracer(serviceName, version, cfg.ZipkinURL)
		if err != nil {
			logger.Fatal("tracing", zap.Error(err))
		}
		logger.Info("tracing enabled", zap.String("zipkin_url", cfg.ZipkinURL))
	}

	weatherClient, err := client.NewOpenWeatherClient(client.Config{
		APIKey:             cfg.WeatherAPIKey,
		CurrentURL:         cfg.WeatherAPIURL,
		ForecastURL:        cfg.WeatherForecastURL,
		Timeout:            cfg.WeatherAPITimeout,
		RetryAttempts:      cfg.RetryAttempts,
		RetryBaseDelay:     cfg.RetryBaseDelay,
		RetryMaxDelay:      cfg.RetryMaxDelay,
		BreakerMaxRequests: cfg.BreakerMaxRequests,
		BreakerInterval:    cfg.BreakerInterval,
		BreakerTimeout:     cfg.BreakerTimeout,
		OnBreakerStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}
	checkAPIKey(context.Background(), weatherClient, logger)

	startCtx, startCancel := context.WithTimeout(context.Background(), startupTimeout)
	store, err := openStorage(startCtx, cfg, logger)
	startCancel()
	if err != nil {
		logger.Fatal("storage", zap.Error(err))
	}

	repo := store.repo
	var cachePing func() error
	var cacheClose func() error
	if cfg.CacheEnabled {
		readCache, ping, closeFn, err := openReadCache(cfg, logger)
		if err != nil {
			logger.Fatal("read cache", zap.Error(err))
		}
		repo = repository.NewCachedRepository(repo, readCache, cfg.CacheTTL, logger)
		cachePing, cacheClose = ping, closeFn
	}

	weatherService := service.NewWeatherService(weatherClient, repo,
		service.WithFreshnessWindow(cfg.FreshnessWindow),
		service.WithMaxLocationLength(cfg.LocationMaxLength),
	)

	tracker := health.NewTracker()
	monitor := health.NewMonitor(tracker, cfg.DegradedWindow, float64(cfg.DegradedErrorPct))
	observability.RegisterErrorRateGauge(monitor.Window(), tracker.ErrorRate)
	if len(cfg.TrackedLocations) > 0 {
		observability.SetTrackedLocations(cfg.TrackedLocations)
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(weatherService, monitor, httphandler.HealthChecks{
		Storage: store.ping,
		Cache:   cachePing,
	}, logger, version)
	router := httphandler.NewRouter(httphandler.RouterConfig{
		Handler:        handler,
		Logger:         logger,
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
	})

	var warmScheduler *scheduler.Scheduler
	if cfg.WarmingEnabled {
		warmer := cache.NewCacheWarmer(weatherService, logger)
		warmCtx, warmCancel := context.WithTimeout(context.Background(), warmTimeout)
		if err := warmer.Warm(warmCtx, cfg.WarmLocations); err != nil {
			logger.Warn("startup warming failed", zap.Error(err))
		}
		warmCancel()

		warmScheduler = scheduler.New(warmer, cfg.WarmLocations, cfg.WarmingInterval, warmTimeout, logger)
		if err := warmScheduler.Start(); err != nil {
			logger.Fatal("scheduler", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("storage", cfg.StorageBackend),
			zap.Bool("read_cache", cfg.CacheEnabled),
			zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	monitor.SetShuttingDown(true)
	if warmScheduler != nil {
		warmScheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), defaultInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, inFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if cacheClose != nil {
		if err := cacheClose(); err != nil {
			logger.Error("read cache close", zap.Error(err))
		}
	}
	if store.close != nil {
		if err := store.close(); err != nil {
			logger.Error("storage close", zap.Error(err))
		}
	}

	logger.Info("shutdown complete")
	if err := observability.FlushTelemetry(shutdownCtx, logger, shutdownTracer); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry flush: %v\n", err)
	}
}

// openStorage connects the configured snapshot backend.
type apiKeyValidator interface {
	ValidateAPIKey(ctx context.Context) error
}

// checkAPIKey logs a warning when the upstream rejects the configured key.
// Startup continues either way; requests will surface upstream failures.
func checkAPIKey(ctx context.Context, v apiKeyValidator, logger *zap.Logger) bool {
	err := v.ValidateAPIKey(ctx)
	if err == nil {
		return true
	}
	if errors.Is(err, client.ErrInvalidAPIKey) {
		logger.Warn("weather API key rejected", zap.Error(err))
	} else {
		logger.Warn("weather API key check failed", zap.Error(err))
	}
	return false
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage, error) {
	switch cfg.StorageBackend {
	case repository.BackendRedis:
		rdb, err := repository.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			return storage{}, err
		}
		repo := repository.NewRedisRepository(rdb)
		logger.Info("storage backend: redis", zap.String("addr", cfg.RedisAddr))
		return storage{repo: repo, ping: repo.Ping, close: rdb.Close}, nil

	case repository.BackendPostgres:
		db, err := repository.OpenPostgres(ctx, repository.PostgresConfig{
			DSN:             cfg.PostgresDSN,
			MaxOpenConns:    cfg.PostgresMaxOpenConns,
			MaxIdleConns:    cfg.PostgresMaxIdleConns,
			ConnMaxLifetime: cfg.PostgresConnMaxLifetime,
		})
		if err != nil {
			return storage{}, err
		}
		repo := repository.NewPostgresRepository(db)
		logger.Info("storage backend: postgres")
		return storage{repo: repo, ping: repo.Ping, close: repo.Close}, nil

	default:
		repo := repository.NewMemoryRepository()
		logger.Info("storage backend: in_memory")
		return storage{repo: repo, ping: repo.Ping}, nil
	}
}

// openReadCache builds the latest-snapshot read cache placed in front of storage.
func openReadCache(cfg *config.Config, logger *zap.Logger) (cache.Cache, func() error, func() error, error) {
	if cfg.CacheBackend == "memcached" {
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("read cache: memcached", zap.String("addrs", cfg.MemcachedAddrs), zap.Duration("ttl", cfg.CacheTTL))
		return mc, mc.Ping, mc.Close, nil
	}
	c := cache.NewInMemoryCache()
	logger.Info("read cache: in_memory", zap.Duration("ttl", cfg.CacheTTL))
	return c, c.Ping, nil, nil
}
