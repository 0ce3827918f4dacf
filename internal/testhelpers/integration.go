//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-snapshot-service/internal/cache"
	"github.com/kjstillabower/weather-snapshot-service/internal/client"
	"github.com/kjstillabower/weather-snapshot-service/internal/repository"
	"github.com/kjstillabower/weather-snapshot-service/internal/service"
)

// IntegrationTestConfig holds configuration for tests against the live OpenWeatherMap API.
type IntegrationTestConfig struct {
	APIKey        string
	CurrentURL    string
	ForecastURL   string
	ReadCache     string // "", "in_memory" or "memcached"
	MemcachedAddr string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test if WEATHER_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}
	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}
	return IntegrationTestConfig{
		APIKey:        apiKey,
		CurrentURL:    os.Getenv("WEATHER_API_URL"),
		ForecastURL:   os.Getenv("WEATHER_API_FORECAST_URL"),
		ReadCache:     os.Getenv("INTEGRATION_READ_CACHE"),
		MemcachedAddr: memcachedAddr,
	}
}

// SetupIntegrationService builds a service over the live API and an in-memory repository,
// optionally fronted by a read cache. Memcached falls back to the in-process cache when
// unreachable.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) *service.WeatherService {
	t.Helper()
	weatherClient, err := client.NewOpenWeatherClient(client.Config{
		APIKey:      cfg.APIKey,
		CurrentURL:  cfg.CurrentURL,
		ForecastURL: cfg.ForecastURL,
		Timeout:     5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}

	var repo repository.Repository = repository.NewMemoryRepository()
	switch cfg.ReadCache {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddr, 500*time.Millisecond, 2)
		if err != nil {
			t.Logf("memcached not available (%v), using in-memory read cache", err)
			repo = repository.NewCachedRepository(repo, cache.NewInMemoryCache(), time.Minute, zap.NewNop())
			break
		}
		t.Cleanup(func() { _ = mc.Close() })
		repo = repository.NewCachedRepository(repo, mc, time.Minute, zap.NewNop())
	case "in_memory":
		repo = repository.NewCachedRepository(repo, cache.NewInMemoryCache(), time.Minute, zap.NewNop())
	}

	return service.NewWeatherService(weatherClient, repo)
}
