package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML, .env and environment.
type Config struct {
	ServerPort string `validate:"required,numeric"`

	WeatherAPIKey      string        `validate:"required"`
	WeatherAPIURL      string        `validate:"required,url"`
	WeatherForecastURL string        `validate:"required,url"`
	WeatherAPITimeout  time.Duration `validate:"gt=0"`
	RequestTimeout     time.Duration `validate:"gt=0"`
	LocationMaxLength  int           `validate:"gte=0"`
	FreshnessWindow    time.Duration `validate:"gt=0"`

	StorageBackend          string `validate:"oneof=in_memory redis postgres"`
	RedisAddr               string `validate:"required_if=StorageBackend redis"`
	PostgresDSN             string `validate:"required_if=StorageBackend postgres"`
	PostgresMaxOpenConns    int    `validate:"gte=0"`
	PostgresMaxIdleConns    int    `validate:"gte=0"`
	PostgresConnMaxLifetime time.Duration

	CacheEnabled          bool
	CacheBackend          string        `validate:"oneof=in_memory memcached"`
	CacheTTL              time.Duration `validate:"gt=0"`
	MemcachedAddrs        string        `validate:"required_if=CacheBackend memcached"`
	MemcachedTimeout      time.Duration `validate:"gt=0"`
	MemcachedMaxIdleConns int           `validate:"gt=0"`

	RetryAttempts      int `validate:"gt=0"`
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	RateLimitRPS       int `validate:"gte=0"`
	RateLimitBurst     int `validate:"gte=0"`
	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
	BreakerTimeout     time.Duration

	ShutdownTimeout time.Duration `validate:"gt=0"`

	WarmingEnabled  bool
	WarmingInterval time.Duration
	WarmLocations   []string `validate:"required_if=WarmingEnabled true"`

	TracingEnabled bool
	ZipkinURL      string `validate:"required_if=TracingEnabled true"`

	DegradedWindow   time.Duration `validate:"gt=0"`
	DegradedErrorPct int           `validate:"gte=0,lte=100"`

	TrackedLocations []string
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	WeatherAPI struct {
		URL         string `yaml:"url"`
		ForecastURL string `yaml:"forecast_url"`
		Timeout     string `yaml:"timeout"`
	} `yaml:"weather_api"`

	Request struct {
		Timeout           string `yaml:"timeout"`
		LocationMaxLength int    `yaml:"location_max_length"`
	} `yaml:"request"`

	Freshness struct {
		Window string `yaml:"window"`
	} `yaml:"freshness"`

	Storage struct {
		Backend string `yaml:"backend"`
		Redis   struct {
			Addr string `yaml:"addr"`
		} `yaml:"redis"`
		Postgres struct {
			DSN             string `yaml:"dsn"`
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Enabled      bool   `yaml:"enabled"`
		Backend      string `yaml:"backend"`
		TTL          string `yaml:"ttl"`
		Addrs        string `yaml:"addrs"`
		Timeout      string `yaml:"timeout"`
		MaxIdleConns int    `yaml:"max_idle_conns"`
	} `yaml:"cache"`

	Reliability struct {
		RetryMaxAttempts   int    `yaml:"retry_max_attempts"`
		RetryBaseDelay     string `yaml:"retry_base_delay"`
		RetryMaxDelay      string `yaml:"retry_max_delay"`
		RateLimitRPS       *int   `yaml:"rate_limit_rps"`
		RateLimitBurst     int    `yaml:"rate_limit_burst"`
		BreakerMaxRequests uint32 `yaml:"breaker_max_requests"`
		BreakerInterval    string `yaml:"breaker_interval"`
		BreakerTimeout     string `yaml:"breaker_timeout"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Warming struct {
		Enabled         bool     `yaml:"enabled"`
		IntervalMinutes int      `yaml:"interval_minutes"`
		Locations       []string `yaml:"locations"`
	} `yaml:"warming"`

	Tracing struct {
		Enabled   bool   `yaml:"enabled"`
		ZipkinURL string `yaml:"zipkin_url"`
	} `yaml:"tracing"`

	Lifecycle struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`

	Metrics struct {
		TrackedLocations []string `yaml:"tracked_locations"`
	} `yaml:"metrics"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
}

var validate = validator.New()

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml,
// after loading .env from the working directory if present. Environment variables override
// the file: WEATHER_API_KEY, STORAGE_BACKEND, REDIS_ADDR, DATABASE_URL, CACHE_BACKEND,
// MEMCACHED_ADDRS and ZIPKIN_URL. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	if err := godotenv.Load(filepath.Join(cwd, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = orDefault(fc.Server.Port, "8080")

	cfg.WeatherAPIKey = os.Getenv("WEATHER_API_KEY")
	if cfg.WeatherAPIKey == "" {
		key, err := loadAPIKeyFromSecrets(filepath.Join(cwd, "config", "secrets.yaml"))
		if err != nil {
			return nil, err
		}
		cfg.WeatherAPIKey = key
	}
	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("WEATHER_API_KEY required (set env, .env or config/secrets.yaml weather_api_key)")
	}

	cfg.WeatherAPIURL = orDefault(fc.WeatherAPI.URL, "https://api.openweathermap.org/data/2.5/weather")
	cfg.WeatherForecastURL = orDefault(fc.WeatherAPI.ForecastURL, "https://api.openweathermap.org/data/2.5/forecast")
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 2*time.Second)
	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Second)
	cfg.LocationMaxLength = fc.Request.LocationMaxLength
	if cfg.LocationMaxLength == 0 {
		cfg.LocationMaxLength = 100
	}
	cfg.FreshnessWindow = parseDuration(fc.Freshness.Window, 30*time.Minute)

	cfg.StorageBackend = lowerOrDefault(envOr("STORAGE_BACKEND", fc.Storage.Backend), "in_memory")
	cfg.RedisAddr = envOr("REDIS_ADDR", fc.Storage.Redis.Addr)
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	cfg.PostgresDSN = envOr("DATABASE_URL", fc.Storage.Postgres.DSN)
	cfg.PostgresMaxOpenConns = fc.Storage.Postgres.MaxOpenConns
	if cfg.PostgresMaxOpenConns <= 0 {
		cfg.PostgresMaxOpenConns = 10
	}
	cfg.PostgresMaxIdleConns = fc.Storage.Postgres.MaxIdleConns
	if cfg.PostgresMaxIdleConns <= 0 {
		cfg.PostgresMaxIdleConns = 5
	}
	cfg.PostgresConnMaxLifetime = parseDuration(fc.Storage.Postgres.ConnMaxLifetime, 30*time.Minute)

	cfg.CacheEnabled = fc.Cache.Enabled
	cfg.CacheBackend = lowerOrDefault(envOr("CACHE_BACKEND", fc.Cache.Backend), "in_memory")
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 5*time.Minute)
	cfg.MemcachedAddrs = envOr("MEMCACHED_ADDRS", fc.Cache.Addrs)
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	// An explicit zero disables rate limiting.
	cfg.RateLimitRPS = 100
	if fc.Reliability.RateLimitRPS != nil {
		cfg.RateLimitRPS = *fc.Reliability.RateLimitRPS
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}
	cfg.BreakerMaxRequests = fc.Reliability.BreakerMaxRequests
	if cfg.BreakerMaxRequests == 0 {
		cfg.BreakerMaxRequests = 2
	}
	cfg.BreakerInterval = parseDuration(fc.Reliability.BreakerInterval, time.Minute)
	cfg.BreakerTimeout = parseDuration(fc.Reliability.BreakerTimeout, 30*time.Second)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.WarmingEnabled = fc.Warming.Enabled
	cfg.WarmingInterval = time.Duration(fc.Warming.IntervalMinutes) * time.Minute
	if cfg.WarmingInterval <= 0 {
		cfg.WarmingInterval = 15 * time.Minute
	}
	cfg.WarmLocations = fc.Warming.Locations

	cfg.TracingEnabled = fc.Tracing.Enabled
	cfg.ZipkinURL = envOr("ZIPKIN_URL", fc.Tracing.ZipkinURL)

	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 5
	}
	cfg.TrackedLocations = fc.Metrics.TrackedLocations

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadAPIKeyFromSecrets(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read secrets file: %w", err)
	}
	var sec secretsFile
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return "", fmt.Errorf("parse secrets file: %w", err)
	}
	return sec.WeatherAPIKey, nil
}

func envOr(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return strings.TrimSpace(fallback)
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

func lowerOrDefault(s, def string) string {
	return strings.ToLower(orDefault(s, def))
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validateConfig checks struct tags, then widens RequestTimeout so a single upstream
// call can never outlive the request.
func validateConfig(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config %s: failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.RequestTimeout <= cfg.WeatherAPITimeout {
		cfg.RequestTimeout = cfg.WeatherAPITimeout + time.Second
	}
	return nil
}
