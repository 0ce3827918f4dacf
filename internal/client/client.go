package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-snapshot-service/internal/models"
	"github.com/kjstillabower/weather-snapshot-service/internal/observability"
)

// WeatherSource supplies current snapshots and raw forecast samples for a location.
// found=false means no data: the remote either confirmed there is none or could not be
// reached. A non-nil error is returned only when ctx was cancelled or expired.
type WeatherSource interface {
	GetCurrent(ctx context.Context, location string) (models.WeatherSnapshot, bool, error)
	GetForecast(ctx context.Context, location string, days int) ([]models.ForecastSample, bool, error)
}

var (
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrLocationNotFound = errors.New("location not found")
	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrRateLimited      = errors.New("rate limited")
)

// SourceName tags every snapshot fetched through OpenWeatherClient.
const SourceName = "OpenWeatherMap"

// samplesPerDay is the number of 3-hour forecast steps OpenWeatherMap returns per day.
const samplesPerDay = 8

// Config configures OpenWeatherClient. Zero values fall back to defaults.
type Config struct {
	APIKey      string
	CurrentURL  string
	ForecastURL string
	Timeout     time.Duration

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
	BreakerTimeout     time.Duration
	// OnBreakerStateChange, when set, is called on every circuit breaker transition.
	OnBreakerStateChange func(name string, from, to gobreaker.State)
}

// OpenWeatherClient implements WeatherSource against the OpenWeatherMap 2.5 API.
type OpenWeatherClient struct {
	apiKey         string
	currentURL     string
	forecastURL    string
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breaker        *gobreaker.CircuitBreaker
	now            func() time.Time
}

func NewOpenWeatherClient(cfg Config) (*OpenWeatherClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(cfg.APIKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	if cfg.CurrentURL == "" {
		cfg.CurrentURL = "https://api.openweathermap.org/data/2.5/weather"
	}
	if cfg.ForecastURL == "" {
		cfg.ForecastURL = "https://api.openweathermap.org/data/2.5/forecast"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 100 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 2 * time.Second
	}
	if cfg.BreakerMaxRequests == 0 {
		cfg.BreakerMaxRequests = 2
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "weather_api",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A confirmed "no such location" or a caller giving up says nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrLocationNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: cfg.OnBreakerStateChange,
	}

	return &OpenWeatherClient{
		apiKey:         cfg.APIKey,
		currentURL:     cfg.CurrentURL,
		forecastURL:    cfg.ForecastURL,
		timeout:        cfg.Timeout,
		retryAttempts:  cfg.RetryAttempts,
		retryBaseDelay: cfg.RetryBaseDelay,
		retryMaxDelay:  cfg.RetryMaxDelay,
		breaker:        gobreaker.NewCircuitBreaker(settings),
		now:            time.Now,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

type weatherEntry struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type currentResponse struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Weather []weatherEntry `json:"weather"`
	Wind    struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

type forecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp     float64 `json:"temp"`
			Humidity int     `json:"humidity"`
		} `json:"main"`
		Weather []weatherEntry `json:"weather"`
		Wind    struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
	} `json:"list"`
}

// GetCurrent fetches the current reading for location and maps it to a new snapshot
// with a fresh ID and CapturedAt set to the fetch time.
func (c *OpenWeatherClient) GetCurrent(ctx context.Context, location string) (models.WeatherSnapshot, bool, error) {
	params := url.Values{}
	params.Set("q", location)

	body, err := c.fetch(ctx, "current", c.currentURL, params)
	if err != nil {
		return models.WeatherSnapshot{}, false, c.absent(ctx, "current", location, err)
	}

	var apiResp currentResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.WeatherSnapshot{}, false, c.absent(ctx, "current", location, fmt.Errorf("parse response: %w", err))
	}
	return c.mapCurrent(apiResp, location), true, nil
}

// GetForecast fetches days*8 three-hourly samples for location in upstream order.
func (c *OpenWeatherClient) GetForecast(ctx context.Context, location string, days int) ([]models.ForecastSample, bool, error) {
	params := url.Values{}
	params.Set("q", location)
	params.Set("cnt", strconv.Itoa(days*samplesPerDay))

	body, err := c.fetch(ctx, "forecast", c.forecastURL, params)
	if err != nil {
		return nil, false, c.absent(ctx, "forecast", location, err)
	}

	var apiResp forecastResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, false, c.absent(ctx, "forecast", location, fmt.Errorf("parse response: %w", err))
	}
	if len(apiResp.List) == 0 {
		return nil, false, nil
	}

	samples := make([]models.ForecastSample, 0, len(apiResp.List))
	for _, item := range apiResp.List {
		s := models.ForecastSample{
			Timestamp:   time.Unix(item.Dt, 0).UTC(),
			Temperature: item.Main.Temp,
			Humidity:    item.Main.Humidity,
			WindSpeed:   item.Wind.Speed,
		}
		if len(item.Weather) > 0 {
			s.Description = item.Weather[0].Description
			s.Icon = item.Weather[0].Icon
		}
		samples = append(samples, s)
	}
	return samples, true, nil
}

// absent collapses an upstream failure into the port's "no data" signal. Only caller
// cancellation is surfaced as an error.
func (c *OpenWeatherClient) absent(ctx context.Context, endpoint, location string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	observability.LoggerFromContext(ctx).Warn("weather source returned no data",
		zap.String("endpoint", endpoint),
		zap.String("location", location),
		zap.String("category", string(CategorizeError(err))),
		zap.Error(err))
	return nil
}

// fetch performs a GET with retries and exponential backoff. Each attempt runs through
// the circuit breaker; an open breaker fails fast without retrying.
func (c *OpenWeatherClient) fetch(ctx context.Context, endpoint, rawURL string, params url.Values) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.WeatherAPIRetriesTotal.Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.callAPI(ctx, endpoint, rawURL, params)
		})
		if err == nil {
			return result.([]byte), nil
		}

		lastErr = err
		if !c.isRetryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("exhausted retries: %w", lastErr)
}

func (c *OpenWeatherClient) callAPI(ctx context.Context, endpoint, rawURL string, params url.Values) ([]byte, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, rawURL, params)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("build request: %w", err)
	}

	if corrID := observability.CorrelationIDFromContext(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.WeatherAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
		observability.WeatherAPIDuration.WithLabelValues(endpoint, "error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("request timeout: %w", err)
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(endpoint, status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(endpoint, status).Observe(duration)

	if err := c.handleErrorResponse(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

func (c *OpenWeatherClient) isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "context deadline exceeded")
}

func (c *OpenWeatherClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, rawURL string, params url.Values) (*http.Request, error) {
	baseURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	baseURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *OpenWeatherClient) handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: invalid API key", ErrInvalidAPIKey)
	case http.StatusNotFound:
		return fmt.Errorf("%w", ErrLocationNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}
	return nil
}

func (c *OpenWeatherClient) mapCurrent(apiResp currentResponse, location string) models.WeatherSnapshot {
	description, icon := "", ""
	if len(apiResp.Weather) > 0 {
		description = apiResp.Weather[0].Main
		if apiResp.Weather[0].Description != "" {
			description = apiResp.Weather[0].Description
		}
		icon = apiResp.Weather[0].Icon
	}

	city := apiResp.Name
	if city == "" {
		city = location
	}

	return models.WeatherSnapshot{
		ID:          uuid.New().String(),
		City:        city,
		Country:     apiResp.Sys.Country,
		Temperature: apiResp.Main.Temp,
		FeelsLike:   apiResp.Main.FeelsLike,
		Humidity:    apiResp.Main.Humidity,
		WindSpeed:   apiResp.Wind.Speed,
		Description: description,
		Icon:        icon,
		CapturedAt:  c.now().UTC(),
		Source:      SourceName,
	}
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

// ValidateAPIKey issues a current-weather request and reports whether the key is accepted.
func (c *OpenWeatherClient) ValidateAPIKey(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	params := url.Values{}
	params.Set("q", "London")
	req, err := c.buildRequest(ctx, c.currentURL, params)
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("validation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: API key is invalid or not activated", ErrInvalidAPIKey)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("validation failed: HTTP %d", resp.StatusCode)
	}
	return nil
}
