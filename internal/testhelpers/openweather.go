// Package testhelpers provides shared fixtures for tests that exercise the full stack.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kjstillabower/weather-snapshot-service/internal/client"
)

// FakeAPIKey passes the client's key-shape check.
const FakeAPIKey = "fake-openweather-key-0001"

// City is one location the fake upstream knows about.
type City struct {
	Name        string
	Country     string
	Temperature float64
	Description string
}

// FakeOpenWeather is an httptest server that answers /weather and /forecast the way
// OpenWeatherMap does. Unknown cities get 404.
type FakeOpenWeather struct {
	Server *httptest.Server

	mu     sync.Mutex
	cities map[string]City
	status int

	currentCalls  atomic.Int64
	forecastCalls atomic.Int64
}

// NewFakeOpenWeather starts a fake upstream seeded with cities. The server is closed
// when the test ends.
func NewFakeOpenWeather(t *testing.T, cities ...City) *FakeOpenWeather {
	t.Helper()
	f := &FakeOpenWeather{cities: make(map[string]City)}
	for _, c := range cities {
		f.cities[strings.ToLower(c.Name)] = c
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/weather", f.serveCurrent)
	mux.HandleFunc("/forecast", f.serveForecast)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// FailWith makes every later request return status. Zero restores normal answers.
func (f *FakeOpenWeather) FailWith(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

// CurrentCalls returns how many /weather requests were served.
func (f *FakeOpenWeather) CurrentCalls() int { return int(f.currentCalls.Load()) }

// ForecastCalls returns how many /forecast requests were served.
func (f *FakeOpenWeather) ForecastCalls() int { return int(f.forecastCalls.Load()) }

// Client returns a real OpenWeatherClient pointed at the fake, with one attempt per call.
func (f *FakeOpenWeather) Client(t *testing.T) *client.OpenWeatherClient {
	t.Helper()
	c, err := client.NewOpenWeatherClient(client.Config{
		APIKey:         FakeAPIKey,
		CurrentURL:     f.Server.URL + "/weather",
		ForecastURL:    f.Server.URL + "/forecast",
		Timeout:        2 * time.Second,
		RetryAttempts:  1,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}
	return c
}

func (f *FakeOpenWeather) lookup(w http.ResponseWriter, r *http.Request) (City, bool) {
	f.mu.Lock()
	status := f.status
	city, ok := f.cities[strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))]
	f.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return City{}, false
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"cod":"404","message":"city not found"}`))
		return City{}, false
	}
	return city, true
}

func (f *FakeOpenWeather) serveCurrent(w http.ResponseWriter, r *http.Request) {
	f.currentCalls.Add(1)
	city, ok := f.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, map[string]interface{}{
		"name": city.Name,
		"sys":  map[string]interface{}{"country": city.Country},
		"main": map[string]interface{}{
			"temp":       city.Temperature,
			"feels_like": city.Temperature - 1,
			"humidity":   55,
		},
		"weather": []map[string]interface{}{{"main": "Clouds", "description": city.Description, "icon": "03d"}},
		"wind":    map[string]interface{}{"speed": 3.5},
	})
}

// serveForecast returns cnt three-hourly samples starting at the next UTC midnight. The
// temperature climbs by one degree per sample so each day's range is predictable.
func (f *FakeOpenWeather) serveForecast(w http.ResponseWriter, r *http.Request) {
	f.forecastCalls.Add(1)
	city, ok := f.lookup(w, r)
	if !ok {
		return
	}
	cnt, err := strconv.Atoi(r.URL.Query().Get("cnt"))
	if err != nil || cnt <= 0 {
		cnt = 40
	}
	start := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	list := make([]map[string]interface{}, 0, cnt)
	for i := 0; i < cnt; i++ {
		list = append(list, map[string]interface{}{
			"dt":      start.Add(time.Duration(i) * 3 * time.Hour).Unix(),
			"main":    map[string]interface{}{"temp": city.Temperature + float64(i%8), "humidity": 50 + i%8},
			"weather": []map[string]interface{}{{"main": "Clear", "description": city.Description, "icon": "01d"}},
			"wind":    map[string]interface{}{"speed": 2.0},
		})
	}
	writeJSON(w, map[string]interface{}{"list": list})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
