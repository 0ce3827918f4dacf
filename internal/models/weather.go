package models

import "time"

// WeatherSnapshot is one point-in-time reading for a location.
type WeatherSnapshot struct {
	ID          string    `json:"id" db:"id"`
	City        string    `json:"city" db:"city"`
	Country     string    `json:"country" db:"country"`
	Temperature float64   `json:"temperature" db:"temperature"`
	FeelsLike   float64   `json:"feelsLike" db:"feels_like"`
	Humidity    int       `json:"humidity" db:"humidity"`
	WindSpeed   float64   `json:"windSpeed" db:"wind_speed"`
	Description string    `json:"description" db:"description"`
	Icon        string    `json:"icon" db:"icon"`
	CapturedAt  time.Time `json:"capturedAt" db:"captured_at"` // always UTC
	Source      string    `json:"source" db:"source"`
}

// ForecastSample is a single raw time-stamped reading used as aggregation input.
type ForecastSample struct {
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Humidity    int       `json:"humidity"`
	WindSpeed   float64   `json:"windSpeed"`
}

// ForecastSummary is computed per request and never persisted.
type ForecastSummary struct {
	ID          string       `json:"id"`
	City        string       `json:"city"`
	Days        []DaySummary `json:"days"`
	GeneratedAt time.Time    `json:"generatedAt"`
}

// DaySummary holds the temperature range of one calendar day (UTC). Description, icon,
// humidity and wind speed come from the day's earliest sample, not an average.
type DaySummary struct {
	Date           time.Time `json:"date"`
	MinTemperature float64   `json:"minTemperature"`
	MaxTemperature float64   `json:"maxTemperature"`
	Description    string    `json:"description"`
	Icon           string    `json:"icon"`
	Humidity       int       `json:"humidity"`
	WindSpeed      float64   `json:"windSpeed"`
}
