package validation

import (
	"errors"
	"fmt"
	"strings"
)

// Bounds on request parameters.
const (
	MinForecastDays = 1
	MaxForecastDays = 10
	MinHistoryCount = 1
	MaxHistoryCount = 100
)

// ErrLocationEmpty is returned when location is empty or whitespace-only after trim.
var ErrLocationEmpty = errors.New("location is required")

// ErrLocationTooShort is returned when location length is below the minimum.
var ErrLocationTooShort = errors.New("location too short")

// ErrLocationTooLong is returned when location length exceeds the maximum.
var ErrLocationTooLong = errors.New("location too long")

// ErrIDEmpty is returned when a snapshot id is empty or whitespace-only.
var ErrIDEmpty = errors.New("id is required")

// ErrDaysOutOfRange is returned when a forecast day count falls outside [1,10].
var ErrDaysOutOfRange = errors.New("days out of range")

// ErrCountOutOfRange is returned when a history count falls outside [1,100].
var ErrCountOutOfRange = errors.New("count out of range")

// ValidateLocation trims the input and enforces length bounds (minLen, maxLen in runes).
// A bound of zero disables that check. Returns the trimmed location.
// Normalization (e.g. lowercase) is left to the service layer.
func ValidateLocation(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	n := len([]rune(s))
	if n == 0 {
		return "", ErrLocationEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrLocationTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrLocationTooLong
	}
	return s, nil
}

// ValidateID trims a snapshot identifier and rejects blank values.
func ValidateID(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", ErrIDEmpty
	}
	return s, nil
}

// ValidateDays checks the forecast day count is within [MinForecastDays, MaxForecastDays].
func ValidateDays(days int) error {
	if days < MinForecastDays || days > MaxForecastDays {
		return fmt.Errorf("%w: days must be between %d and %d, got %d", ErrDaysOutOfRange, MinForecastDays, MaxForecastDays, days)
	}
	return nil
}

// ValidateCount checks the history count is within [MinHistoryCount, MaxHistoryCount].
func ValidateCount(count int) error {
	if count < MinHistoryCount || count > MaxHistoryCount {
		return fmt.Errorf("%w: count must be between %d and %d, got %d", ErrCountOutOfRange, MinHistoryCount, MaxHistoryCount, count)
	}
	return nil
}
