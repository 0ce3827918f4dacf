package service

import (
	"time"

	"github.com/kjstillabower/weather-snapshot-service/internal/models"
)

// AggregateDays groups raw samples by UTC calendar date.
//
// Dates appear in the order they are first encountered in samples, which is not
// necessarily chronological. Min and max temperature cover every sample of a date.
// Description, icon, humidity and wind speed come from the date's earliest sample;
// equal timestamps keep the one seen first. The result holds at most days entries
// (no limit when days <= 0).
func AggregateDays(samples []models.ForecastSample, days int) []models.DaySummary {
	out := make([]models.DaySummary, 0, len(samples))
	earliest := make([]time.Time, 0, len(samples))
	index := make(map[int64]int)

	for _, sample := range samples {
		ts := sample.Timestamp.UTC()
		date := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)

		i, seen := index[date.Unix()]
		if !seen {
			index[date.Unix()] = len(out)
			out = append(out, models.DaySummary{
				Date:           date,
				MinTemperature: sample.Temperature,
				MaxTemperature: sample.Temperature,
			})
			earliest = append(earliest, ts)
			copyRepresentative(&out[len(out)-1], sample)
			continue
		}

		day := &out[i]
		if sample.Temperature < day.MinTemperature {
			day.MinTemperature = sample.Temperature
		}
		if sample.Temperature > day.MaxTemperature {
			day.MaxTemperature = sample.Temperature
		}
		if ts.Before(earliest[i]) {
			earliest[i] = ts
			copyRepresentative(day, sample)
		}
	}

	if days > 0 && len(out) > days {
		out = out[:days]
	}
	return out
}

func copyRepresentative(day *models.DaySummary, sample models.ForecastSample) {
	day.Description = sample.Description
	day.Icon = sample.Icon
	day.Humidity = sample.Humidity
	day.WindSpeed = sample.WindSpeed
}
