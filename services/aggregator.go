package services

import (
	"time"

	"floodwatch/models"
)

// ComputePeriodAverages computes the mean level over the four fixed
// trailing windows from a single 24h reading batch. A period with no
// readings keeps the sentinel 0, which callers render as "no data".
// The batch is filtered in memory; only one store query is needed.
func ComputePeriodAverages(readings []models.Reading, now time.Time) models.TimePeriodAverages {
	return models.TimePeriodAverages{
		Last1Hour:   periodMean(readings, now.Add(-1*time.Hour)),
		Last6Hours:  periodMean(readings, now.Add(-6*time.Hour)),
		Last12Hours: periodMean(readings, now.Add(-12*time.Hour)),
		Last24Hours: periodMean(readings, now.Add(-24*time.Hour)),
	}
}

func periodMean(readings []models.Reading, cutoff time.Time) float64 {
	var sum float64
	var count int
	for _, r := range readings {
		if !r.CreatedAt.Before(cutoff) {
			sum += r.WaterLevel
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return round1(sum / float64(count))
}
