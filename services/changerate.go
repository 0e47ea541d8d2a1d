package services

import (
	"math"
	"time"

	"floodwatch/models"
)

// Window sizes used by the derived-metric computations. The HTTP and
// polling layers fetch exactly these windows from the store.
const (
	ChangeRateWindow  = 30 * time.Minute
	ChangeRateMaxRows = 10
	AnomalyWindow     = 1 * time.Hour
	PredictionWindow  = 2 * time.Hour
	SmartAlertWindow  = 30 * time.Minute
	AggregatorWindow  = 24 * time.Hour
)

// Rate below which the trend is considered stable (dead-band, cm/min)
const stableDeadBand = 0.05

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ComputeChangeRate derives the instantaneous rate of change from a short
// reading window, newest first, capped at ChangeRateMaxRows entries. It
// returns nil when fewer than two readings exist or the window spans zero
// time; both are valid "no result" outcomes, not errors. The computation
// is pure: the same window always yields the same result.
func ComputeChangeRate(readings []models.Reading, now time.Time) *models.ChangeRate {
	if len(readings) < 2 {
		return nil
	}
	if len(readings) > ChangeRateMaxRows {
		readings = readings[:ChangeRateMaxRows]
	}

	latest := readings[0]
	previous := readings[len(readings)-1]

	deltaMinutes := latest.CreatedAt.Sub(previous.CreatedAt).Minutes()
	if deltaMinutes == 0 {
		return nil
	}

	rate := round2((latest.WaterLevel - previous.WaterLevel) / deltaMinutes)

	trend := models.TrendStable
	if math.Abs(rate) >= stableDeadBand {
		if rate > 0 {
			trend = models.TrendRising
		} else {
			trend = models.TrendFalling
		}
	}

	return &models.ChangeRate{
		CurrentLevel:     latest.WaterLevel,
		PreviousLevel:    previous.WaterLevel,
		RateCmPerMin:     rate,
		Trend:            trend,
		TrendStrength:    classifyStrength(rate),
		TimeDeltaMinutes: round1(deltaMinutes),
		CalculatedAt:     now,
	}
}

func classifyStrength(rate float64) models.TrendStrength {
	abs := math.Abs(rate)
	switch {
	case abs < 0.1:
		return models.StrengthSlow
	case abs < 0.5:
		return models.StrengthModerate
	case abs < 2.0:
		return models.StrengthFast
	default:
		return models.StrengthRapid
	}
}
