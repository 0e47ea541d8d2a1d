package services

import (
	"fmt"
	"math"
	"time"

	"floodwatch/config"
	"floodwatch/models"
)

// PredictFloodRisk classifies flood danger from a trailing window of
// readings in ascending order. It needs at least two points; otherwise it
// returns nil ("insufficient data", not an error).
//
// The average rate comes from summing consecutive level and time deltas
// across the whole window, and the 30/60 minute projections are linear
// extrapolations from the newest level. Three checks then classify the
// risk; each can only raise the level, never lower it, so the result is
// the maximum severity any single factor triggered.
func PredictFloodRisk(readings []models.Reading, cfg config.AlertConfig, now time.Time) *models.FloodRiskPrediction {
	if len(readings) < 2 {
		return nil
	}

	currentLevel := readings[len(readings)-1].WaterLevel

	var totalChange, totalMinutes float64
	for i := 1; i < len(readings); i++ {
		totalChange += readings[i].WaterLevel - readings[i-1].WaterLevel
		totalMinutes += readings[i].CreatedAt.Sub(readings[i-1].CreatedAt).Minutes()
	}

	rate := 0.0
	if totalMinutes > 0 {
		rate = round2(totalChange / totalMinutes)
	}

	predicted30 := round1(currentLevel + rate*30)
	predicted60 := round1(currentLevel + rate*60)

	factors := []string{}
	level := models.RiskSafe

	// Factor 1: current level
	if currentLevel >= cfg.CriticalLevel {
		level = models.RiskCritical
		factors = append(factors, fmt.Sprintf("Current level (%.1fcm) exceeds critical threshold", currentLevel))
	} else if currentLevel >= cfg.WarningLevel {
		level = models.RiskWarning
		factors = append(factors, fmt.Sprintf("Current level (%.1fcm) exceeds warning threshold", currentLevel))
	}

	// Factor 2: rate of change
	if rate >= cfg.CriticalRiseRate {
		level = models.RiskCritical
		factors = append(factors, fmt.Sprintf("Rapid rise rate (%.2f cm/min)", rate))
	} else if rate >= cfg.WarningRiseRate && level != models.RiskCritical {
		if level == models.RiskSafe {
			level = models.RiskWarning
		}
		factors = append(factors, fmt.Sprintf("Moderate rise rate (%.2f cm/min)", rate))
	}

	// Factor 3: 30 minute projection
	if predicted30 >= cfg.CriticalLevel && level != models.RiskCritical {
		level = models.RiskCritical
		factors = append(factors, "Predicted to reach critical level in 30 minutes")
	} else if predicted30 >= cfg.WarningLevel && level == models.RiskSafe {
		level = models.RiskWarning
		factors = append(factors, "Predicted to reach warning level in 30 minutes")
	}

	if len(factors) == 0 {
		factors = append(factors, "All parameters within safe limits")
	}

	// Sample-density heuristic, saturating at 20 points. Not a
	// statistical confidence interval.
	confidence := int(math.Min(100, math.Round(float64(len(readings))/20*100)))

	return &models.FloodRiskPrediction{
		Level:            level,
		CurrentLevel:     currentLevel,
		ChangeRate:       rate,
		PredictedLevel30: predicted30,
		PredictedLevel60: predicted60,
		Confidence:       confidence,
		Factors:          factors,
		Timestamp:        now,
	}
}

// RiskFromLevel classifies a bare level against the configured
// thresholds, with no rate or projection input. Used for the node map.
func RiskFromLevel(level float64, cfg config.AlertConfig) models.RiskLevel {
	switch {
	case level >= cfg.CriticalLevel:
		return models.RiskCritical
	case level >= cfg.WarningLevel:
		return models.RiskWarning
	default:
		return models.RiskSafe
	}
}
