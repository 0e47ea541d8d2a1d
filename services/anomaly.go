package services

import (
	"fmt"

	"floodwatch/models"
)

// DetectAnomalies flags every reading outside the static thresholds.
// Comparison is strict: a reading exactly at a threshold is safe. Output
// order matches input order, one alert per offending reading, and the
// pass keeps no memory between invocations.
func DetectAnomalies(readings []models.Reading, highThreshold, lowThreshold float64) []models.AnomalyAlert {
	alerts := []models.AnomalyAlert{}

	for _, r := range readings {
		if r.WaterLevel > highThreshold {
			alerts = append(alerts, models.AnomalyAlert{
				Kind:      models.AnomalyHigh,
				Level:     r.WaterLevel,
				Threshold: highThreshold,
				Timestamp: r.CreatedAt,
				Message: fmt.Sprintf("Water level too HIGH: %.1fcm (threshold: %.0fcm)",
					r.WaterLevel, highThreshold),
			})
		} else if r.WaterLevel < lowThreshold {
			alerts = append(alerts, models.AnomalyAlert{
				Kind:      models.AnomalyLow,
				Level:     r.WaterLevel,
				Threshold: lowThreshold,
				Timestamp: r.CreatedAt,
				Message: fmt.Sprintf("Water level too LOW: %.1fcm (threshold: %.0fcm)",
					r.WaterLevel, lowThreshold),
			})
		}
	}

	return alerts
}
