package services

import (
	"fmt"
	"time"

	"floodwatch/config"
	"floodwatch/models"
)

// ComposeReport assembles the snapshot report for one device from an
// ascending reading window covering the requested number of hours. It
// returns nil when the window is empty. The four fixed period averages
// are always relative to now, independent of the report's own window,
// and the alert pass uses the documented default thresholds over the
// report's window regardless of any configured overrides.
func ComposeReport(deviceID string, hours int, readings []models.Reading, now time.Time) *models.WaterLevelReport {
	if len(readings) == 0 {
		return nil
	}

	latest := readings[len(readings)-1].WaterLevel
	max := readings[0].WaterLevel
	min := readings[0].WaterLevel
	var sum float64
	for _, r := range readings {
		if r.WaterLevel > max {
			max = r.WaterLevel
		}
		if r.WaterLevel < min {
			min = r.WaterLevel
		}
		sum += r.WaterLevel
	}

	return &models.WaterLevelReport{
		DeviceID:           deviceID,
		GeneratedAt:        now,
		Period:             fmt.Sprintf("Last %d hours", hours),
		Latest:             latest,
		Max:                max,
		Min:                min,
		Average:            round1(sum / float64(len(readings))),
		TimePeriodAverages: ComputePeriodAverages(readings, now),
		Alerts:             DetectAnomalies(readings, config.DefaultHighThreshold, config.DefaultLowThreshold),
	}
}
