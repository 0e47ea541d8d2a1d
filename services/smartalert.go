package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"floodwatch/config"
	"floodwatch/models"
)

// AlertEngine evaluates the smart alert conditions for a device and owns
// the per-device, per-kind cooldown state. The state lives for the
// engine's lifetime and is never persisted; separate instances (one per
// test, or one per device group) are fully independent.
type AlertEngine struct {
	mu           sync.Mutex
	cfg          config.AlertConfig
	lastEmission map[string]time.Time
}

// NewAlertEngine creates an alert engine with its own cooldown state
func NewAlertEngine(cfg config.AlertConfig) *AlertEngine {
	return &AlertEngine{
		cfg:          cfg,
		lastEmission: make(map[string]time.Time),
	}
}

// Config returns the current alert thresholds
func (e *AlertEngine) Config() config.AlertConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// UpdateConfig replaces the alert thresholds. Cooldown state is kept:
// changing thresholds must not re-trigger suppressed alerts.
func (e *AlertEngine) UpdateConfig(cfg config.AlertConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
}

// Evaluate runs one alert cycle over a 30-minute reading window, newest
// first, and returns only the notifications emitted this cycle. Fewer
// than two readings emits nothing.
//
// The cooldown timestamp is stamped at emission, before any downstream
// delivery: a failed notification is not retried within the cooldown
// window. Delivery is at-most-once by design.
func (e *AlertEngine) Evaluate(deviceID string, readings []models.Reading, now time.Time) []models.AlertNotification {
	if len(readings) < 2 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	cfg := e.cfg

	latest := readings[0]
	currentLevel := latest.WaterLevel

	// Rate against the 6th-from-end reading, or the oldest when the
	// window is shorter
	prevIdx := len(readings) - 1
	if prevIdx > 5 {
		prevIdx = 5
	}
	previous := readings[prevIdx]

	rate := 0.0
	if deltaMinutes := latest.CreatedAt.Sub(previous.CreatedAt).Minutes(); deltaMinutes > 0 {
		rate = (currentLevel - previous.WaterLevel) / deltaMinutes
	}

	riskStatus := models.RiskSafe
	switch {
	case currentLevel >= cfg.CriticalLevel || rate >= cfg.CriticalRiseRate:
		riskStatus = models.RiskCritical
	case currentLevel >= cfg.WarningLevel || rate >= cfg.WarningRiseRate:
		riskStatus = models.RiskWarning
	}

	var emitted []models.AlertNotification
	emit := func(kind models.AlertKind, severity models.Severity, message string) {
		key := string(kind) + ":" + deviceID
		if last, ok := e.lastEmission[key]; ok && now.Sub(last) <= cfg.Cooldown {
			return
		}
		e.lastEmission[key] = now
		emitted = append(emitted, models.AlertNotification{
			ID:           uuid.NewString(),
			DeviceID:     deviceID,
			Kind:         kind,
			Severity:     severity,
			CurrentLevel: currentLevel,
			ChangeRate:   round2(rate),
			RiskStatus:   riskStatus,
			Message:      message,
			Timestamp:    latest.CreatedAt,
		})
	}

	if currentLevel > cfg.HighThreshold {
		severity := models.SeverityWarning
		if currentLevel >= cfg.CriticalLevel {
			severity = models.SeverityCritical
		}
		emit(models.AlertHighLevel, severity,
			fmt.Sprintf("High water level: %.1fcm (threshold: %.0fcm)", currentLevel, cfg.HighThreshold))
	}

	if currentLevel < cfg.LowThreshold {
		emit(models.AlertLowLevel, models.SeverityWarning,
			fmt.Sprintf("Low water level: %.1fcm (threshold: %.0fcm)", currentLevel, cfg.LowThreshold))
	}

	if rate >= cfg.WarningRiseRate {
		severity := models.SeverityWarning
		if rate >= cfg.CriticalRiseRate {
			severity = models.SeverityCritical
		}
		emit(models.AlertRapidRise, severity,
			fmt.Sprintf("Rapid water rise: %.2f cm/min", rate))
	}

	if riskStatus == models.RiskCritical {
		emit(models.AlertCriticalRisk, models.SeverityCritical,
			"CRITICAL flood risk - immediate attention required")
	}

	return emitted
}
