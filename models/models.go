package models

import (
	"time"
)

// Reading represents a single water level observation from a sensor node
type Reading struct {
	ID         int       `json:"id" db:"id"`
	DeviceID   string    `json:"device_id" db:"device_id"`
	WaterLevel float64   `json:"water_level" db:"water_level"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// SensorReading represents incoming sensor data from Kafka
type SensorReading struct {
	DeviceID   string    `json:"device_id"`
	WaterLevel float64   `json:"water_level"`
	Timestamp  time.Time `json:"timestamp"`
}

// Trend describes the qualitative direction of level change
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
)

// TrendStrength buckets the absolute change rate
type TrendStrength string

const (
	StrengthSlow     TrendStrength = "slow"
	StrengthModerate TrendStrength = "moderate"
	StrengthFast     TrendStrength = "fast"
	StrengthRapid    TrendStrength = "rapid"
)

// ChangeRate is the derived rate of water level change for one device.
// It is recomputed per poll and never persisted.
type ChangeRate struct {
	CurrentLevel     float64       `json:"current_level"`
	PreviousLevel    float64       `json:"previous_level"`
	RateCmPerMin     float64       `json:"change_rate"`
	Trend            Trend         `json:"trend"`
	TrendStrength    TrendStrength `json:"trend_strength"`
	TimeDeltaMinutes float64       `json:"time_delta_minutes"`
	CalculatedAt     time.Time     `json:"calculated_at"`
}

// TimePeriodAverages holds mean levels over fixed trailing windows.
// A value of 0 is a sentinel meaning "no data in that window", not a
// real reading of zero; callers must render it as such.
type TimePeriodAverages struct {
	Last1Hour   float64 `json:"last_1_hour"`
	Last6Hours  float64 `json:"last_6_hours"`
	Last12Hours float64 `json:"last_12_hours"`
	Last24Hours float64 `json:"last_24_hours"`
}

// AnomalyKind is the direction of a threshold violation
type AnomalyKind string

const (
	AnomalyHigh AnomalyKind = "high"
	AnomalyLow  AnomalyKind = "low"
)

// AnomalyAlert flags one reading outside the static thresholds. This is a
// detection record, not a notification: the same offending reading reappears
// on every pass until it leaves the lookback window.
type AnomalyAlert struct {
	Kind      AnomalyKind `json:"type"`
	Level     float64     `json:"current_level"`
	Threshold float64     `json:"threshold"`
	Timestamp time.Time   `json:"timestamp"`
	Message   string      `json:"message"`
}

// RiskLevel is the ordinal flood danger classification
type RiskLevel string

const (
	RiskSafe     RiskLevel = "safe"
	RiskWarning  RiskLevel = "warning"
	RiskCritical RiskLevel = "critical"
)

// FloodRiskPrediction combines current level, average rise rate and linear
// extrapolation into a tiered classification with explanatory factors.
// Confidence is a saturating function of sample density, not a probability.
type FloodRiskPrediction struct {
	Level            RiskLevel `json:"level"`
	CurrentLevel     float64   `json:"current_level"`
	ChangeRate       float64   `json:"change_rate"`
	PredictedLevel30 float64   `json:"predicted_level_30min"`
	PredictedLevel60 float64   `json:"predicted_level_60min"`
	Confidence       int       `json:"confidence"`
	Factors          []string  `json:"factors"`
	Timestamp        time.Time `json:"timestamp"`
}

// AlertKind identifies a smart alert condition
type AlertKind string

const (
	AlertHighLevel    AlertKind = "high_level"
	AlertLowLevel     AlertKind = "low_level"
	AlertRapidRise    AlertKind = "rapid_rise"
	AlertCriticalRisk AlertKind = "critical_risk"
)

// Severity of an emitted alert notification
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AlertNotification is one cooldown-gated emission from the alert engine
type AlertNotification struct {
	ID               string    `json:"id"`
	DeviceID         string    `json:"device_id"`
	Kind             AlertKind `json:"type"`
	Severity         Severity  `json:"severity"`
	CurrentLevel     float64   `json:"current_level"`
	ChangeRate       float64   `json:"change_rate"`
	RiskStatus       RiskLevel `json:"risk_status"`
	Message          string    `json:"message"`
	Timestamp        time.Time `json:"timestamp"`
	Acknowledged     bool      `json:"acknowledged"`
	NotificationSent bool      `json:"notification_sent"`
}

// WaterLevelStats summarizes a reading window for one device
type WaterLevelStats struct {
	Latest    float64   `json:"latest"`
	Max       float64   `json:"max"`
	Min       float64   `json:"min"`
	Average   float64   `json:"average"`
	Timestamp time.Time `json:"timestamp"`
}

// WaterLevelReport is an on-demand snapshot, immutable after construction
// and never persisted
type WaterLevelReport struct {
	DeviceID           string             `json:"device_id"`
	GeneratedAt        time.Time          `json:"generated_at"`
	Period             string             `json:"period"`
	Latest             float64            `json:"latest"`
	Max                float64            `json:"max"`
	Min                float64            `json:"min"`
	Average            float64            `json:"average"`
	TimePeriodAverages TimePeriodAverages `json:"time_period_averages"`
	Alerts             []AnomalyAlert     `json:"alerts"`
}

// DeviceLocation is a sensor node's map position
type DeviceLocation struct {
	DeviceID  string  `json:"device_id" db:"device_id"`
	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`
	Name      string  `json:"name" db:"name"`
}

// DeviceNode is a sensor node with its latest reading and a level-only
// risk classification, for map display
type DeviceNode struct {
	DeviceID      string    `json:"device_id"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Name          string    `json:"name"`
	LatestReading float64   `json:"latest_reading"`
	LastUpdated   time.Time `json:"last_updated"`
	RiskLevel     RiskLevel `json:"risk_level"`
}

// DeviceState is the remote pump actuator state. Pump true means the
// pump relay on the node is engaged.
type DeviceState struct {
	ID        int       `json:"id" db:"id"`
	Pump      bool      `json:"pump" db:"pump"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// WebSocketMessage represents a message sent to WebSocket clients
type WebSocketMessage struct {
	Type      string      `json:"type"`
	DeviceID  string      `json:"device_id,omitempty"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// DeviceMetrics is the per-cycle derived snapshot pushed to clients
type DeviceMetrics struct {
	DeviceID   string               `json:"device_id"`
	ChangeRate *ChangeRate          `json:"change_rate,omitempty"`
	Prediction *FloodRiskPrediction `json:"prediction,omitempty"`
	Averages   *TimePeriodAverages  `json:"averages,omitempty"`
}
