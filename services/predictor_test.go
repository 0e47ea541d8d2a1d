package services

import (
	"testing"
	"time"

	"floodwatch/config"
	"floodwatch/models"
)

func hasFactor(factors []string, want string) bool {
	for _, f := range factors {
		if f == want {
			return true
		}
	}
	return false
}

func TestPredictFloodRiskInsufficientData(t *testing.T) {
	cfg := config.DefaultAlertConfig()

	if got := PredictFloodRisk(nil, cfg, base); got != nil {
		t.Errorf("expected nil for empty window, got %+v", got)
	}
	single := []models.Reading{reading(100, base)}
	if got := PredictFloodRisk(single, cfg, base); got != nil {
		t.Errorf("expected nil for single reading, got %+v", got)
	}
}

func TestPredictFloodRiskRapidRise(t *testing.T) {
	// 100cm rising to 160cm over five minutes: critical on the rate
	// factor alone, with the level factor stuck at warning
	cfg := config.DefaultAlertConfig()
	window := []models.Reading{
		reading(100, base),
		reading(160, base.Add(5*time.Minute)),
	}

	got := PredictFloodRisk(window, cfg, base.Add(5*time.Minute))
	if got == nil {
		t.Fatal("expected a prediction")
	}

	if got.Level != models.RiskCritical {
		t.Errorf("level = %v, want critical", got.Level)
	}
	if got.ChangeRate != 12.0 {
		t.Errorf("rate = %v, want 12.0", got.ChangeRate)
	}
	if got.PredictedLevel30 != 520.0 {
		t.Errorf("predicted 30m = %v, want 520.0", got.PredictedLevel30)
	}
	if got.PredictedLevel60 != 880.0 {
		t.Errorf("predicted 60m = %v, want 880.0", got.PredictedLevel60)
	}
	if got.Confidence != 10 {
		t.Errorf("confidence = %v, want 10 for 2 samples", got.Confidence)
	}
	if !hasFactor(got.Factors, "Current level (160.0cm) exceeds warning threshold") {
		t.Errorf("missing warning level factor, got %v", got.Factors)
	}
	if !hasFactor(got.Factors, "Rapid rise rate (12.00 cm/min)") {
		t.Errorf("missing rapid rise factor, got %v", got.Factors)
	}
}

func TestPredictFloodRiskCriticalLevel(t *testing.T) {
	cfg := config.DefaultAlertConfig()
	window := []models.Reading{
		reading(184.9, base),
		reading(185, base.Add(30*time.Minute)),
	}

	got := PredictFloodRisk(window, cfg, base.Add(30*time.Minute))
	if got == nil {
		t.Fatal("expected a prediction")
	}
	if got.Level != models.RiskCritical {
		t.Errorf("level = %v, want critical", got.Level)
	}
	if !hasFactor(got.Factors, "Current level (185.0cm) exceeds critical threshold") {
		t.Errorf("missing critical level factor, got %v", got.Factors)
	}
}

func TestPredictFloodRiskProjectionOnlyWarning(t *testing.T) {
	// Current level and rate are both below their warning thresholds,
	// but the 30 minute projection crosses the warning level
	cfg := config.DefaultAlertConfig()
	window := []models.Reading{
		reading(128, base),
		reading(140, base.Add(30*time.Minute)),
	}

	got := PredictFloodRisk(window, cfg, base.Add(30*time.Minute))
	if got == nil {
		t.Fatal("expected a prediction")
	}
	if got.ChangeRate != 0.4 {
		t.Errorf("rate = %v, want 0.4", got.ChangeRate)
	}
	if got.PredictedLevel30 != 152.0 {
		t.Errorf("predicted 30m = %v, want 152.0", got.PredictedLevel30)
	}
	if got.Level != models.RiskWarning {
		t.Errorf("level = %v, want warning", got.Level)
	}
	if len(got.Factors) != 1 || got.Factors[0] != "Predicted to reach warning level in 30 minutes" {
		t.Errorf("factors = %v, want only the projection factor", got.Factors)
	}
}

func TestPredictFloodRiskSafe(t *testing.T) {
	cfg := config.DefaultAlertConfig()
	window := []models.Reading{
		reading(100, base),
		reading(100.5, base.Add(30*time.Minute)),
	}

	got := PredictFloodRisk(window, cfg, base.Add(30*time.Minute))
	if got == nil {
		t.Fatal("expected a prediction")
	}
	if got.Level != models.RiskSafe {
		t.Errorf("level = %v, want safe", got.Level)
	}
	if len(got.Factors) != 1 || got.Factors[0] != "All parameters within safe limits" {
		t.Errorf("factors = %v, want the safe placeholder", got.Factors)
	}
}

func TestPredictFloodRiskConfidence(t *testing.T) {
	cfg := config.DefaultAlertConfig()

	tests := []struct {
		samples  int
		expected int
	}{
		{2, 10},
		{10, 50},
		{20, 100},
		{40, 100}, // saturates
	}

	for _, tt := range tests {
		window := make([]models.Reading, 0, tt.samples)
		for i := 0; i < tt.samples; i++ {
			window = append(window, reading(100, base.Add(time.Duration(i)*time.Minute)))
		}

		got := PredictFloodRisk(window, cfg, base)
		if got == nil {
			t.Fatalf("%d samples: expected a prediction", tt.samples)
		}
		if got.Confidence != tt.expected {
			t.Errorf("%d samples: confidence = %v, want %v", tt.samples, got.Confidence, tt.expected)
		}
	}
}

func TestRiskFromLevel(t *testing.T) {
	cfg := config.DefaultAlertConfig()

	tests := []struct {
		level    float64
		expected models.RiskLevel
	}{
		{100, models.RiskSafe},
		{149.9, models.RiskSafe},
		{150, models.RiskWarning},
		{179.9, models.RiskWarning},
		{180, models.RiskCritical},
		{250, models.RiskCritical},
	}

	for _, tt := range tests {
		if got := RiskFromLevel(tt.level, cfg); got != tt.expected {
			t.Errorf("level %v: risk = %v, want %v", tt.level, got, tt.expected)
		}
	}
}
