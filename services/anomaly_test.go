package services

import (
	"testing"
	"time"

	"floodwatch/models"
)

func TestDetectAnomalies(t *testing.T) {
	window := []models.Reading{
		reading(100, base),
		reading(155, base.Add(1*time.Minute)),
		reading(5, base.Add(2*time.Minute)),
		reading(149.9, base.Add(3*time.Minute)),
	}

	alerts := DetectAnomalies(window, 150, 10)

	if len(alerts) != 2 {
		t.Fatalf("got %d alerts, want 2", len(alerts))
	}

	if alerts[0].Kind != models.AnomalyHigh {
		t.Errorf("alerts[0].Kind = %v, want high", alerts[0].Kind)
	}
	if alerts[0].Level != 155 || alerts[0].Threshold != 150 {
		t.Errorf("alerts[0] = %.1f/%.0f, want 155/150", alerts[0].Level, alerts[0].Threshold)
	}
	if alerts[0].Message != "Water level too HIGH: 155.0cm (threshold: 150cm)" {
		t.Errorf("alerts[0].Message = %q", alerts[0].Message)
	}

	if alerts[1].Kind != models.AnomalyLow {
		t.Errorf("alerts[1].Kind = %v, want low", alerts[1].Kind)
	}
	if alerts[1].Message != "Water level too LOW: 5.0cm (threshold: 10cm)" {
		t.Errorf("alerts[1].Message = %q", alerts[1].Message)
	}
}

func TestDetectAnomaliesBoundaryIsSafe(t *testing.T) {
	// Comparison is strict; readings exactly at a threshold pass
	window := []models.Reading{
		reading(150, base),
		reading(10, base.Add(1*time.Minute)),
	}

	alerts := DetectAnomalies(window, 150, 10)
	if len(alerts) != 0 {
		t.Errorf("got %d alerts for boundary readings, want 0", len(alerts))
	}
}

func TestDetectAnomaliesEmptyWindow(t *testing.T) {
	alerts := DetectAnomalies(nil, 150, 10)
	if alerts == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(alerts) != 0 {
		t.Errorf("got %d alerts, want 0", len(alerts))
	}
}

func TestDetectAnomaliesPreservesOrder(t *testing.T) {
	window := []models.Reading{
		reading(200, base),
		reading(2, base.Add(1*time.Minute)),
		reading(190, base.Add(2*time.Minute)),
	}

	alerts := DetectAnomalies(window, 150, 10)
	if len(alerts) != 3 {
		t.Fatalf("got %d alerts, want 3", len(alerts))
	}
	kinds := []models.AnomalyKind{alerts[0].Kind, alerts[1].Kind, alerts[2].Kind}
	want := []models.AnomalyKind{models.AnomalyHigh, models.AnomalyLow, models.AnomalyHigh}
	for i := range kinds {
		if kinds[i] != want[i] {
			t.Errorf("alerts[%d].Kind = %v, want %v", i, kinds[i], want[i])
		}
	}
}
