package services

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"floodwatch/models"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func reading(level float64, at time.Time) models.Reading {
	return models.Reading{DeviceID: "device_001", WaterLevel: level, CreatedAt: at}
}

func TestComputeChangeRateInsufficientData(t *testing.T) {
	if got := ComputeChangeRate(nil, base); got != nil {
		t.Errorf("expected nil for empty window, got %+v", got)
	}

	single := []models.Reading{reading(100, base)}
	if got := ComputeChangeRate(single, base); got != nil {
		t.Errorf("expected nil for single reading, got %+v", got)
	}
}

func TestComputeChangeRateZeroTimeDelta(t *testing.T) {
	window := []models.Reading{
		reading(160, base),
		reading(100, base),
	}
	if got := ComputeChangeRate(window, base); got != nil {
		t.Errorf("expected nil for colliding timestamps, got %+v", got)
	}
}

func TestComputeChangeRateRapidRise(t *testing.T) {
	// Device "A": 100cm at t0, 160cm five minutes later
	window := []models.Reading{
		reading(160, base.Add(5*time.Minute)),
		reading(100, base),
	}

	got := ComputeChangeRate(window, base.Add(5*time.Minute))
	if got == nil {
		t.Fatal("expected a result")
	}
	if got.RateCmPerMin != 12.0 {
		t.Errorf("rate = %v, want 12.0", got.RateCmPerMin)
	}
	if got.Trend != models.TrendRising {
		t.Errorf("trend = %v, want rising", got.Trend)
	}
	if got.TrendStrength != models.StrengthRapid {
		t.Errorf("strength = %v, want rapid", got.TrendStrength)
	}
	if got.CurrentLevel != 160 || got.PreviousLevel != 100 {
		t.Errorf("levels = %v/%v, want 160/100", got.CurrentLevel, got.PreviousLevel)
	}
	if got.TimeDeltaMinutes != 5.0 {
		t.Errorf("time delta = %v, want 5.0", got.TimeDeltaMinutes)
	}
}

func TestComputeChangeRateStableDeadBand(t *testing.T) {
	// trend is stable exactly when the rounded |rate| is below 0.05
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		diff := (rng.Float64() - 0.5) * 4 // cm
		minutes := 1 + rng.Float64()*29

		window := []models.Reading{
			reading(100+diff, base.Add(time.Duration(minutes*float64(time.Minute)))),
			reading(100, base),
		}

		got := ComputeChangeRate(window, base)
		if got == nil {
			t.Fatalf("case %d: unexpected nil result", i)
		}

		wantStable := math.Abs(got.RateCmPerMin) < 0.05
		if (got.Trend == models.TrendStable) != wantStable {
			t.Errorf("case %d: rate %v, trend %v", i, got.RateCmPerMin, got.Trend)
		}
		if !wantStable {
			if got.RateCmPerMin > 0 && got.Trend != models.TrendRising {
				t.Errorf("case %d: positive rate %v but trend %v", i, got.RateCmPerMin, got.Trend)
			}
			if got.RateCmPerMin < 0 && got.Trend != models.TrendFalling {
				t.Errorf("case %d: negative rate %v but trend %v", i, got.RateCmPerMin, got.Trend)
			}
		}
	}
}

func TestComputeChangeRateStrengthBuckets(t *testing.T) {
	tests := []struct {
		rate     float64
		expected models.TrendStrength
	}{
		{0.0, models.StrengthSlow},
		{0.09, models.StrengthSlow},
		{-0.09, models.StrengthSlow},
		{0.1, models.StrengthModerate},
		{0.49, models.StrengthModerate},
		{0.5, models.StrengthFast},
		{-1.99, models.StrengthFast},
		{2.0, models.StrengthRapid},
		{12.0, models.StrengthRapid},
	}

	for _, tt := range tests {
		// 10 minute span so the level delta maps 1:1 onto the rate
		window := []models.Reading{
			reading(100+tt.rate*10, base.Add(10*time.Minute)),
			reading(100, base),
		}
		got := ComputeChangeRate(window, base)
		if got == nil {
			t.Fatalf("rate %v: unexpected nil result", tt.rate)
		}
		if got.TrendStrength != tt.expected {
			t.Errorf("rate %v: strength = %v, want %v", tt.rate, got.TrendStrength, tt.expected)
		}
	}
}

func TestComputeChangeRateWindowCap(t *testing.T) {
	// Entries past the 10 row cap must not influence the result
	window := make([]models.Reading, 0, 12)
	for i := 0; i < 10; i++ {
		window = append(window, reading(100-float64(i), base.Add(-time.Duration(i)*time.Minute)))
	}
	window = append(window,
		reading(500, base.Add(-10*time.Minute)),
		reading(900, base.Add(-11*time.Minute)),
	)

	got := ComputeChangeRate(window, base)
	if got == nil {
		t.Fatal("expected a result")
	}
	if got.RateCmPerMin != 1.0 {
		t.Errorf("rate = %v, want 1.0 (oldest-in-cap comparison)", got.RateCmPerMin)
	}
	if got.PreviousLevel != 91 {
		t.Errorf("previous level = %v, want 91", got.PreviousLevel)
	}
}
