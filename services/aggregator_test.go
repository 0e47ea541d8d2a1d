package services

import (
	"testing"
	"time"

	"floodwatch/models"
)

func TestComputePeriodAverages(t *testing.T) {
	window := []models.Reading{
		reading(100, base.Add(-30*time.Minute)),
		reading(110, base.Add(-50*time.Minute)),
		reading(120, base.Add(-3*time.Hour)),
		reading(170, base.Add(-20*time.Hour)),
	}

	got := ComputePeriodAverages(window, base)

	if got.Last1Hour != 105.0 {
		t.Errorf("last 1h = %v, want 105.0", got.Last1Hour)
	}
	if got.Last6Hours != 110.0 {
		t.Errorf("last 6h = %v, want 110.0", got.Last6Hours)
	}
	if got.Last12Hours != 110.0 {
		t.Errorf("last 12h = %v, want 110.0", got.Last12Hours)
	}
	if got.Last24Hours != 125.0 {
		t.Errorf("last 24h = %v, want 125.0", got.Last24Hours)
	}
}

func TestComputePeriodAveragesEmptyPeriodSentinel(t *testing.T) {
	// Nothing in the last hour, so the 1h slot keeps the zero sentinel
	window := []models.Reading{
		reading(140, base.Add(-5*time.Hour)),
	}

	got := ComputePeriodAverages(window, base)

	if got.Last1Hour != 0 {
		t.Errorf("last 1h = %v, want 0 sentinel", got.Last1Hour)
	}
	if got.Last6Hours != 140.0 {
		t.Errorf("last 6h = %v, want 140.0", got.Last6Hours)
	}

	empty := ComputePeriodAverages(nil, base)
	if empty.Last24Hours != 0 {
		t.Errorf("last 24h = %v, want 0 sentinel for empty batch", empty.Last24Hours)
	}
}

func TestComputePeriodAveragesCutoffInclusive(t *testing.T) {
	// A reading exactly on the cutoff boundary belongs to the period
	window := []models.Reading{
		reading(130, base.Add(-1*time.Hour)),
	}

	got := ComputePeriodAverages(window, base)
	if got.Last1Hour != 130.0 {
		t.Errorf("last 1h = %v, want 130.0", got.Last1Hour)
	}
}

func TestComputePeriodAveragesRounding(t *testing.T) {
	window := []models.Reading{
		reading(100, base.Add(-10*time.Minute)),
		reading(101, base.Add(-20*time.Minute)),
		reading(103, base.Add(-30*time.Minute)),
	}

	got := ComputePeriodAverages(window, base)
	if got.Last1Hour != 101.3 {
		t.Errorf("last 1h = %v, want 101.3", got.Last1Hour)
	}
}
