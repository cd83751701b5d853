package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	start := clock.Now()
	if d := clock.Since(start); d < 0 {
		t.Errorf("expected non-negative duration, got %v", d)
	}
}

func TestMockClock_SetAndAdvance(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := NewMockClock(base)

	if got := clock.Now(); !got.Equal(base) {
		t.Errorf("expected %v, got %v", base, got)
	}

	clock.Advance(250 * time.Millisecond)
	if got := clock.Since(base); got != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", got)
	}

	later := base.Add(time.Hour)
	clock.Set(later)
	if got := clock.Now(); !got.Equal(later) {
		t.Errorf("expected %v, got %v", later, got)
	}
}

func TestSteppingClock(t *testing.T) {
	base := time.Unix(0, 0)
	clock := NewSteppingClock(base, 10*time.Millisecond)

	start := clock.Now()
	if !start.Equal(base) {
		t.Errorf("expected first read at base, got %v", start)
	}
	if got := clock.Since(start); got != 10*time.Millisecond {
		t.Errorf("expected 10ms between reads, got %v", got)
	}
	if got := clock.Since(start); got != 20*time.Millisecond {
		t.Errorf("expected 20ms after the third read, got %v", got)
	}
}
