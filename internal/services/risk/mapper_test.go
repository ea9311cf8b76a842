package risk

import (
	"math"
	"testing"
)

func TestMapNeutralProbabilityInsideDeadband(t *testing.T) {
	if got := Map(0.5, 0.01, DefaultConfig()); got != 0 {
		t.Fatalf("probability 0.5 must map to 0 exposure, got %v", got)
	}
	// signal 0.04 still inside the 0.05 deadband
	if got := Map(0.52, 0.01, DefaultConfig()); got != 0 {
		t.Fatalf("low-conviction signal must map to 0, got %v", got)
	}
}

func TestMapClampsToMaxExposure(t *testing.T) {
	// signal 0.8, vol below target -> scale 1, raw 0.8, clamped to 0.5
	if got := Map(0.9, 0.01, DefaultConfig()); got != 0.5 {
		t.Fatalf("exposure = %v want 0.5", got)
	}
}

func TestMapVolatilityDampening(t *testing.T) {
	// signal 1.0, scale = 0.015/0.03 = 0.5 -> exposure 0.5
	if got := Map(1.0, 0.03, DefaultConfig()); got != 0.5 {
		t.Fatalf("exposure = %v want 0.5", got)
	}
	// same but shorter max exposure shows the dampened value pre-clamp
	cfg := DefaultConfig()
	cfg.MaxExposure = 1.0
	if got := Map(1.0, 0.03, cfg); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("dampened exposure = %v want 0.5", got)
	}
}

func TestMapNeverAmplifies(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxExposure = 2
	// vol far below target: scale capped at 1, exposure equals raw signal
	if got := Map(1.0, 1e-9, cfg); math.Abs(got-1.0) > 1e-12 {
		t.Fatalf("scale must cap at 1, got exposure %v", got)
	}
}

func TestMapNegativeSignal(t *testing.T) {
	got := Map(0.1, 0.01, DefaultConfig())
	if got != -0.5 {
		t.Fatalf("down-side exposure = %v want -0.5", got)
	}
}

func TestMapClipsProbability(t *testing.T) {
	if got := Map(1.7, 0.01, DefaultConfig()); got != 0.5 {
		t.Fatalf("out-of-range probability must be clipped, got %v", got)
	}
	if got := Map(-0.3, 0.01, DefaultConfig()); got != -0.5 {
		t.Fatalf("out-of-range probability must be clipped, got %v", got)
	}
}

func TestForecastVolatilityEmptyReturnsTarget(t *testing.T) {
	cfg := DefaultConfig()
	if got := ForecastVolatility(nil, 20, cfg); got != cfg.VolatilityTarget {
		t.Fatalf("empty history must return target, got %v", got)
	}
}

func TestForecastVolatilitySampleStd(t *testing.T) {
	cfg := DefaultConfig()
	rets := []float64{0.01, -0.01, 0.02, -0.02}
	got := ForecastVolatility(rets, 4, cfg)
	mean := 0.0
	sum2 := 0.0
	for _, r := range rets {
		d := r - mean
		sum2 += d * d
	}
	want := math.Sqrt(sum2 / 3)
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("forecast vol = %v want %v", got, want)
	}
}
