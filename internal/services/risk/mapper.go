package risk

import (
	"math"

	"EdgePulse/internal/services/features"
)

// Config bounds the probability-to-exposure transform.
type Config struct {
	NeutralZone      float64 `yaml:"neutral_zone"`
	VolatilityTarget float64 `yaml:"volatility_target"`
	VolatilityFloor  float64 `yaml:"volatility_floor"`
	MaxExposure      float64 `yaml:"max_exposure"`
}

// DefaultConfig returns the reference risk parameters.
func DefaultConfig() Config {
	return Config{
		NeutralZone:      0.05,
		VolatilityTarget: 0.015,
		VolatilityFloor:  1e-4,
		MaxExposure:      0.5,
	}
}

// Map converts a model probability and a forecast-volatility estimate into a
// bounded exposure in [-MaxExposure, MaxExposure].
//
// The probability maps to a signal in [-1,1]; signals inside the neutral
// zone produce zero exposure. High forecast volatility dampens the signal
// (scale = min(target/vol, 1)) but never amplifies it.
func Map(probability, forecastVol float64, cfg Config) float64 {
	p := clamp(probability, 0, 1)
	signal := p*2 - 1
	if math.Abs(signal) < cfg.NeutralZone {
		return 0
	}
	vol := math.Max(forecastVol, cfg.VolatilityFloor)
	scale := math.Min(features.SafeDiv(cfg.VolatilityTarget, vol, 1), 1)
	return clamp(signal*scale, -cfg.MaxExposure, cfg.MaxExposure)
}

// ForecastVolatility estimates the trailing return dispersion as the sample
// standard deviation of the last lookback log returns. With no returns
// available it reports the configured volatility target: a neutral default
// so an empty history never produces false high-conviction sizing.
func ForecastVolatility(returns []float64, lookback int, cfg Config) float64 {
	if len(returns) == 0 || lookback <= 0 {
		return cfg.VolatilityTarget
	}
	return features.RollingStd(returns, len(returns)-1, lookback)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
