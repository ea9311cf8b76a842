package features

import (
	"math"

	"EdgePulse/internal/domain/models"
)

// divEps is the denominator magnitude below which SafeDiv falls back.
const divEps = 1e-12

// SafeDiv divides n by d, returning fallback when the denominator is
// effectively zero or either operand is non-finite. Numeric edge cases are
// handled here so they never propagate as NaN/Inf through the pipeline.
func SafeDiv(n, d, fallback float64) float64 {
	if math.IsNaN(n) || math.IsInf(n, 0) || math.IsNaN(d) || math.IsInf(d, 0) {
		return fallback
	}
	if math.Abs(d) < divEps {
		return fallback
	}
	return n / d
}

// LogReturns computes r[i] = ln(close[i]/close[i-1]), aligned to the input:
// r[0] = 0, and 0 whenever the previous close is not positive.
func LogReturns(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		cur := bars[i].Close
		if prev <= 0 || cur <= 0 {
			out[i] = 0
			continue
		}
		out[i] = math.Log(cur / prev)
	}
	return out
}

// RollingStd returns the sample standard deviation (divisor max(n-1,1)) of
// the trailing lookback values ending at index i, using a shorter window at
// the start of the series.
func RollingStd(series []float64, i, lookback int) float64 {
	if i < 0 || i >= len(series) || lookback <= 0 {
		return 0
	}
	start := i - lookback + 1
	if start < 0 {
		start = 0
	}
	n := i - start + 1
	sum := 0.0
	for j := start; j <= i; j++ {
		sum += series[j]
	}
	mean := sum / float64(n)
	sum2 := 0.0
	for j := start; j <= i; j++ {
		d := series[j] - mean
		sum2 += d * d
	}
	div := n - 1
	if div < 1 {
		div = 1
	}
	v := sum2 / float64(div)
	if v < 0 {
		v = 0
	}
	return math.Sqrt(v)
}

// SMA computes the simple moving average; indices before period-1 are 0.
func SMA(series []float64, period int) []float64 {
	out := make([]float64, len(series))
	if period <= 0 {
		return out
	}
	sum := 0.0
	for i, v := range series {
		sum += v
		if i >= period {
			sum -= series[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA computes the exponential moving average with alpha = 2/(period+1),
// seeded with the first value.
func EMA(series []float64, period int) []float64 {
	out := make([]float64, len(series))
	if len(series) == 0 || period <= 0 {
		return out
	}
	alpha := 2.0 / (float64(period) + 1.0)
	out[0] = series[0]
	for i := 1; i < len(series); i++ {
		out[i] = alpha*series[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSI computes the unit-scaled Relative Strength Index: a simple average of
// gains/losses over the first period deltas, Wilder smoothing afterwards.
// RSI = 1 - 1/(1+RS); avgLoss = 0 yields RS = 100. Indices before the first
// defined value hold the 0.5 default.
func RSI(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = 0.5
	}
	if period <= 0 || len(closes) <= period {
		return out
	}

	avgGain := 0.0
	avgLoss := 0.0
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			avgGain += d
		} else {
			avgLoss -= d
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	rs := 100.0
	if avgLoss > 0 {
		rs = avgGain / avgLoss
	}
	return 1.0 - 1.0/(1.0+rs)
}

// MACD returns the macd line EMA(fast)-EMA(slow) and its EMA(signal) line.
func MACD(closes []float64, fast, slow, signal int) (macd, signalLine []float64) {
	emaFast := EMA(closes, fast)
	emaSlow := EMA(closes, slow)
	macd = make([]float64, len(closes))
	for i := range macd {
		macd[i] = emaFast[i] - emaSlow[i]
	}
	signalLine = EMA(macd, signal)
	return macd, signalLine
}

// TSI computes the True Strength Index: momentum and |momentum| smoothed by
// EMA(short) then EMA(long); 0 where the smoothed |momentum| vanishes.
func TSI(closes []float64, long, short int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return out
	}
	mom := make([]float64, len(closes))
	absMom := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		mom[i] = closes[i] - closes[i-1]
		absMom[i] = math.Abs(mom[i])
	}
	num := EMA(EMA(mom, short), long)
	den := EMA(EMA(absMom, short), long)
	for i := range out {
		out[i] = SafeDiv(num[i], den[i], 0)
	}
	return out
}

// ATRRatio computes EMA(true range, period) divided by close per index.
func ATRRatio(bars []models.Bar, period int) []float64 {
	tr := make([]float64, len(bars))
	for i, b := range bars {
		r := b.High - b.Low
		if i > 0 {
			prevClose := bars[i-1].Close
			r = math.Max(r, math.Abs(b.High-prevClose))
			r = math.Max(r, math.Abs(b.Low-prevClose))
		}
		tr[i] = r
	}
	atr := EMA(tr, period)
	out := make([]float64, len(bars))
	for i := range out {
		out[i] = SafeDiv(atr[i], bars[i].Close, 0)
	}
	return out
}

// Momentum computes v[i]/v[i-lookback] - 1; 0 for i < lookback or zero base.
func Momentum(series []float64, lookback int) []float64 {
	out := make([]float64, len(series))
	if lookback <= 0 {
		return out
	}
	for i := lookback; i < len(series); i++ {
		out[i] = SafeDiv(series[i], series[i-lookback], 1) - 1
	}
	return out
}

// BollingerPct computes (v - SMA(period)) / (k * stdev(period)); 0 when the
// band width is effectively zero.
func BollingerPct(series []float64, period int, k float64) []float64 {
	sma := SMA(series, period)
	out := make([]float64, len(series))
	for i := range series {
		sd := RollingStd(series, i, period)
		out[i] = SafeDiv(series[i]-sma[i], k*sd, 0)
	}
	return out
}

// VolumeSMARatio computes volume[i]/SMA(volume, period) - 1.
func VolumeSMARatio(volumes []float64, period int) []float64 {
	sma := SMA(volumes, period)
	out := make([]float64, len(volumes))
	for i := range volumes {
		out[i] = SafeDiv(volumes[i], sma[i], 1) - 1
	}
	return out
}
