package features

import (
	"math"

	"EdgePulse/internal/domain/models"
)

// FeatureCount is the fixed per-bar feature vector length. It is a pipeline
// constant: every window produced by this package has rows of this width.
const FeatureCount = 22

// normEps: columns with stdev below this are zeroed during normalization to
// avoid exploding values on near-constant columns.
const normEps = 1e-6

// barSeries holds the indicator series aligned to one bar slice.
type barSeries struct {
	closes     []float64
	volumes    []float64
	logReturns []float64
	sma20      []float64
	ema12      []float64
	rsi14      []float64
	macd       []float64
	macdSignal []float64
	tsi        []float64
	atrRatio   []float64
	volSMA     []float64
	momentum5  []float64
	bollinger  []float64
}

func computeSeries(bars []models.Bar) *barSeries {
	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}
	s := &barSeries{
		closes:     closes,
		volumes:    volumes,
		logReturns: LogReturns(bars),
		sma20:      SMA(closes, 20),
		ema12:      EMA(closes, 12),
		rsi14:      RSI(closes, 14),
		tsi:        TSI(closes, 25, 13),
		atrRatio:   ATRRatio(bars, 14),
		volSMA:     VolumeSMARatio(volumes, 20),
		momentum5:  Momentum(closes, 5),
		bollinger:  BollingerPct(closes, 20, 2),
	}
	s.macd, s.macdSignal = MACD(closes, 12, 26, 9)
	return s
}

// featureVector builds the fixed-order 22-feature row for bar index i.
func (s *barSeries) featureVector(bars []models.Bar, i, volLookback int) []float64 {
	b := bars[i]
	upperShadow := b.High - max64(b.Open, b.Close)
	lowerShadow := min64(b.Open, b.Close) - b.Low

	v := make([]float64, 0, FeatureCount)
	v = append(v,
		b.Close,
		b.VWAP,
		s.logReturns[i],
		SafeDiv(b.High-b.Low, b.Close, 0),
		SafeDiv(b.Close-b.Open, b.Open, 0),
		SafeDiv(upperShadow, b.Close, 0),
		SafeDiv(lowerShadow, b.Close, 0),
		b.Volume,
		b.Notional,
		SafeDiv(b.BuyVolume, b.Volume, 0.5),
		b.BuyVolume-b.SellVolume,
		RollingStd(s.logReturns, i, volLookback),
		SafeDiv(b.Close, s.sma20[i], 1)-1,
		SafeDiv(b.Close, s.ema12[i], 1)-1,
		s.rsi14[i],
		s.macd[i],
		s.macdSignal[i],
		s.tsi[i],
		s.atrRatio[i],
		s.volSMA[i],
		s.momentum5[i],
		s.bollinger[i],
	)
	return v
}

// BuildWindows assembles labeled sliding windows of per-bar feature vectors.
//
// Windows end at index idx in [windowSize-1, len(bars)-2]; the final bar is
// excluded because it has no following bar to label. Requires
// len(bars) > windowSize, otherwise returns nil. With normalize, each column
// is z-scored within its own window only, so no future distribution
// statistics leak into earlier windows.
func BuildWindows(barsIn []models.Bar, windowSize int, normalize bool, volLookback int) []models.FeatureWindow {
	if windowSize <= 0 || len(barsIn) <= windowSize {
		return nil
	}
	if volLookback <= 0 {
		volLookback = 20
	}
	s := computeSeries(barsIn)
	vectors := make([][]float64, len(barsIn))
	for i := range barsIn {
		vectors[i] = s.featureVector(barsIn, i, volLookback)
	}

	out := make([]models.FeatureWindow, 0, len(barsIn)-windowSize)
	for idx := windowSize - 1; idx <= len(barsIn)-2; idx++ {
		w := sliceWindow(vectors, idx, windowSize, normalize)
		label := 0
		if barsIn[idx+1].Close > barsIn[idx].Close {
			label = 1
		}
		out = append(out, models.FeatureWindow{
			Window:     w,
			SourceBars: barsIn[idx-windowSize+1 : idx+1],
			Label:      label,
			Labeled:    true,
			LastClose:  barsIn[idx].Close,
			NextClose:  barsIn[idx+1].Close,
		})
	}
	return out
}

// InferenceWindow builds the unlabeled window ending at the final bar, the
// only window whose following bar does not exist yet. Returns false when the
// bar history is too short.
func InferenceWindow(barsIn []models.Bar, windowSize int, normalize bool, volLookback int) (models.FeatureWindow, bool) {
	if windowSize <= 0 || len(barsIn) < windowSize {
		return models.FeatureWindow{}, false
	}
	if volLookback <= 0 {
		volLookback = 20
	}
	s := computeSeries(barsIn)
	vectors := make([][]float64, len(barsIn))
	for i := range barsIn {
		vectors[i] = s.featureVector(barsIn, i, volLookback)
	}
	idx := len(barsIn) - 1
	return models.FeatureWindow{
		Window:     sliceWindow(vectors, idx, windowSize, normalize),
		SourceBars: barsIn[idx-windowSize+1 : idx+1],
		LastClose:  barsIn[idx].Close,
	}, true
}

func sliceWindow(vectors [][]float64, endIdx, windowSize int, normalize bool) [][]float64 {
	w := make([][]float64, windowSize)
	for r := 0; r < windowSize; r++ {
		src := vectors[endIdx-windowSize+1+r]
		row := make([]float64, len(src))
		copy(row, src)
		w[r] = row
	}
	if normalize {
		normalizeColumns(w)
	}
	return w
}

// normalizeColumns z-scores each column in place using the window's own
// rows; near-constant columns (stdev < normEps) are zeroed.
func normalizeColumns(w [][]float64) {
	if len(w) == 0 {
		return
	}
	rows := float64(len(w))
	cols := len(w[0])
	for c := 0; c < cols; c++ {
		sum := 0.0
		for r := range w {
			sum += w[r][c]
		}
		mean := sum / rows
		sum2 := 0.0
		for r := range w {
			d := w[r][c] - mean
			sum2 += d * d
		}
		std := math.Sqrt(sum2 / rows)
		if std < normEps {
			for r := range w {
				w[r][c] = 0
			}
			continue
		}
		for r := range w {
			w[r][c] = (w[r][c] - mean) / std
		}
	}
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
