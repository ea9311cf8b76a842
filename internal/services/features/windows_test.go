package features

import (
	"math"
	"reflect"
	"testing"

	"EdgePulse/internal/domain/models"
)

func trendBars(n int) []models.Bar {
	out := make([]models.Bar, n)
	for i := range out {
		c := 100 + float64(i)
		out[i] = models.Bar{
			StartTimeMs: int64(i) * 60_000,
			EndTimeMs:   int64(i+1) * 60_000,
			Open:        c - 0.5,
			High:        c + 1,
			Low:         c - 1,
			Close:       c,
			Volume:      10 + float64(i%3),
			BuyVolume:   6,
			SellVolume:  4,
			Notional:    c * 10,
			TradeCount:  5,
			VWAP:        c,
		}
	}
	return out
}

func TestBuildWindowsRequiresMoreBarsThanWindow(t *testing.T) {
	if ws := BuildWindows(trendBars(8), 8, true, 20); len(ws) != 0 {
		t.Fatalf("bars == windowSize must yield no windows, got %d", len(ws))
	}
	if ws := BuildWindows(trendBars(5), 8, true, 20); len(ws) != 0 {
		t.Fatalf("bars < windowSize must yield no windows, got %d", len(ws))
	}
}

func TestBuildWindowsShapeAndCount(t *testing.T) {
	barsIn := trendBars(30)
	ws := BuildWindows(barsIn, 10, true, 20)
	// windows end at idx 9..28 inclusive
	if len(ws) != 20 {
		t.Fatalf("expected 20 windows, got %d", len(ws))
	}
	for i, w := range ws {
		if w.Rows() != 10 {
			t.Fatalf("window %d rows = %d", i, w.Rows())
		}
		if w.Cols() != FeatureCount {
			t.Fatalf("window %d cols = %d want %d", i, w.Cols(), FeatureCount)
		}
		if len(w.SourceBars) != 10 {
			t.Fatalf("window %d source bars = %d", i, len(w.SourceBars))
		}
		if w.SourceBars[len(w.SourceBars)-1].Close != w.LastClose {
			t.Fatalf("window %d source bars must end at the labeled bar", i)
		}
	}
}

func TestBuildWindowsLabelsOnRisingSeries(t *testing.T) {
	ws := BuildWindows(trendBars(25), 10, false, 20)
	for i, w := range ws {
		if !w.Labeled || w.Label != 1 {
			t.Fatalf("window %d on rising closes must label 1, got %+v", i, w.Label)
		}
		if w.NextClose <= w.LastClose {
			t.Fatalf("window %d next/last close inconsistent", i)
		}
	}
}

func TestNormalizedColumnsZeroMeanUnitStd(t *testing.T) {
	ws := BuildWindows(trendBars(30), 12, true, 20)
	w := ws[len(ws)-1]
	rows := float64(w.Rows())
	for c := 0; c < w.Cols(); c++ {
		sum := 0.0
		for r := range w.Window {
			sum += w.Window[r][c]
		}
		mean := sum / rows
		sum2 := 0.0
		for r := range w.Window {
			d := w.Window[r][c] - mean
			sum2 += d * d
		}
		std := math.Sqrt(sum2 / rows)
		allZero := true
		for r := range w.Window {
			if w.Window[r][c] != 0 {
				allZero = false
				break
			}
		}
		if allZero {
			continue // near-constant column, zeroed by policy
		}
		if math.Abs(mean) > 1e-9 {
			t.Fatalf("col %d mean = %v", c, mean)
		}
		if math.Abs(std-1) > 1e-9 {
			t.Fatalf("col %d std = %v", c, std)
		}
	}
}

func TestNearConstantColumnZeroed(t *testing.T) {
	barsIn := trendBars(20)
	for i := range barsIn {
		barsIn[i].BuyVolume = 5
		barsIn[i].SellVolume = 5
		barsIn[i].Volume = 10
	}
	ws := BuildWindows(barsIn, 8, true, 20)
	// buy-volume share (col 9) is constant 0.5 across every window
	for _, w := range ws {
		for r := range w.Window {
			if w.Window[r][9] != 0 {
				t.Fatalf("constant column must be zeroed, got %v", w.Window[r][9])
			}
		}
	}
}

func TestBuildWindowsDeterministic(t *testing.T) {
	barsIn := trendBars(40)
	a := BuildWindows(barsIn, 10, true, 20)
	b := BuildWindows(barsIn, 10, true, 20)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("windows differ between identical runs")
	}
}

func TestInferenceWindowEndsAtFinalBar(t *testing.T) {
	barsIn := trendBars(15)
	w, ok := InferenceWindow(barsIn, 10, true, 20)
	if !ok {
		t.Fatalf("expected inference window")
	}
	if w.Labeled {
		t.Fatalf("inference window must be unlabeled")
	}
	if w.Rows() != 10 || w.Cols() != FeatureCount {
		t.Fatalf("inference window shape %dx%d", w.Rows(), w.Cols())
	}
	if w.LastClose != barsIn[len(barsIn)-1].Close {
		t.Fatalf("inference window must end at final bar")
	}
	if len(w.SourceBars) != 10 || w.SourceBars[9].Close != w.LastClose {
		t.Fatalf("inference window must carry its source bars")
	}
}

func TestInferenceWindowTooShort(t *testing.T) {
	if _, ok := InferenceWindow(trendBars(5), 10, true, 20); ok {
		t.Fatalf("expected no inference window for short history")
	}
}
