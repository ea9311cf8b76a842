package features

import (
	"math"
	"testing"

	"EdgePulse/internal/domain/models"
)

func closeBar(c float64) models.Bar {
	return models.Bar{Open: c, High: c, Low: c, Close: c, Volume: 1, VWAP: c}
}

func TestSafeDiv(t *testing.T) {
	cases := []struct {
		n, d, fb, want float64
	}{
		{10, 2, 0, 5},
		{10, 0, 0, 0},
		{10, 1e-13, 7, 7},
		{math.NaN(), 2, 3, 3},
		{10, math.Inf(1), 4, 4},
	}
	for _, c := range cases {
		if got := SafeDiv(c.n, c.d, c.fb); got != c.want {
			t.Fatalf("SafeDiv(%v,%v,%v) = %v want %v", c.n, c.d, c.fb, got, c.want)
		}
	}
}

func TestLogReturns(t *testing.T) {
	bars := []models.Bar{closeBar(100), closeBar(110), closeBar(99)}
	rets := LogReturns(bars)
	if rets[0] != 0 {
		t.Fatalf("first return must be 0, got %v", rets[0])
	}
	if math.Abs(rets[1]-math.Log(1.1)) > 1e-12 {
		t.Fatalf("return[1] = %v", rets[1])
	}
	if math.Abs(rets[2]-math.Log(0.9)) > 1e-12 {
		t.Fatalf("return[2] = %v", rets[2])
	}
}

func TestLogReturnsZeroPrevClose(t *testing.T) {
	bars := []models.Bar{closeBar(0), closeBar(10)}
	rets := LogReturns(bars)
	if rets[1] != 0 {
		t.Fatalf("return after zero close must be 0, got %v", rets[1])
	}
}

func TestSMAUndefinedBeforePeriod(t *testing.T) {
	out := SMA([]float64{1, 2, 3, 4, 5}, 3)
	if out[0] != 0 || out[1] != 0 {
		t.Fatalf("SMA must be 0 before period-1: %v", out[:2])
	}
	if out[2] != 2 || out[4] != 4 {
		t.Fatalf("SMA values wrong: %v", out)
	}
}

func TestEMASeedAndRecursion(t *testing.T) {
	out := EMA([]float64{10, 20}, 9)
	if out[0] != 10 {
		t.Fatalf("EMA must be seeded with first value, got %v", out[0])
	}
	alpha := 2.0 / 10.0
	want := alpha*20 + (1-alpha)*10
	if math.Abs(out[1]-want) > 1e-12 {
		t.Fatalf("EMA[1] = %v want %v", out[1], want)
	}
}

func TestRSIDefaultsAndMonotoneSeries(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	rsi := RSI(closes, 14)
	for i := 0; i < 14; i++ {
		if rsi[i] != 0.5 {
			t.Fatalf("RSI before period must default to 0.5, got %v at %d", rsi[i], i)
		}
	}
	// all gains, avgLoss = 0 -> RS = 100 -> RSI near 1
	want := 1.0 - 1.0/101.0
	if math.Abs(rsi[14]-want) > 1e-12 {
		t.Fatalf("RSI on all-gain series = %v want %v", rsi[14], want)
	}
}

func TestRollingStdSample(t *testing.T) {
	series := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	got := RollingStd(series, len(series)-1, len(series))
	// sample stdev of the full series
	mean := 5.0
	sum2 := 0.0
	for _, v := range series {
		d := v - mean
		sum2 += d * d
	}
	want := math.Sqrt(sum2 / float64(len(series)-1))
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("RollingStd = %v want %v", got, want)
	}
}

func TestRollingStdSingleValue(t *testing.T) {
	if got := RollingStd([]float64{3}, 0, 5); got != 0 {
		t.Fatalf("single-value stdev must be 0, got %v", got)
	}
}

func TestMACDLine(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	macd, signal := MACD(closes, 2, 4, 3)
	fast := EMA(closes, 2)
	slow := EMA(closes, 4)
	for i := range closes {
		if math.Abs(macd[i]-(fast[i]-slow[i])) > 1e-12 {
			t.Fatalf("macd[%d] mismatch", i)
		}
	}
	wantSignal := EMA(macd, 3)
	for i := range closes {
		if math.Abs(signal[i]-wantSignal[i]) > 1e-12 {
			t.Fatalf("signal[%d] mismatch", i)
		}
	}
}

func TestTSIUptrendPositive(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + 2*float64(i)
	}
	tsi := TSI(closes, 25, 13)
	if tsi[len(tsi)-1] <= 0 {
		t.Fatalf("TSI on strict uptrend should be positive, got %v", tsi[len(tsi)-1])
	}
	if tsi[len(tsi)-1] > 1+1e-9 {
		t.Fatalf("TSI must not exceed 1, got %v", tsi[len(tsi)-1])
	}
}

func TestTSIFlatSeriesZero(t *testing.T) {
	closes := []float64{5, 5, 5, 5, 5}
	tsi := TSI(closes, 3, 2)
	for i, v := range tsi {
		if v != 0 {
			t.Fatalf("TSI of flat series must be 0, got %v at %d", v, i)
		}
	}
}

func TestATRRatioUsesPrevClose(t *testing.T) {
	barsIn := []models.Bar{
		{High: 12, Low: 10, Close: 11},
		{High: 11.5, Low: 11, Close: 11.2},
	}
	out := ATRRatio(barsIn, 1)
	// period 1 EMA tracks the true range itself
	tr1 := math.Max(11.5-11, math.Max(math.Abs(11.5-11), math.Abs(11-11)))
	want := tr1 / 11.2
	if math.Abs(out[1]-want) > 1e-9 {
		t.Fatalf("ATR ratio = %v want %v", out[1], want)
	}
}

func TestMomentum(t *testing.T) {
	series := []float64{10, 10, 10, 12}
	out := Momentum(series, 3)
	if out[0] != 0 || out[1] != 0 || out[2] != 0 {
		t.Fatalf("momentum before lookback must be 0: %v", out)
	}
	if math.Abs(out[3]-0.2) > 1e-12 {
		t.Fatalf("momentum = %v want 0.2", out[3])
	}
}

func TestBollingerPctFlatSeries(t *testing.T) {
	series := []float64{5, 5, 5, 5, 5}
	out := BollingerPct(series, 3, 2)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("flat series bollinger must be 0, got %v at %d", v, i)
		}
	}
}

func TestVolumeSMARatio(t *testing.T) {
	vols := []float64{10, 10, 10, 20}
	out := VolumeSMARatio(vols, 2)
	// SMA at idx 3 over {10,20} = 15; 20/15 - 1
	want := 20.0/15.0 - 1
	if math.Abs(out[3]-want) > 1e-12 {
		t.Fatalf("volume sma ratio = %v want %v", out[3], want)
	}
}
