package bars

import (
	"math"
	"testing"

	"EdgePulse/internal/domain/models"
)

func mkTrade(seq int64, price, size float64, side models.Side, tsMs int64) *models.Trade {
	return &models.Trade{
		SequenceID:  seq,
		Symbol:      "BTCUSDT",
		Price:       price,
		Size:        size,
		Side:        side,
		TimestampMs: tsMs,
	}
}

func TestAggregateSingleBucket(t *testing.T) {
	trades := []*models.Trade{
		mkTrade(1, 100, 2, models.SideBuy, 1_000),
		mkTrade(2, 104, 1, models.SideSell, 1_500),
		mkTrade(3, 98, 3, models.SideBuy, 1_900),
	}
	bars := Aggregate(trades, 60_000, 0)
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}
	b := bars[0]
	if b.Open != 100 || b.Close != 98 {
		t.Fatalf("open/close mismatch: %v/%v", b.Open, b.Close)
	}
	if b.High != 104 || b.Low != 98 {
		t.Fatalf("high/low mismatch: %v/%v", b.High, b.Low)
	}
	wantVWAP := (100*2 + 104*1 + 98*3) / 6.0
	if math.Abs(b.VWAP-wantVWAP) > 1e-9 {
		t.Fatalf("vwap mismatch: got %v want %v", b.VWAP, wantVWAP)
	}
	if b.BuyVolume != 5 || b.SellVolume != 1 {
		t.Fatalf("buy/sell volume mismatch: %v/%v", b.BuyVolume, b.SellVolume)
	}
	if b.TradeCount != 3 {
		t.Fatalf("trade count mismatch: %d", b.TradeCount)
	}
	if b.StartTimeMs != 0 || b.EndTimeMs != 60_000 {
		t.Fatalf("bucket alignment mismatch: %d-%d", b.StartTimeMs, b.EndTimeMs)
	}
}

func TestAggregateMultipleBucketsNoGapFill(t *testing.T) {
	// trades in buckets 0, 2 and 5; buckets 1, 3, 4 stay empty
	trades := []*models.Trade{
		mkTrade(1, 10, 1, models.SideBuy, 500),
		mkTrade(2, 11, 1, models.SideBuy, 2_500),
		mkTrade(3, 12, 1, models.SideBuy, 5_500),
	}
	bars := Aggregate(trades, 1_000, 0)
	if len(bars) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(bars))
	}
	starts := []int64{0, 2_000, 5_000}
	for i, b := range bars {
		if b.StartTimeMs != starts[i] {
			t.Fatalf("bar %d start = %d want %d", i, b.StartTimeMs, starts[i])
		}
	}
}

func TestAggregateTiesKeepInputOrder(t *testing.T) {
	trades := []*models.Trade{
		mkTrade(1, 105, 1, models.SideBuy, 2_000),
		mkTrade(2, 99, 1, models.SideSell, 1_000),
		mkTrade(3, 101, 1, models.SideBuy, 1_000),
	}
	bars := Aggregate(trades, 60_000, 0)
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}
	if bars[0].Open != 99 {
		t.Fatalf("open should come from earliest trade, got %v", bars[0].Open)
	}
	if bars[0].Close != 105 {
		t.Fatalf("close should come from latest trade, got %v", bars[0].Close)
	}
}

func TestAggregateMaxBars(t *testing.T) {
	trades := make([]*models.Trade, 0, 10)
	for i := 0; i < 10; i++ {
		trades = append(trades, mkTrade(int64(i), 100+float64(i), 1, models.SideBuy, int64(i)*1_000))
	}
	bars := Aggregate(trades, 1_000, 4)
	if len(bars) != 4 {
		t.Fatalf("expected 4 bars, got %d", len(bars))
	}
	if bars[0].StartTimeMs != 6_000 {
		t.Fatalf("expected most recent bars kept, first start = %d", bars[0].StartTimeMs)
	}
}

func TestAggregateRejectsMalformedTrades(t *testing.T) {
	trades := []*models.Trade{
		mkTrade(1, math.NaN(), 1, models.SideBuy, 1_000),
		mkTrade(2, -5, 1, models.SideBuy, 1_000),
		mkTrade(3, 100, -1, models.SideBuy, 1_000),
		mkTrade(4, 100, 1, models.SideBuy, 1_000),
	}
	bars := Aggregate(trades, 1_000, 0)
	if len(bars) != 1 || bars[0].TradeCount != 1 {
		t.Fatalf("expected only the valid trade aggregated, got %+v", bars)
	}
}

func TestAggregateKeepsEpochZeroTrades(t *testing.T) {
	trades := []*models.Trade{
		mkTrade(1, 100, 1, models.SideBuy, 0),
		mkTrade(2, 101, 1, models.SideBuy, 60_000),
	}
	bars := Aggregate(trades, 60_000, 0)
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].StartTimeMs != 0 || bars[1].StartTimeMs != 60_000 {
		t.Fatalf("bucket starts = %d, %d", bars[0].StartTimeMs, bars[1].StartTimeMs)
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	if bars := Aggregate(nil, 1_000, 0); len(bars) != 0 {
		t.Fatalf("expected empty output, got %d bars", len(bars))
	}
}

func TestAggregateDeterministic(t *testing.T) {
	trades := []*models.Trade{
		mkTrade(1, 100, 2, models.SideBuy, 100),
		mkTrade(2, 102, 1, models.SideSell, 1_100),
		mkTrade(3, 99, 4, models.SideBuy, 2_700),
	}
	a := Aggregate(trades, 1_000, 0)
	b := Aggregate(trades, 1_000, 0)
	if len(a) != len(b) {
		t.Fatalf("length mismatch")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("bar %d differs between runs", i)
		}
	}
}
