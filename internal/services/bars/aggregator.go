package bars

import (
	"sort"

	"EdgePulse/internal/domain/models"
)

// volumeEps guards the vwap division for zero-size buckets.
const volumeEps = 1e-12

// accumulator holds the running OHLCV state of the bucket being built.
// It is a plain local value reset per bucket, never shared.
type accumulator struct {
	startMs int64
	endMs   int64
	open    float64
	high    float64
	low     float64
	close   float64
	volume  float64
	buyVol  float64
	sellVol float64
	notion  float64
	count   int
}

func (a *accumulator) seed(t *models.Trade, startMs, endMs int64) {
	a.startMs = startMs
	a.endMs = endMs
	a.open = t.Price
	a.high = t.Price
	a.low = t.Price
	a.close = t.Price
	a.volume = 0
	a.buyVol = 0
	a.sellVol = 0
	a.notion = 0
	a.count = 0
	a.apply(t)
}

func (a *accumulator) apply(t *models.Trade) {
	if t.Price > a.high {
		a.high = t.Price
	}
	if t.Price < a.low {
		a.low = t.Price
	}
	a.close = t.Price
	a.volume += t.Size
	a.notion += t.Price * t.Size
	if t.Side == models.SideSell {
		a.sellVol += t.Size
	} else {
		a.buyVol += t.Size
	}
	a.count++
}

func (a *accumulator) flush(symbol string) models.Bar {
	vol := a.volume
	if vol < volumeEps {
		vol = volumeEps
	}
	return models.Bar{
		Symbol:      symbol,
		StartTimeMs: a.startMs,
		EndTimeMs:   a.endMs,
		Open:        a.open,
		High:        a.high,
		Low:         a.low,
		Close:       a.close,
		Volume:      a.volume,
		BuyVolume:   a.buyVol,
		SellVolume:  a.sellVol,
		Notional:    a.notion,
		TradeCount:  a.count,
		VWAP:        a.notion / vol,
	}
}

// Aggregate buckets trades into fixed-duration OHLCV bars.
//
// Trades are stable-sorted by timestamp so that trades sharing a timestamp
// keep their arrival order; accumulation order decides open/close at bucket
// boundaries. Buckets with zero trades produce no bar (gaps are not filled).
// When maxBars > 0 only the most recent maxBars bars are kept. Malformed
// trades (non-finite or non-positive price, negative size) are dropped.
func Aggregate(trades []*models.Trade, intervalMs int64, maxBars int) []models.Bar {
	if len(trades) == 0 || intervalMs <= 0 {
		return nil
	}

	clean := make([]*models.Trade, 0, len(trades))
	for _, t := range trades {
		if t.Valid() {
			clean = append(clean, t)
		}
	}
	if len(clean) == 0 {
		return nil
	}

	sort.SliceStable(clean, func(i, j int) bool {
		return clean[i].TimestampMs < clean[j].TimestampMs
	})

	symbol := clean[0].Symbol
	out := make([]models.Bar, 0, len(clean)/4+1)

	var acc accumulator
	first := clean[0]
	start := bucketStart(first.TimestampMs, intervalMs)
	acc.seed(first, start, start+intervalMs)

	for _, t := range clean[1:] {
		if t.TimestampMs >= acc.endMs {
			out = append(out, acc.flush(symbol))
			// advance by whole interval multiples until the trade fits
			start := bucketStart(t.TimestampMs, intervalMs)
			acc.seed(t, start, start+intervalMs)
			continue
		}
		acc.apply(t)
	}
	out = append(out, acc.flush(symbol))

	if maxBars > 0 && len(out) > maxBars {
		out = out[len(out)-maxBars:]
	}
	return out
}

func bucketStart(tsMs, intervalMs int64) int64 {
	start := (tsMs / intervalMs) * intervalMs
	if tsMs < 0 && tsMs%intervalMs != 0 {
		start -= intervalMs
	}
	return start
}
