package models

import "math"

// Side is the aggressor side of an executed trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Trade is a single executed trade as delivered by the market-data source.
// SequenceID is unique per symbol and is used for de-duplication upstream.
type Trade struct {
	SequenceID  int64
	Symbol      string
	Price       float64
	Size        float64
	Side        Side
	TimestampMs int64
}

// Valid reports whether the trade carries finite, usable numeric fields.
// Non-finite or non-positive prices and negative sizes are rejected before
// aggregation. Timestamps are not judged here; any epoch offset is a legal
// bucket input.
func (t *Trade) Valid() bool {
	if t == nil {
		return false
	}
	if !isFinite(t.Price) || !isFinite(t.Size) {
		return false
	}
	return t.Price > 0 && t.Size >= 0
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
