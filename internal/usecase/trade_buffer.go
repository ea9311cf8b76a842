package usecase

import (
	"context"
	"fmt"
	"sync"

	"EdgePulse/internal/domain/models"
	drepo "EdgePulse/internal/domain/repository"
)

// TradeBuffer is a bounded in-memory trade history fed by ingestion adapters
// and drained (read-only) by decision cycles. Trades are de-duplicated by
// SequenceID; the oldest trades are evicted once capacity is reached.
type TradeBuffer struct {
	mu       sync.Mutex
	capacity int
	trades   []*models.Trade
	seen     map[int64]struct{}
}

// NewTradeBuffer creates a buffer holding at most capacity trades.
func NewTradeBuffer(capacity int) *TradeBuffer {
	if capacity <= 0 {
		capacity = 50_000
	}
	return &TradeBuffer{
		capacity: capacity,
		trades:   make([]*models.Trade, 0, capacity),
		seen:     make(map[int64]struct{}, capacity),
	}
}

// Add appends one trade in arrival order, dropping duplicates by SequenceID.
func (b *TradeBuffer) Add(ctx context.Context, t *models.Trade) error {
	if !t.Valid() {
		return fmt.Errorf("invalid trade seq=%d", t.SequenceID)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, dup := b.seen[t.SequenceID]; dup {
		return nil
	}
	b.seen[t.SequenceID] = struct{}{}
	b.trades = append(b.trades, t)
	if len(b.trades) > b.capacity {
		evicted := b.trades[0]
		delete(b.seen, evicted.SequenceID)
		b.trades = b.trades[1:]
	}
	return nil
}

// Trades returns a copy of the most recent limit trades in arrival order.
func (b *TradeBuffer) Trades(ctx context.Context, symbol string, limit int) ([]*models.Trade, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.trades)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]*models.Trade, n)
	copy(out, b.trades[len(b.trades)-n:])
	return out, nil
}

// Len reports the current number of buffered trades.
func (b *TradeBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.trades)
}

var _ drepo.TradeSource = (*TradeBuffer)(nil)
var _ drepo.TradeSink = (*TradeBuffer)(nil)
