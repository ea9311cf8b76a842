package usecase

import (
	"context"
	"testing"

	"EdgePulse/internal/domain/models"
)

func bufTrade(seq int64, price float64) *models.Trade {
	return &models.Trade{
		SequenceID:  seq,
		Symbol:      "BTCUSDT",
		Price:       price,
		Size:        1,
		Side:        models.SideBuy,
		TimestampMs: seq * 1000,
	}
}

func TestTradeBufferDeduplicatesBySequenceID(t *testing.T) {
	b := NewTradeBuffer(10)
	ctx := context.Background()

	if err := b.Add(ctx, bufTrade(1, 100)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := b.Add(ctx, bufTrade(1, 999)); err != nil {
		t.Fatalf("duplicate add must be a silent drop: %v", err)
	}
	if b.Len() != 1 {
		t.Fatalf("len = %d want 1", b.Len())
	}
	got, _ := b.Trades(ctx, "BTCUSDT", 0)
	if got[0].Price != 100 {
		t.Fatalf("first occurrence must win, price = %v", got[0].Price)
	}
}

func TestTradeBufferEvictsOldest(t *testing.T) {
	b := NewTradeBuffer(3)
	ctx := context.Background()
	for seq := int64(1); seq <= 5; seq++ {
		if err := b.Add(ctx, bufTrade(seq, float64(seq))); err != nil {
			t.Fatalf("add %d: %v", seq, err)
		}
	}
	if b.Len() != 3 {
		t.Fatalf("len = %d want 3", b.Len())
	}
	got, _ := b.Trades(ctx, "BTCUSDT", 0)
	for i, want := range []int64{3, 4, 5} {
		if got[i].SequenceID != want {
			t.Fatalf("trade %d seq = %d want %d", i, got[i].SequenceID, want)
		}
	}
	// an evicted sequence id is accepted again
	if err := b.Add(ctx, bufTrade(1, 1)); err != nil {
		t.Fatalf("re-add evicted seq: %v", err)
	}
	got, _ = b.Trades(ctx, "BTCUSDT", 0)
	if got[len(got)-1].SequenceID != 1 {
		t.Fatalf("re-added trade missing")
	}
}

func TestTradeBufferLimitReturnsMostRecent(t *testing.T) {
	b := NewTradeBuffer(100)
	ctx := context.Background()
	for seq := int64(1); seq <= 10; seq++ {
		_ = b.Add(ctx, bufTrade(seq, float64(seq)))
	}
	got, err := b.Trades(ctx, "BTCUSDT", 4)
	if err != nil {
		t.Fatalf("trades: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("len = %d want 4", len(got))
	}
	for i, want := range []int64{7, 8, 9, 10} {
		if got[i].SequenceID != want {
			t.Fatalf("trade %d seq = %d want %d", i, got[i].SequenceID, want)
		}
	}
}

func TestTradeBufferRejectsInvalidTrade(t *testing.T) {
	b := NewTradeBuffer(10)
	bad := bufTrade(1, -5)
	if err := b.Add(context.Background(), bad); err == nil {
		t.Fatalf("negative price must be rejected")
	}
	if b.Len() != 0 {
		t.Fatalf("rejected trade must not be buffered")
	}
}
