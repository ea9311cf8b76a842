package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"EdgePulse/internal/domain/models"
)

// flakyStream fails its first read session and serves trades from the second
// one onward.
type flakyStream struct {
	sessions   atomic.Int32
	reconnects atomic.Int32
	connected  atomic.Bool
}

func (s *flakyStream) Connect(ctx context.Context) error {
	s.connected.Store(true)
	return nil
}

func (s *flakyStream) Subscribe(ctx context.Context) error { return nil }

func (s *flakyStream) Read(ctx context.Context) (<-chan *models.Trade, <-chan error) {
	session := s.sessions.Add(1)
	trades := make(chan *models.Trade, 8)
	errs := make(chan error, 1)
	if session == 1 {
		errs <- errors.New("connection reset")
		close(trades)
		close(errs)
		return trades, errs
	}
	trades <- bufTrade(int64(session), 100)
	return trades, errs
}

func (s *flakyStream) Reconnect(ctx context.Context) error {
	s.reconnects.Add(1)
	return nil
}

func (s *flakyStream) Close() error {
	s.connected.Store(false)
	return nil
}

func (s *flakyStream) IsConnected() bool { return s.connected.Load() }

func TestCollectorResumesReadingAfterStreamError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := &flakyStream{}
	buffer := NewTradeBuffer(100)
	c := NewTradeCollector(stream, buffer, newStubMetrics(), nil)

	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for buffer.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("no trades ingested after stream error; reconnects = %d", stream.reconnects.Load())
		}
		time.Sleep(time.Millisecond)
	}

	if stream.reconnects.Load() != 1 {
		t.Fatalf("reconnects = %d want 1", stream.reconnects.Load())
	}
	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if stream.IsConnected() {
		t.Fatalf("shutdown must close the stream")
	}
}

func TestCollectorStopsAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := &flakyStream{}
	buffer := NewTradeBuffer(100)
	c := NewTradeCollector(stream, buffer, newStubMetrics(), nil)
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for buffer.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("collector never ingested")
		}
		time.Sleep(time.Millisecond)
	}

	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	sessions := stream.sessions.Load()
	time.Sleep(20 * time.Millisecond)
	if got := stream.sessions.Load(); got > sessions+1 {
		t.Fatalf("collector kept opening sessions after shutdown: %d -> %d", sessions, got)
	}
}
