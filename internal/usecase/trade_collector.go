package usecase

import (
	"context"
	"sync/atomic"

	"EdgePulse/internal/domain/models"
	drepo "EdgePulse/internal/domain/repository"
	mid "EdgePulse/internal/middleware"
)

// TradeCollector consumes the live market stream and feeds the trade buffer
// through the intake pipeline. A stream session that dies is reconnected and
// re-read; ingestion only stops on context end or Shutdown.
type TradeCollector struct {
	stream  drepo.MarketStream
	sink    drepo.TradeSink
	metrics drepo.Metrics
	pipe    *mid.IntakePipeline
	stopped atomic.Bool
}

// NewTradeCollector creates a new TradeCollector instance.
func NewTradeCollector(stream drepo.MarketStream, sink drepo.TradeSink, metrics drepo.Metrics, pipe *mid.IntakePipeline) *TradeCollector {
	return &TradeCollector{stream: stream, sink: sink, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the market stream is connected.
func (c *TradeCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *TradeCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	go c.run(ctx)
	return nil
}

// run owns the session lifecycle: read until the session dies, reconnect,
// read again. The stream paces reconnect attempts internally.
func (c *TradeCollector) run(ctx context.Context) {
	for {
		trCh, errCh := c.stream.Read(ctx)
		if !c.consume(ctx, trCh, errCh) {
			return
		}
		for {
			if ctx.Err() != nil || c.stopped.Load() {
				return
			}
			c.metrics.RecordError("stream")
			if err := c.stream.Reconnect(ctx); err == nil {
				break
			}
		}
	}
}

// consume drains one stream session. It reports true when the session died
// and a reconnect should follow, false when the collector should stop.
func (c *TradeCollector) consume(ctx context.Context, trCh <-chan *models.Trade, errCh <-chan error) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-errCh:
			// any error, or the stream closing its channels, ends the session
			return !c.stopped.Load()
		case t, ok := <-trCh:
			if !ok {
				return !c.stopped.Load()
			}
			if t == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, t)
			} else {
				_ = c.sink.Add(ctx, t)
			}
		}
	}
}

// Shutdown stops pipeline and closes stream.
func (c *TradeCollector) Shutdown(ctx context.Context) error {
	c.stopped.Store(true)
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
