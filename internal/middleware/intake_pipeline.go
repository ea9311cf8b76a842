package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"EdgePulse/internal/domain/models"
	drepo "EdgePulse/internal/domain/repository"
)

// IntakePipeline sits between an ingestion adapter and the trade buffer.
// It validates, throttles per symbol, and retries through a bounded buffer
// when the downstream sink rejects a trade.
type IntakePipeline struct {
	sink     drepo.TradeSink
	metrics  drepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.Trade
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-symbol last accepted time
	counts   map[string]int       // accepted in the current second
}

type PipelineOption func(*IntakePipeline)

// WithMaxRPS sets the max trades per second per symbol.
func WithMaxRPS(n int) PipelineOption {
	return func(p *IntakePipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size for retried trades.
func WithBufferSize(n int) PipelineOption {
	return func(p *IntakePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewIntakePipeline creates a new pipeline.
func NewIntakePipeline(sink drepo.TradeSink, metrics drepo.Metrics, opts ...PipelineOption) *IntakePipeline {
	p := &IntakePipeline{
		sink:     sink,
		metrics:  metrics,
		maxRPS:   0, // unlimited unless configured
		bufSize:  1000,
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
		counts:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.Trade, p.bufSize)
	return p
}

// Start launches background flushing of buffered trades.
func (p *IntakePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case t := <-p.bufCh:
				if t == nil {
					continue
				}
				if err := p.sink.Add(ctx, t); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					select {
					case p.bufCh <- t:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *IntakePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards one trade, buffering on errors.
func (p *IntakePipeline) Process(ctx context.Context, t *models.Trade) error {
	start := time.Now()
	if !t.Valid() {
		p.metrics.RecordError("pipeline_validate")
		return fmt.Errorf("malformed trade seq=%d", seqOf(t))
	}
	if !p.allow(t.Symbol, start) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.sink.Add(ctx, t); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- t:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func seqOf(t *models.Trade) int64 {
	if t == nil {
		return -1
	}
	return t.SequenceID
}

// allow enforces at most maxRPS accepted trades per symbol per second.
func (p *IntakePipeline) allow(symbol string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	last := p.lastSeen[symbol]
	if last.IsZero() || now.Sub(last) >= time.Second {
		p.lastSeen[symbol] = now
		p.counts[symbol] = 1
		return true
	}
	if p.counts[symbol] < p.maxRPS {
		p.counts[symbol]++
		return true
	}
	return false
}
