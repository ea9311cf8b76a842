package repository

import (
	"context"
	"time"

	"EdgePulse/internal/domain/models"
)

// MarketStream is a live feed of executed trades for the configured symbol.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Trade, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// TradeSource supplies the trade history consumed by one decision cycle.
type TradeSource interface {
	Trades(ctx context.Context, symbol string, limit int) ([]*models.Trade, error)
}

// TradeSink accepts trades from ingestion adapters (stream, Kafka).
type TradeSink interface {
	Add(ctx context.Context, t *models.Trade) error
}

// DecisionStore persists decision rows and serves recent-history reads.
type DecisionStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, d *models.TradingDecision) error
	Recent(ctx context.Context, limit int) ([]models.TradingDecision, error)
	Health(ctx context.Context) error
	Close() error
}

// DecisionPublisher relays finished decisions to downstream subscribers.
type DecisionPublisher interface {
	Publish(ctx context.Context, d *models.TradingDecision) error
	Close() error
}

// ModelStore persists opaque serialized model state between cycles.
type ModelStore interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, state []byte, ttl time.Duration) error
}

// Metrics records pipeline observability signals.
type Metrics interface {
	RecordCycle(symbol, outcome string)
	RecordError(kind string)
	RecordDecision(symbol string, probability, exposure float64)
	RecordLatency(op string, seconds float64)
}
