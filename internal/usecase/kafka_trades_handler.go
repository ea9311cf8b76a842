package usecase

import (
	"context"
	"encoding/json"
	"time"

	"EdgePulse/internal/domain/models"
	drepo "EdgePulse/internal/domain/repository"
	pkgkafka "EdgePulse/pkg/kafka"
)

// KafkaTradesHandler consumes trade events from Kafka and feeds the buffer.
// This is the alternate ingest backend next to the WebSocket stream.
type KafkaTradesHandler struct {
	topic   string
	sink    drepo.TradeSink
	metrics drepo.Metrics
}

func NewKafkaTradesHandler(topic string, sink drepo.TradeSink, metrics drepo.Metrics) *KafkaTradesHandler {
	return &KafkaTradesHandler{topic: topic, sink: sink, metrics: metrics}
}

func (h *KafkaTradesHandler) Topic() string { return h.topic }

// incoming message schema: {seq, symbol, p, q, side, t}
func (h *KafkaTradesHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Seq    int64   `json:"seq"`
		Symbol string  `json:"symbol"`
		P      float64 `json:"p"`
		Q      float64 `json:"q"`
		Side   string  `json:"side"`
		T      int64   `json:"t"` // ms
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	side := models.SideBuy
	if m.Side == string(models.SideSell) {
		side = models.SideSell
	}
	// E2E latency from event time to now (approx)
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.UnixMilli(m.T)).Seconds())

	err := h.sink.Add(ctx, &models.Trade{
		SequenceID:  m.Seq,
		Symbol:      m.Symbol,
		Price:       m.P,
		Size:        m.Q,
		Side:        side,
		TimestampMs: m.T,
	})
	if err != nil {
		h.metrics.RecordError("consumer_add")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaTradesHandler)(nil)
