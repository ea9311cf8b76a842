package repository

import (
	"context"

	"EdgePulse/internal/domain/models"
	drepo "EdgePulse/internal/domain/repository"
	pkgkafka "EdgePulse/pkg/kafka"
)

// KafkaDecisionPublisher relays finished decisions to the decisions topic.
// Keyed by symbol so subscribers see per-symbol ordering.
type KafkaDecisionPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaDecisionPublisher creates the publisher.
func NewKafkaDecisionPublisher(producer *pkgkafka.Producer, topic string) drepo.DecisionPublisher {
	return &KafkaDecisionPublisher{producer: producer, topic: topic}
}

func (p *KafkaDecisionPublisher) Publish(ctx context.Context, d *models.TradingDecision) error {
	return p.producer.Publish(ctx, p.topic, []byte(d.Symbol), d)
}

func (p *KafkaDecisionPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
