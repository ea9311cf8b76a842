package kafka

import (
	"context"
	"testing"
	"time"
)

type topicHandler struct{ topic string }

func (h topicHandler) Topic() string                        { return h.topic }
func (h topicHandler) Handle(context.Context, []byte) error { return nil }

func TestNewConsumerRequiresBrokers(t *testing.T) {
	if _, err := NewConsumer(WithConsumerGroupID("g")); err == nil {
		t.Fatalf("expected error without brokers")
	}
}

func TestRegisterHandlerKeepsFirstForTopic(t *testing.T) {
	c, err := NewConsumer(WithConsumerBrokers([]string{"localhost:9092"}))
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	first := topicHandler{topic: "trades"}
	c.RegisterHandler(first)
	c.RegisterHandler(topicHandler{topic: "trades"})
	if len(c.handlers) != 1 {
		t.Fatalf("handlers = %d want 1", len(c.handlers))
	}
	if c.handlers["trades"] != first {
		t.Fatalf("later registration replaced the first handler")
	}
}

func TestJitterBackoffStaysWithinBounds(t *testing.T) {
	min := 50 * time.Millisecond
	max := 2 * time.Second
	for attempt := 0; attempt < 12; attempt++ {
		d := jitterBackoff(min, max, attempt)
		if d <= 0 || d > max {
			t.Fatalf("attempt %d backoff %v out of (0, %v]", attempt, d, max)
		}
	}
}

func TestJitterBackoffHandlesInvertedRange(t *testing.T) {
	if d := jitterBackoff(time.Second, time.Millisecond, 3); d <= 0 || d > time.Second {
		t.Fatalf("backoff %v out of range for inverted min/max", d)
	}
}
