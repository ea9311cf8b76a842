package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

type producerOptions struct {
	brokers      []string
	requiredAcks int
	compression  string
	maxAttempts  int
	writeTimeout time.Duration
	readTimeout  time.Duration
	batchSize    int
	batchBytes   int
	batchTimeout time.Duration
	async        bool
	hashByKey    bool
}

type ProducerOption func(*producerOptions)

func WithBrokers(brokers []string) ProducerOption {
	return func(o *producerOptions) { o.brokers = brokers }
}

func WithCompression(compression string) ProducerOption {
	return func(o *producerOptions) { o.compression = compression }
}

// WithRequiredAcks sets the ack level; -1 waits for all replicas.
func WithRequiredAcks(acks int) ProducerOption {
	return func(o *producerOptions) { o.requiredAcks = acks }
}

func WithMaxAttempts(n int) ProducerOption {
	return func(o *producerOptions) { o.maxAttempts = n }
}

func WithBatchSize(size int) ProducerOption {
	return func(o *producerOptions) { o.batchSize = size }
}

func WithBatchBytes(n int) ProducerOption {
	return func(o *producerOptions) { o.batchBytes = n }
}

func WithBatchTimeout(d time.Duration) ProducerOption {
	return func(o *producerOptions) { o.batchTimeout = d }
}

func WithTimeouts(write, read time.Duration) ProducerOption {
	return func(o *producerOptions) {
		o.writeTimeout = write
		o.readTimeout = read
	}
}

// WithAsync makes Publish fire-and-forget; write errors surface only in
// metrics.
func WithAsync(async bool) ProducerOption {
	return func(o *producerOptions) { o.async = async }
}

// WithHashByKey routes messages by key hash so one key always lands on the
// same partition and stays ordered.
func WithHashByKey(hash bool) ProducerOption {
	return func(o *producerOptions) { o.hashByKey = hash }
}

// Producer publishes JSON payloads through a shared kafka-go writer.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(opts ...ProducerOption) (*Producer, error) {
	o := &producerOptions{
		requiredAcks: -1,
		compression:  "gzip",
		maxAttempts:  3,
		writeTimeout: 10 * time.Second,
		readTimeout:  10 * time.Second,
		batchSize:    100,
		batchBytes:   1 << 20,
		batchTimeout: time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	if len(o.brokers) == 0 {
		return nil, fmt.Errorf("kafka producer: brokers are required")
	}

	balancer := kafka.Balancer(&kafka.LeastBytes{})
	if o.hashByKey {
		balancer = &kafka.Hash{}
	}

	registerProducerMetrics()
	return &Producer{writer: &kafka.Writer{
		Addr:         kafka.TCP(o.brokers...),
		Balancer:     balancer,
		RequiredAcks: kafka.RequiredAcks(o.requiredAcks),
		Compression:  compressionCodec(o.compression),
		MaxAttempts:  o.maxAttempts,
		WriteTimeout: o.writeTimeout,
		ReadTimeout:  o.readTimeout,
		BatchSize:    o.batchSize,
		BatchBytes:   int64(o.batchBytes),
		BatchTimeout: o.batchTimeout,
		Async:        o.async,
	}}, nil
}

// Publish writes one message. Byte and string values go out as-is, anything
// else is JSON-encoded.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	var payload []byte
	switch v := value.(type) {
	case []byte:
		payload = v
	case string:
		payload = []byte(v)
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("kafka publish: marshal value: %w", err)
		}
		payload = b
	}

	start := time.Now()
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: payload,
		Time:  start,
	})

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	publishedTotal.WithLabelValues(topic, outcome).Inc()
	publishSeconds.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	return err
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func compressionCodec(name string) kafka.Compression {
	switch name {
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Gzip
	}
}

var (
	producerMetricsOnce sync.Once
	publishedTotal      *prometheus.CounterVec
	publishSeconds      *prometheus.HistogramVec
)

func registerProducerMetrics() {
	producerMetricsOnce.Do(func() {
		publishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "edgepulse_kafka_published_total",
			Help: "Messages handed to the Kafka writer, by outcome.",
		}, []string{"topic", "outcome"})
		publishSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "edgepulse_kafka_publish_seconds",
			Help:    "Publish latency including writer batching.",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"})
	})
}
