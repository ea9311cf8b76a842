package kafka

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"EdgePulse/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler consumes raw payloads from one topic.
type MessageHandler interface {
	Topic() string
	Handle(ctx context.Context, data []byte) error
}

// ConsumerHook observes message handling. A BeforeHandle error skips the
// handler and routes the message through the failure path.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error)
	AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
	OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
}

// NoopHook is the default hook.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	return ctx, km, data, nil
}
func (NoopHook) AfterHandle(context.Context, string, kafka.Message, []byte, error) {}
func (NoopHook) OnError(context.Context, string, kafka.Message, []byte, error)    {}

type consumerOptions struct {
	brokers    []string
	groupID    string
	workers    int
	queueCap   int
	retryMax   int
	backoffMin time.Duration
	backoffMax time.Duration
	dlqTopic   string
	minBytes   int
	maxBytes   int
	log        *logger.Logger
}

type ConsumerOption func(*consumerOptions)

func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(o *consumerOptions) { o.brokers = brokers }
}

func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(o *consumerOptions) { o.groupID = groupID }
}

// WithConsumerWorkers sets how many group readers run per topic. Partition
// assignment balances across them; ordering within a partition is preserved
// because each partition belongs to exactly one reader.
func WithConsumerWorkers(n int) ConsumerOption {
	return func(o *consumerOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithConsumerBufferSize sets each reader's internal fetch queue capacity.
func WithConsumerBufferSize(n int) ConsumerOption {
	return func(o *consumerOptions) {
		if n > 0 {
			o.queueCap = n
		}
	}
}

func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(o *consumerOptions) {
		o.retryMax = max
		o.backoffMin = backoffMin
		o.backoffMax = backoffMax
	}
}

// WithConsumerDLQ routes messages that exhaust their retries to a dead
// letter topic instead of blocking the partition.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(o *consumerOptions) { o.dlqTopic = topic }
}

func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(o *consumerOptions) {
		o.minBytes = minBytes
		o.maxBytes = maxBytes
	}
}

func WithConsumerLogger(l *logger.Logger) ConsumerOption {
	return func(o *consumerOptions) { o.log = l }
}

// Consumer runs a pool of consumer-group readers and dispatches messages to
// registered per-topic handlers with retry, backoff and optional DLQ.
type Consumer struct {
	opts     consumerOptions
	handlers map[string]MessageHandler
	hook     ConsumerHook
	dlq      *kafka.Writer
	log      *logger.Logger

	mu       sync.Mutex
	readers  []*kafka.Reader
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	o := consumerOptions{
		groupID:    "default",
		workers:    1,
		queueCap:   100,
		retryMax:   3,
		backoffMin: 50 * time.Millisecond,
		backoffMax: 2 * time.Second,
		minBytes:   10e3,
		maxBytes:   10e6,
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if len(o.brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer: brokers are required")
	}

	c := &Consumer{
		opts:     o,
		handlers: make(map[string]MessageHandler),
		hook:     NoopHook{},
		log:      o.log,
	}
	if o.dlqTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(o.brokers...), Balancer: &kafka.LeastBytes{}}
	}
	registerConsumerMetrics()
	return c, nil
}

// WithConsumerHook installs a lifecycle hook. Must be called before Start.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// RegisterHandler binds a handler to its topic. Later registrations for the
// same topic are ignored.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("kafka handler already registered", logger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// Start spawns the reader pool and returns immediately.
func (c *Consumer) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	for topic, handler := range c.handlers {
		for i := 0; i < c.opts.workers; i++ {
			reader := kafka.NewReader(kafka.ReaderConfig{
				Brokers:       c.opts.brokers,
				Topic:         topic,
				GroupID:       c.opts.groupID,
				MinBytes:      c.opts.minBytes,
				MaxBytes:      c.opts.maxBytes,
				QueueCapacity: c.opts.queueCap,
			})
			c.mu.Lock()
			c.readers = append(c.readers, reader)
			c.mu.Unlock()

			c.wg.Add(1)
			go c.runReader(ctx, reader, handler)
		}
		c.log.Info("kafka consumer started",
			logger.String("topic", topic),
			logger.String("group", c.opts.groupID),
			logger.Int("readers", c.opts.workers))
	}
	return nil
}

// Stop cancels the readers and waits for them up to ctx's deadline.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.mu.Lock()
		for _, r := range c.readers {
			if err := r.Close(); err != nil {
				c.log.Warn("kafka reader close", logger.Error(err))
			}
		}
		c.mu.Unlock()

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			stopErr = fmt.Errorf("kafka consumer stop: %w", ctx.Err())
		}

		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Warn("kafka dlq close", logger.Error(err))
			}
		}
	})
	return stopErr
}

func (c *Consumer) runReader(ctx context.Context, reader *kafka.Reader, handler MessageHandler) {
	defer c.wg.Done()

	topic := handler.Topic()
	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("kafka fetch", logger.String("topic", topic), logger.Error(err))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		c.process(ctx, reader, handler, m)
	}
}

// process drives one message through the hook, the handler and bounded
// retries. A message that exhausts its retries is committed only if it could
// be parked on the DLQ; otherwise it stays uncommitted and is redelivered.
func (c *Consumer) process(ctx context.Context, reader *kafka.Reader, handler MessageHandler, m kafka.Message) {
	topic := handler.Topic()
	start := time.Now()

	var err error
	for attempt := 0; ; attempt++ {
		hctx, hm, data, berr := c.hook.BeforeHandle(ctx, topic, m, m.Value)
		if berr != nil {
			err = berr
		} else {
			err = c.safeHandle(hctx, handler, data)
			c.hook.AfterHandle(hctx, topic, hm, data, err)
		}
		if err == nil || attempt >= c.opts.retryMax {
			break
		}
		c.hook.OnError(ctx, topic, m, m.Value, err)
		select {
		case <-time.After(jitterBackoff(c.opts.backoffMin, c.opts.backoffMax, attempt)):
		case <-ctx.Done():
			return
		}
	}

	outcome := "ok"
	if err != nil {
		outcome = "failed"
		c.hook.OnError(ctx, topic, m, m.Value, err)
		c.log.Error("kafka message dropped after retries",
			logger.String("topic", topic),
			logger.Int("partition", m.Partition),
			logger.Error(err))
		if !c.parkOnDLQ(topic, m) {
			handledTotal.WithLabelValues(topic, outcome).Inc()
			return
		}
	}

	if cerr := reader.CommitMessages(context.Background(), m); cerr != nil {
		c.log.Warn("kafka commit", logger.String("topic", topic), logger.Error(cerr))
	}
	handledTotal.WithLabelValues(topic, outcome).Inc()
	handleSeconds.WithLabelValues(topic).Observe(time.Since(start).Seconds())
}

func (c *Consumer) safeHandle(ctx context.Context, handler MessageHandler, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.Handle(ctx, data)
}

func (c *Consumer) parkOnDLQ(sourceTopic string, m kafka.Message) bool {
	if c.dlq == nil {
		return false
	}
	wctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.dlq.WriteMessages(wctx, kafka.Message{
		Topic:   c.opts.dlqTopic,
		Key:     m.Key,
		Value:   m.Value,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: "source_topic", Value: []byte(sourceTopic)}},
	})
	if err != nil {
		c.log.Error("kafka dlq write", logger.String("topic", c.opts.dlqTopic), logger.Error(err))
		return false
	}
	dlqTotal.WithLabelValues(sourceTopic).Inc()
	return true
}

func jitterBackoff(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	d := min << uint(attempt)
	if d > max || d <= 0 {
		d = max
	}
	return d - time.Duration(rand.Int63n(int64(d)/2+1))
}

var (
	consumerMetricsOnce sync.Once
	handledTotal        *prometheus.CounterVec
	handleSeconds       *prometheus.HistogramVec
	dlqTotal            *prometheus.CounterVec
)

func registerConsumerMetrics() {
	consumerMetricsOnce.Do(func() {
		handledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "edgepulse_kafka_handled_total",
			Help: "Messages taken off Kafka, by final outcome.",
		}, []string{"topic", "outcome"})
		handleSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "edgepulse_kafka_handle_seconds",
			Help:    "Per-message handling time including retries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"})
		dlqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "edgepulse_kafka_dlq_total",
			Help: "Messages parked on the dead letter topic.",
		}, []string{"source_topic"})
	})
}
