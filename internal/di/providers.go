package di

import (
	"context"
	"fmt"
	"time"

	"EdgePulse/internal/domain/repository"
	domsvc "EdgePulse/internal/domain/service"
	"EdgePulse/internal/handler/api"
	mid "EdgePulse/internal/middleware"
	internalrepo "EdgePulse/internal/repository"
	icache "EdgePulse/internal/service/cache"
	"EdgePulse/internal/service/exchange"
	"EdgePulse/internal/service/model"
	"EdgePulse/internal/service/ratelimit"
	"EdgePulse/internal/services/risk"
	"EdgePulse/internal/usecase"
	pkgch "EdgePulse/pkg/clickhouse"
	"EdgePulse/pkg/config"
	pkgkafka "EdgePulse/pkg/kafka"
	applogger "EdgePulse/pkg/logger"
	"EdgePulse/pkg/metrics"
	"EdgePulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideTradeBuffer creates the in-memory trade history.
func ProvideTradeBuffer(cfg *config.Config) *usecase.TradeBuffer {
	return usecase.NewTradeBuffer(cfg.Ingest.BufferSize)
}

// ProvideBytesCache selects the model-state cache backend: Redis when
// enabled, otherwise an in-process TTL cache.
func ProvideBytesCache(cfg *config.Config) icache.BytesCache {
	if cfg.Redis.Enabled {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return icache.NewTTLCache()
}

// ProvideModelStore adapts the cache into the model state store.
func ProvideModelStore(c icache.BytesCache) repository.ModelStore {
	return internalrepo.NewCacheModelStore(c)
}

// ProvideModelFactory creates the logistic model factory.
func ProvideModelFactory(cfg *config.Config) domsvc.ModelFactory {
	mc := model.DefaultConfig()
	if cfg.Model.LearningRate > 0 {
		mc.LearningRate = cfg.Model.LearningRate
	}
	if cfg.Model.Epochs > 0 {
		mc.Epochs = cfg.Model.Epochs
	}
	if cfg.Model.L2 > 0 {
		mc.L2 = cfg.Model.L2
	}
	if cfg.Model.Seed != 0 {
		mc.Seed = cfg.Model.Seed
	}
	return model.NewFactory(mc)
}

// ProvideClickHouseClient creates a ClickHouse client and prepares the
// decision history schema. Returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	table := decisionsTable(cfg)
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		"CREATE TABLE IF NOT EXISTS " + table + ` (
			symbol String,
			probability Float64,
			exposure Float64,
			forecast_volatility Float64,
			bars_count UInt32,
			trained_samples UInt32,
			window_rows Nullable(UInt32),
			window_cols Nullable(UInt32),
			created_at DateTime64(3)
		) ENGINE=MergeTree ORDER BY (symbol, created_at)`,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

func decisionsTable(cfg *config.Config) string {
	table := cfg.ClickHouse.Table
	if table == "" {
		table = "decisions"
	}
	return cfg.ClickHouse.Database + "." + table
}

// ProvideDecisionStore creates the ClickHouse decision history store.
// Returns nil when ClickHouse is disabled.
func ProvideDecisionStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.DecisionStore {
	if chClient == nil {
		return nil
	}
	store := internalrepo.NewClickHouseDecisionStore(chClient.DB(), decisionsTable(cfg))
	store.SetLogger(l)
	return store
}

// ProvideKafkaProducer creates a Kafka producer for decision publishing.
// Returns nil when no decisions topic is configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Kafka.DecisionsTopic == "" || len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideDecisionPublisher creates the Kafka decision publisher.
func ProvideDecisionPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.DecisionPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaDecisionPublisher(producer, cfg.Kafka.DecisionsTopic)
}

// ProvideKafkaConsumer creates a Kafka consumer for the trades topic.
// Returns nil unless the kafka ingest backend is selected.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Ingest.Backend != "kafka" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerLogger(l),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NoopHook{})
	return consumer, nil
}

// ProvideKafkaTradesHandler registers the handler for the trades topic.
func ProvideKafkaTradesHandler(buffer *usecase.TradeBuffer, m repository.Metrics, cfg *config.Config) pkgkafka.MessageHandler {
	if cfg.Ingest.Backend != "kafka" {
		return nil
	}
	return usecase.NewKafkaTradesHandler(cfg.Kafka.TradesTopic, buffer, m)
}

// ProvideMarketStream creates the exchange WebSocket stream.
// Returns nil unless the websocket ingest backend is selected.
func ProvideMarketStream(cfg *config.Config, l *applogger.Logger) repository.MarketStream {
	if cfg.Ingest.Backend != "websocket" {
		return nil
	}
	return exchange.NewStream(
		cfg.Exchange.WebSocketURL,
		cfg.Exchange.Symbol,
		cfg.Exchange.ReconnectDelay,
		cfg.Exchange.PingInterval,
		l,
	)
}

// ProvideRestBackfill creates the REST history backfill client.
func ProvideRestBackfill(cfg *config.Config) *exchange.RestBackfill {
	if cfg.Exchange.RestURL == "" {
		return nil
	}
	return exchange.NewRestBackfill(cfg.Exchange.RestURL, 15*time.Second)
}

// ProvideTradeCollector creates the stream-to-buffer collector with the
// intake pipeline in between.
func ProvideTradeCollector(
	stream repository.MarketStream,
	buffer *usecase.TradeBuffer,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.TradeCollector {
	if stream == nil {
		return nil
	}
	opts := []mid.PipelineOption{mid.WithBufferSize(2000)}
	if cfg.Ingest.MaxRPS > 0 {
		opts = append(opts, mid.WithMaxRPS(cfg.Ingest.MaxRPS))
	}
	pipe := mid.NewIntakePipeline(buffer, m, opts...)
	return usecase.NewTradeCollector(stream, buffer, m, pipe)
}

// ProvideOrchestrator creates the decision cycle orchestrator.
func ProvideOrchestrator(
	cfg *config.Config,
	buffer *usecase.TradeBuffer,
	factory domsvc.ModelFactory,
	modelStore repository.ModelStore,
	decStore repository.DecisionStore,
	pub repository.DecisionPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.CycleOrchestrator {
	rc := risk.DefaultConfig()
	if cfg.Risk.NeutralZone > 0 {
		rc.NeutralZone = cfg.Risk.NeutralZone
	}
	if cfg.Risk.VolatilityTarget > 0 {
		rc.VolatilityTarget = cfg.Risk.VolatilityTarget
	}
	if cfg.Risk.VolatilityFloor > 0 {
		rc.VolatilityFloor = cfg.Risk.VolatilityFloor
	}
	if cfg.Risk.MaxExposure > 0 {
		rc.MaxExposure = cfg.Risk.MaxExposure
	}

	return usecase.NewCycleOrchestrator(
		usecase.CycleConfig{
			Symbol:             cfg.Exchange.Symbol,
			WindowSize:         cfg.Pipeline.WindowSize,
			BarIntervalMs:      cfg.Pipeline.BarIntervalMs,
			VolatilityLookback: cfg.Pipeline.VolatilityLookback,
			MaxBars:            cfg.Pipeline.MaxBars,
			FetchLimit:         cfg.Pipeline.FetchLimit,
			Normalize:          cfg.Pipeline.Normalize,
			ModelTTL:           cfg.Model.StateTTL,
			Risk:               rc,
		},
		buffer, factory, modelStore, decStore, pub, m, l,
	)
}

// ProvideHTTPHandler creates the decisions API handler.
func ProvideHTTPHandler(
	l *applogger.Logger,
	orch *usecase.CycleOrchestrator,
	decStore repository.DecisionStore,
	cache icache.BytesCache,
) *api.DecisionsEchoHandler {
	return api.NewDecisionsEchoHandler(l, orch, decStore, cache, ratelimit.New())
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.TradeCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	backfill *exchange.RestBackfill,
	buffer *usecase.TradeBuffer,
	orch *usecase.CycleOrchestrator,
	decStore repository.DecisionStore,
	pub repository.DecisionPublisher,
	chClient *pkgch.Client,
	handler *api.DecisionsEchoHandler,
) *server.App {
	app := server.New(cfg, l, collector, consumer, kh, backfill, buffer, orch, decStore, pub, chClient)
	app.SetHTTPHandler(handler)
	return app
}
