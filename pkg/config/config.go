package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Exchange struct {
		WebSocketURL   string        `yaml:"websocket_url"`
		RestURL        string        `yaml:"rest_url"`
		Symbol         string        `yaml:"symbol"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"exchange"`
	Ingest struct {
		Backend       string `yaml:"backend"` // websocket or kafka
		MaxRPS        int    `yaml:"max_rps"`
		BufferSize    int    `yaml:"buffer_size"`
		BackfillLimit int    `yaml:"backfill_limit"`
	} `yaml:"ingest"`
	Pipeline struct {
		WindowSize         int           `yaml:"window_size"`
		BarIntervalMs      int64         `yaml:"bar_interval_ms"`
		VolatilityLookback int           `yaml:"volatility_lookback"`
		MaxBars            int           `yaml:"max_bars"`
		FetchLimit         int           `yaml:"fetch_limit"`
		Normalize          bool          `yaml:"normalize"`
		CycleInterval      time.Duration `yaml:"cycle_interval"`
	} `yaml:"pipeline"`
	Risk struct {
		NeutralZone      float64 `yaml:"neutral_zone"`
		VolatilityTarget float64 `yaml:"volatility_target"`
		VolatilityFloor  float64 `yaml:"volatility_floor"`
		MaxExposure      float64 `yaml:"max_exposure"`
	} `yaml:"risk"`
	Model struct {
		LearningRate float64       `yaml:"learning_rate"`
		Epochs       int           `yaml:"epochs"`
		L2           float64       `yaml:"l2"`
		Seed         int64         `yaml:"seed"`
		StateTTL     time.Duration `yaml:"state_ttl"`
	} `yaml:"model"`
	Kafka struct {
		Brokers        []string `yaml:"brokers"`
		DecisionsTopic string   `yaml:"decisions_topic"`
		TradesTopic    string   `yaml:"trades_topic"`
		RequiredAcks   int      `yaml:"required_acks"`
		Compression    string   `yaml:"compression"`
		Producer       struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		Table            string        `yaml:"table"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	// normalization is opt-out; an omitted key must not disable it
	c.Pipeline.Normalize = true
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SYMBOL"); v != "" {
		c.Exchange.Symbol = v
	}
	if v := os.Getenv("EXCHANGE_WS_URL"); v != "" {
		c.Exchange.WebSocketURL = v
	}
	if v := os.Getenv("EXCHANGE_REST_URL"); v != "" {
		c.Exchange.RestURL = v
	}
	if v := os.Getenv("INGEST_BACKEND"); v != "" {
		c.Ingest.Backend = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_DECISIONS_TOPIC"); v != "" {
		c.Kafka.DecisionsTopic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Exchange.Symbol == "" {
		return fmt.Errorf("exchange.symbol is required")
	}
	if c.Ingest.Backend == "" {
		return fmt.Errorf("ingest.backend is required")
	}
	if c.Ingest.Backend != "websocket" && c.Ingest.Backend != "kafka" {
		return fmt.Errorf("ingest.backend must be 'websocket' or 'kafka', got '%s'", c.Ingest.Backend)
	}
	if c.Ingest.Backend == "websocket" && c.Exchange.WebSocketURL == "" {
		return fmt.Errorf("exchange.websocket_url is required for websocket ingest")
	}
	if c.Ingest.Backend == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty for kafka ingest")
	}
	if c.Pipeline.WindowSize < 0 {
		return fmt.Errorf("pipeline.window_size cannot be negative")
	}
	return nil
}
