package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
)

type clientOptions struct {
	host         string
	port         int
	database     string
	user         string
	password     string
	maxOpen      int
	maxIdle      int
	maxLifetime  time.Duration
	dialTimeout  time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
	useHTTP      bool
	asyncInsert  bool
	waitForAsync bool
	maxExecTime  time.Duration
}

type ClientOption func(*clientOptions)

func WithHost(host string) ClientOption {
	return func(o *clientOptions) { o.host = host }
}

func WithPort(port int) ClientOption {
	return func(o *clientOptions) { o.port = port }
}

func WithDatabase(database string) ClientOption {
	return func(o *clientOptions) { o.database = database }
}

func WithCredentials(user, password string) ClientOption {
	return func(o *clientOptions) {
		o.user = user
		o.password = password
	}
}

func WithMaxConnections(maxOpen, maxIdle int) ClientOption {
	return func(o *clientOptions) {
		o.maxOpen = maxOpen
		o.maxIdle = maxIdle
	}
}

// WithHTTP switches from the native protocol to HTTP, for deployments where
// only port 8123 is reachable.
func WithHTTP(useHTTP bool) ClientOption {
	return func(o *clientOptions) { o.useHTTP = useHTTP }
}

// WithAsyncInsert turns on server-side insert batching; wait controls
// whether inserts block until the batch is flushed.
func WithAsyncInsert(enabled, wait bool) ClientOption {
	return func(o *clientOptions) {
		o.asyncInsert = enabled
		o.waitForAsync = wait
	}
}

func WithTimeouts(dial, read, write time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.dialTimeout = dial
		o.readTimeout = read
		o.writeTimeout = write
	}
}

func WithMaxExecutionTime(d time.Duration) ClientOption {
	return func(o *clientOptions) { o.maxExecTime = d }
}

// Client owns the ClickHouse connection pool.
type Client struct {
	db *sql.DB
}

func NewClient(opts ...ClientOption) (*Client, error) {
	o := clientOptions{
		maxOpen:     10,
		maxIdle:     5,
		maxLifetime: 5 * time.Minute,
		dialTimeout: 5 * time.Second,
		readTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.host == "" {
		return nil, fmt.Errorf("clickhouse: host is required")
	}

	db, err := sql.Open("clickhouse", dsn(o))
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(o.maxOpen)
	db.SetMaxIdleConns(o.maxIdle)
	db.SetConnMaxLifetime(o.maxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &Client{db: db}, nil
}

// DB exposes the pool for query code.
func (c *Client) DB() *sql.DB { return c.db }

func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// InitSchema runs the given DDL statements in order. Statements are expected
// to be idempotent (CREATE ... IF NOT EXISTS).
func (c *Client) InitSchema(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	return nil
}

func dsn(o clientOptions) string {
	scheme := "clickhouse"
	if o.useHTTP {
		scheme = "clickhouse+http"
	}
	u := url.URL{
		Scheme: scheme,
		User:   url.UserPassword(o.user, o.password),
		Host:   fmt.Sprintf("%s:%d", o.host, o.port),
		Path:   "/" + o.database,
	}

	q := url.Values{}
	if o.dialTimeout > 0 {
		q.Set("dial_timeout", o.dialTimeout.String())
	}
	if o.readTimeout > 0 {
		q.Set("read_timeout", o.readTimeout.String())
	}
	if o.maxExecTime > 0 {
		q.Set("max_execution_time", strconv.Itoa(int(o.maxExecTime.Seconds())))
	}
	if o.asyncInsert {
		q.Set("async_insert", "1")
		if o.waitForAsync {
			q.Set("wait_for_async_insert", "1")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
