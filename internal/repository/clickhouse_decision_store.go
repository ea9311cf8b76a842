package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"EdgePulse/internal/domain/models"
	drepo "EdgePulse/internal/domain/repository"
	applogger "EdgePulse/pkg/logger"
)

// ClickHouseDecisionStore persists decision rows and serves recent reads.
type ClickHouseDecisionStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewClickHouseDecisionStore creates the store over an existing pool.
func NewClickHouseDecisionStore(db *sql.DB, table string) *ClickHouseDecisionStore {
	return &ClickHouseDecisionStore{db: db, table: table, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *ClickHouseDecisionStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *ClickHouseDecisionStore) Init(ctx context.Context) error {
	return s.db.PingContext(ctx) // schema managed by pkg/clickhouse InitSchema
}

func (s *ClickHouseDecisionStore) Store(ctx context.Context, d *models.TradingDecision) error {
	if d == nil {
		return fmt.Errorf("decision is nil")
	}
	// window shape is nullable: neutral decisions carry no window
	var rows, cols interface{}
	if d.WindowShape != nil {
		rows = int32(d.WindowShape.Rows)
		cols = int32(d.WindowShape.Cols)
	}
	q := fmt.Sprintf(`INSERT INTO %s
        (symbol, probability, exposure, forecast_volatility, bars_count, trained_samples, window_rows, window_cols, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	_, err := s.db.ExecContext(ctx, q,
		d.Symbol,
		d.Probability,
		d.Exposure,
		d.ForecastVolatility,
		int32(d.BarsCount),
		int32(d.TrainedSamples),
		rows,
		cols,
		d.CreatedAt,
	)
	if err != nil {
		s.l.Error("clickhouse decision insert error",
			applogger.String("symbol", d.Symbol), applogger.Error(err))
		return fmt.Errorf("store decision: %w", err)
	}
	return nil
}

func (s *ClickHouseDecisionStore) Recent(ctx context.Context, limit int) ([]models.TradingDecision, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	q := fmt.Sprintf(`SELECT symbol, probability, exposure, forecast_volatility,
        bars_count, trained_samples, window_rows, window_cols, created_at
        FROM %s ORDER BY created_at DESC LIMIT ?`, s.table)
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("recent decisions: %w", err)
	}
	defer rows.Close()

	out := make([]models.TradingDecision, 0, limit)
	for rows.Next() {
		var (
			d          models.TradingDecision
			barsCount  int32
			trained    int32
			wRows      sql.NullInt32
			wCols      sql.NullInt32
			createdAt  time.Time
		)
		if err := rows.Scan(&d.Symbol, &d.Probability, &d.Exposure, &d.ForecastVolatility,
			&barsCount, &trained, &wRows, &wCols, &createdAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.BarsCount = int(barsCount)
		d.TrainedSamples = int(trained)
		d.CreatedAt = createdAt
		if wRows.Valid && wCols.Valid {
			d.WindowShape = &models.WindowShape{Rows: int(wRows.Int32), Cols: int(wCols.Int32)}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *ClickHouseDecisionStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseDecisionStore) Close() error {
	return nil // pool managed by pkg/clickhouse
}

var _ drepo.DecisionStore = (*ClickHouseDecisionStore)(nil)
