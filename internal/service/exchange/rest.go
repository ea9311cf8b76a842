package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"EdgePulse/internal/domain/models"
	drepo "EdgePulse/internal/domain/repository"
	xhttp "EdgePulse/pkg/http"
)

// RestBackfill fetches recent aggregate trades over the exchange REST API.
// It is used once at startup to warm the trade buffer before the stream
// delivers live trades.
type RestBackfill struct {
	baseURL string
	client  *xhttp.Client
}

// NewRestBackfill builds the backfill client.
func NewRestBackfill(baseURL string, timeout time.Duration) *RestBackfill {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RestBackfill{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

type aggTradeRow struct {
	TradeID   int64  `json:"a"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTime int64  `json:"T"`
	MakerBuy  bool   `json:"m"`
}

// Fetch returns up to limit recent trades for symbol, oldest first.
func (r *RestBackfill) Fetch(ctx context.Context, symbol string, limit int) ([]*models.Trade, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	var rows []aggTradeRow
	err := r.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    r.baseURL + "/api/v3/aggTrades",
		QueryParams: map[string][]string{
			"symbol": {symbol},
			"limit":  {strconv.Itoa(limit)},
		},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("fetch agg trades: %w", err)
	}

	out := make([]*models.Trade, 0, len(rows))
	for _, row := range rows {
		price, err := strconv.ParseFloat(row.Price, 64)
		if err != nil {
			continue
		}
		qty, err := strconv.ParseFloat(row.Quantity, 64)
		if err != nil {
			continue
		}
		side := models.SideBuy
		if row.MakerBuy {
			side = models.SideSell
		}
		out = append(out, &models.Trade{
			SequenceID:  row.TradeID,
			Symbol:      symbol,
			Price:       price,
			Size:        qty,
			Side:        side,
			TimestampMs: row.TradeTime,
		})
	}
	return out, nil
}

// Warm loads a backfill batch into the sink, ignoring duplicates.
func (r *RestBackfill) Warm(ctx context.Context, symbol string, limit int, sink drepo.TradeSink) (int, error) {
	trades, err := r.Fetch(ctx, symbol, limit)
	if err != nil {
		return 0, err
	}
	loaded := 0
	for _, t := range trades {
		if err := sink.Add(ctx, t); err == nil {
			loaded++
		}
	}
	return loaded, nil
}
