package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"EdgePulse/internal/domain/models"
	drepo "EdgePulse/internal/domain/repository"
	applogger "EdgePulse/pkg/logger"

	"github.com/gorilla/websocket"
)

// Stream implements a MarketStream backed by the exchange aggTrade
// WebSocket feed.
type Stream struct {
	websocketURL   string
	symbol         string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	logger         *applogger.Logger

	conn      *websocket.Conn
	connected bool
}

// NewStream creates a new exchange MarketStream for one symbol.
func NewStream(websocketURL, symbol string, reconnectDelay, pingInterval time.Duration, logger *applogger.Logger) drepo.MarketStream {
	if logger == nil {
		logger = applogger.Nop()
	}
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Stream{
		websocketURL:   websocketURL,
		symbol:         symbol,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		logger:         logger,
	}
}

// Connect establishes the WebSocket connection.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("exchange connect: %w", err)
	}
	s.conn = conn
	s.connected = true
	s.logger.Info("exchange stream connected", applogger.String("symbol", s.symbol))
	return nil
}

// Subscribe subscribes to the aggTrade stream for the configured symbol.
func (s *Stream) Subscribe(ctx context.Context) error {
	if s.conn == nil || !s.connected {
		return fmt.Errorf("exchange stream not connected")
	}
	msg := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": []string{strings.ToLower(s.symbol) + "@aggTrade"},
		"id":     1,
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.symbol, err)
	}
	s.logger.Info("exchange stream subscribed", applogger.String("symbol", s.symbol))
	return nil
}

// aggTradeEvent is one trade frame. Maker-buy frames are aggressor sells.
type aggTradeEvent struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	TradeID   int64  `json:"a"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTime int64  `json:"T"`
	MakerBuy  bool   `json:"m"`
}

// Read streams Trade events and errors.
func (s *Stream) Read(ctx context.Context) (<-chan *models.Trade, <-chan error) {
	trades := make(chan *models.Trade, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if s.conn != nil {
					_ = s.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(trades)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if s.conn == nil {
					errs <- fmt.Errorf("exchange conn nil")
					return
				}
				_, b, err := s.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("exchange read: %w", err)
					return
				}
				var ev aggTradeEvent
				if err := json.Unmarshal(b, &ev); err != nil || ev.EventType != "aggTrade" {
					// ignore non-trade frames (subscribe acks, pings)
					continue
				}
				t, err := ev.toTrade()
				if err != nil {
					continue
				}
				select {
				case trades <- t:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return trades, errs
}

func (ev *aggTradeEvent) toTrade() (*models.Trade, error) {
	price, err := strconv.ParseFloat(ev.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}
	qty, err := strconv.ParseFloat(ev.Quantity, 64)
	if err != nil {
		return nil, fmt.Errorf("parse quantity: %w", err)
	}
	side := models.SideBuy
	if ev.MakerBuy {
		side = models.SideSell
	}
	return &models.Trade{
		SequenceID:  ev.TradeID,
		Symbol:      ev.Symbol,
		Price:       price,
		Size:        qty,
		Side:        side,
		TimestampMs: ev.TradeTime,
	}, nil
}

// Reconnect closes and re-establishes the connection after the configured delay.
func (s *Stream) Reconnect(ctx context.Context) error {
	s.connected = false
	if s.conn != nil {
		_ = s.conn.Close()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.reconnectDelay):
	}
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

// Close closes the connection.
func (s *Stream) Close() error {
	s.connected = false
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// IsConnected reports connection state.
func (s *Stream) IsConnected() bool { return s.connected }
