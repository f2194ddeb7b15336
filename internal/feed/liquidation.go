package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"crypto-flow-radar/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// LiquidationHandler receives each parsed forced-liquidation event
type LiquidationHandler func(models.LiquidationEvent)

// LiquidationFeed streams the exchange-wide forced-order feed from the
// futures endpoint.
type LiquidationFeed struct {
	baseURL string
	handler LiquidationHandler
	logger  zerolog.Logger

	onStatus func(connected bool)
}

// NewLiquidationFeed creates a forced-order feed. An empty baseURL
// selects the public futures endpoint.
func NewLiquidationFeed(baseURL string, handler LiquidationHandler, logger zerolog.Logger) *LiquidationFeed {
	if baseURL == "" {
		baseURL = defaultFuturesWS
	}
	return &LiquidationFeed{
		baseURL: baseURL,
		handler: handler,
		logger:  logger.With().Str("component", "liquidation_feed").Logger(),
	}
}

// OnStatus registers a connect/disconnect callback
func (f *LiquidationFeed) OnStatus(fn func(connected bool)) {
	f.onStatus = fn
}

// Run connects and reads until the context is cancelled, reconnecting
// on any failure.
func (f *LiquidationFeed) Run(ctx context.Context) {
	url := f.baseURL + "/ws/!forceOrder@arr"

	for {
		if ctx.Err() != nil {
			return
		}

		f.logger.Info().Msg("connecting liquidation stream")

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			f.logger.Warn().Err(err).Msg("liquidation dial failed, retrying")
			if !sleepCtx(ctx, dialRetryDelay) {
				return
			}
			continue
		}

		f.logger.Info().Msg("liquidation stream connected")
		if f.onStatus != nil {
			f.onStatus(true)
		}

		f.readLoop(ctx, conn)
		conn.Close()

		if f.onStatus != nil {
			f.onStatus(false)
		}
		if ctx.Err() != nil {
			return
		}
		f.logger.Warn().Msg("liquidation stream lost, reconnecting")
		if !sleepCtx(ctx, reconnectDelay) {
			return
		}
	}
}

func (f *LiquidationFeed) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				f.logger.Info().Msg("liquidation stream closed normally")
			} else if ctx.Err() == nil {
				f.logger.Warn().Err(err).Msg("liquidation read error")
			}
			return
		}

		event, err := parseForceOrder(message)
		if err != nil {
			f.logger.Debug().Err(err).Msg("discarding malformed liquidation frame")
			continue
		}
		if f.handler != nil {
			f.handler(event)
		}
	}
}

// forceOrderFrame mirrors the forced-order payload
type forceOrderFrame struct {
	EventType string `json:"e"`
	Order     struct {
		Symbol       string `json:"s"`
		Side         string `json:"S"`
		Quantity     string `json:"q"`
		AveragePrice string `json:"ap"`
		TradeTime    int64  `json:"T"`
	} `json:"o"`
}

// parseForceOrder converts a forced-order frame into a liquidation
// event. A SELL forced order closes long positions, a BUY closes shorts.
func parseForceOrder(message []byte) (models.LiquidationEvent, error) {
	var frame forceOrderFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		return models.LiquidationEvent{}, fmt.Errorf("failed to parse force order frame: %w", err)
	}
	if frame.EventType != "forceOrder" || frame.Order.Symbol == "" {
		return models.LiquidationEvent{}, fmt.Errorf("unexpected event type %q", frame.EventType)
	}

	qty, err := strconv.ParseFloat(frame.Order.Quantity, 64)
	if err != nil {
		return models.LiquidationEvent{}, fmt.Errorf("bad quantity: %w", err)
	}
	price, err := strconv.ParseFloat(frame.Order.AveragePrice, 64)
	if err != nil {
		return models.LiquidationEvent{}, fmt.Errorf("bad average price: %w", err)
	}

	side := models.SideShort
	if frame.Order.Side == "SELL" {
		side = models.SideLong
	}

	return models.LiquidationEvent{
		Ticker:    frame.Order.Symbol,
		Side:      side,
		AmountUSD: qty * price,
		Price:     price,
		Timestamp: time.UnixMilli(frame.Order.TradeTime).UTC(),
	}, nil
}
