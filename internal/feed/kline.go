// Package feed maintains the exchange WebSocket streams: closed klines
// for spot and futures, and the forced-liquidation order stream. Feeds
// reconnect forever until their context is cancelled and hand parsed
// events to the engine through handler funcs.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"crypto-flow-radar/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// CandleHandler receives each closed base candle
type CandleHandler func(models.Candle)

const (
	reconnectDelay   = 3 * time.Second
	dialRetryDelay   = 5 * time.Second
	defaultSpotWS    = "wss://stream.binance.com:9443"
	defaultFuturesWS = "wss://fstream.binance.com"
)

// KlineFeed streams 1m klines for a fixed symbol set from one market.
// Open klines are dropped; only closed candles reach the handler.
type KlineFeed struct {
	baseURL    string
	symbols    []string
	marketType models.MarketType
	handler    CandleHandler
	logger     zerolog.Logger

	onStatus func(connected bool)
}

// NewKlineFeed creates a kline feed. An empty baseURL selects the
// public endpoint for the market type.
func NewKlineFeed(baseURL string, symbols []string, marketType models.MarketType, handler CandleHandler, logger zerolog.Logger) *KlineFeed {
	if baseURL == "" {
		baseURL = defaultSpotWS
		if marketType == models.MarketFutures {
			baseURL = defaultFuturesWS
		}
	}
	return &KlineFeed{
		baseURL:    baseURL,
		symbols:    symbols,
		marketType: marketType,
		handler:    handler,
		logger:     logger.With().Str("component", "kline_feed").Str("market", string(marketType)).Logger(),
	}
}

// OnStatus registers a connect/disconnect callback
func (f *KlineFeed) OnStatus(fn func(connected bool)) {
	f.onStatus = fn
}

// streamURL builds the combined-stream URL for all subscribed symbols
func (f *KlineFeed) streamURL() string {
	streams := make([]string, 0, len(f.symbols))
	for _, s := range f.symbols {
		streams = append(streams, strings.ToLower(s)+"@kline_1m")
	}
	return f.baseURL + "/stream?streams=" + strings.Join(streams, "/")
}

// Run connects and reads until the context is cancelled, reconnecting
// on any failure.
func (f *KlineFeed) Run(ctx context.Context) {
	url := f.streamURL()

	for {
		if ctx.Err() != nil {
			return
		}

		f.logger.Info().Int("symbols", len(f.symbols)).Msg("connecting kline stream")

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			f.logger.Warn().Err(err).Msg("kline dial failed, retrying")
			if !sleepCtx(ctx, dialRetryDelay) {
				return
			}
			continue
		}

		f.logger.Info().Msg("kline stream connected")
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
		f.logger.Warn().Msg("kline stream lost, reconnecting")
		if !sleepCtx(ctx, reconnectDelay) {
			return
		}
	}
}

func (f *KlineFeed) readLoop(ctx context.Context, conn *websocket.Conn) {
	// Unblock ReadMessage on shutdown
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
				f.logger.Info().Msg("kline stream closed normally")
			} else if ctx.Err() == nil {
				f.logger.Warn().Err(err).Msg("kline read error")
			}
			return
		}

		candle, closed, err := parseKlineMessage(message, f.marketType)
		if err != nil {
			// Malformed frames are dropped, never fatal
			f.logger.Debug().Err(err).Msg("discarding malformed kline frame")
			continue
		}
		if !closed {
			continue
		}
		if f.handler != nil {
			f.handler(candle)
		}
	}
}

// combinedKline mirrors the combined-stream kline payload
type combinedKline struct {
	Stream string `json:"stream"`
	Data   struct {
		EventType string `json:"e"`
		Symbol    string `json:"s"`
		Kline     struct {
			OpenTime    int64  `json:"t"`
			CloseTime   int64  `json:"T"`
			Interval    string `json:"i"`
			Open        string `json:"o"`
			Close       string `json:"c"`
			QuoteVolume string `json:"q"`
			TradeCount  int64  `json:"n"`
			Closed      bool   `json:"x"`
		} `json:"k"`
	} `json:"data"`
}

// parseKlineMessage converts a combined-stream frame into a candle.
// The second return reports whether the kline is closed.
func parseKlineMessage(message []byte, marketType models.MarketType) (models.Candle, bool, error) {
	var frame combinedKline
	if err := json.Unmarshal(message, &frame); err != nil {
		return models.Candle{}, false, fmt.Errorf("failed to parse kline frame: %w", err)
	}
	if frame.Data.EventType != "kline" || frame.Data.Symbol == "" {
		return models.Candle{}, false, fmt.Errorf("unexpected event type %q", frame.Data.EventType)
	}

	k := frame.Data.Kline
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return models.Candle{}, false, fmt.Errorf("bad open price: %w", err)
	}
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return models.Candle{}, false, fmt.Errorf("bad close price: %w", err)
	}
	volume, err := strconv.ParseFloat(k.QuoteVolume, 64)
	if err != nil {
		return models.Candle{}, false, fmt.Errorf("bad volume: %w", err)
	}

	candle := models.Candle{
		Symbol:     frame.Data.Symbol,
		Timeframe:  models.Timeframe(k.Interval),
		MarketType: marketType,
		OpenTime:   time.UnixMilli(k.OpenTime).UTC(),
		CloseTime:  time.UnixMilli(k.CloseTime).UTC(),
		Open:       open,
		Close:      closePrice,
		Volume:     volume,
		TradeCount: k.TradeCount,
	}
	return candle, k.Closed, nil
}

// sleepCtx sleeps for d, returning false if the context ended first
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
