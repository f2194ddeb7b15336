package feed

import (
	"testing"
	"time"

	"crypto-flow-radar/internal/models"
)

// TestParseKlineClosed verifies a closed kline frame becomes a candle
func TestParseKlineClosed(t *testing.T) {
	frame := []byte(`{
		"stream": "btcusdt@kline_1m",
		"data": {
			"e": "kline",
			"s": "BTCUSDT",
			"k": {
				"t": 1700000000000,
				"T": 1700000059999,
				"i": "1m",
				"o": "43000.50",
				"c": "43120.00",
				"q": "1250000.75",
				"n": 5230,
				"x": true
			}
		}
	}`)

	candle, closed, err := parseKlineMessage(frame, models.MarketFutures)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !closed {
		t.Fatal("frame is marked closed")
	}
	if candle.Symbol != "BTCUSDT" || candle.Timeframe != models.Timeframe1m {
		t.Errorf("unexpected identity: %s %s", candle.Symbol, candle.Timeframe)
	}
	if candle.MarketType != models.MarketFutures {
		t.Errorf("market type should come from the feed, got %s", candle.MarketType)
	}
	if candle.Open != 43000.50 || candle.Close != 43120.00 {
		t.Errorf("unexpected prices: %f / %f", candle.Open, candle.Close)
	}
	if candle.Volume != 1250000.75 || candle.TradeCount != 5230 {
		t.Errorf("unexpected volume fields: %f / %d", candle.Volume, candle.TradeCount)
	}
	if !candle.OpenTime.Equal(time.UnixMilli(1700000000000).UTC()) {
		t.Errorf("unexpected open time: %v", candle.OpenTime)
	}
}

// TestParseKlineOpenIsDropped verifies an in-progress kline is flagged
// not-closed
func TestParseKlineOpenIsDropped(t *testing.T) {
	frame := []byte(`{
		"stream": "ethusdt@kline_1m",
		"data": {
			"e": "kline",
			"s": "ETHUSDT",
			"k": {"t": 1, "T": 2, "i": "1m", "o": "1", "c": "2", "q": "3", "n": 4, "x": false}
		}
	}`)

	_, closed, err := parseKlineMessage(frame, models.MarketSpot)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if closed {
		t.Error("in-progress klines must be flagged as not closed")
	}
}

// TestParseKlineMalformed verifies garbage frames error instead of
// producing zero-value candles
func TestParseKlineMalformed(t *testing.T) {
	cases := [][]byte{
		[]byte(`not json`),
		[]byte(`{"stream": "x", "data": {"e": "trade"}}`),
		[]byte(`{"stream": "x", "data": {"e": "kline", "s": "BTCUSDT", "k": {"o": "abc", "c": "1", "q": "1"}}}`),
	}
	for i, frame := range cases {
		if _, _, err := parseKlineMessage(frame, models.MarketSpot); err == nil {
			t.Errorf("case %d should fail to parse", i)
		}
	}
}

// TestParseForceOrderSides verifies SELL maps to long liquidations and
// BUY to shorts, with the notional computed from quantity and price
func TestParseForceOrderSides(t *testing.T) {
	sell := []byte(`{
		"e": "forceOrder",
		"o": {"s": "SOLUSDT", "S": "SELL", "q": "100", "ap": "150.5", "T": 1700000000000}
	}`)

	event, err := parseForceOrder(sell)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if event.Side != models.SideLong {
		t.Errorf("a SELL forced order liquidates longs, got %s", event.Side)
	}
	if event.AmountUSD != 100*150.5 {
		t.Errorf("notional should be qty*price, got %f", event.AmountUSD)
	}
	if event.Ticker != "SOLUSDT" {
		t.Errorf("unexpected ticker %s", event.Ticker)
	}

	buy := []byte(`{
		"e": "forceOrder",
		"o": {"s": "SOLUSDT", "S": "BUY", "q": "1", "ap": "150", "T": 1700000000000}
	}`)
	event, err = parseForceOrder(buy)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if event.Side != models.SideShort {
		t.Errorf("a BUY forced order liquidates shorts, got %s", event.Side)
	}
}

// TestParseForceOrderMalformed verifies bad frames are rejected
func TestParseForceOrderMalformed(t *testing.T) {
	cases := [][]byte{
		[]byte(`garbage`),
		[]byte(`{"e": "kline"}`),
		[]byte(`{"e": "forceOrder", "o": {"s": "BTCUSDT", "S": "SELL", "q": "x", "ap": "1"}}`),
	}
	for i, frame := range cases {
		if _, err := parseForceOrder(frame); err == nil {
			t.Errorf("case %d should fail to parse", i)
		}
	}
}
