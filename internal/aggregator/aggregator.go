// Package aggregator folds the base 1m candle stream into derived 3m
// and 15m candles without separate exchange subscriptions.
package aggregator

import (
	"fmt"
	"sync"

	"crypto-flow-radar/internal/models"
	"crypto-flow-radar/internal/ringbuf"
)

// window ties a derived timeframe to how many base candles it spans
type window struct {
	timeframe models.Timeframe
	span      int
}

var derivedWindows = []window{
	{models.Timeframe3m, 3},
	{models.Timeframe15m, 15},
}

// fifoCap must cover the longest derived window
const fifoCap = 15

// Handler receives candles as they close: the base candle itself plus
// any derived candles synthesized from it
type Handler func(models.Candle)

// Aggregator retains a capped FIFO of base candles per
// (symbol, marketType) and synthesizes longer-timeframe candles.
// Nothing is emitted until enough base candles exist; no partial
// aggregates ever leave the buffer.
type Aggregator struct {
	mu       sync.Mutex
	buffers  map[string]*ringbuf.Buffer[models.Candle]
	handlers []Handler
}

// New creates an aggregator
func New() *Aggregator {
	return &Aggregator{
		buffers: make(map[string]*ringbuf.Buffer[models.Candle]),
	}
}

// OnCandle registers a handler for emitted candles
func (a *Aggregator) OnCandle(handler Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers = append(a.handlers, handler)
}

// OnClosedCandle ingests one closed base-interval candle. Must be called
// in arrival order per (symbol, marketType); the window is order-sensitive.
func (a *Aggregator) OnClosedCandle(candle models.Candle) {
	if candle.Timeframe != models.Timeframe1m {
		return // only the base interval feeds the window
	}

	a.mu.Lock()
	k := fmt.Sprintf("%s:%s", candle.Symbol, candle.MarketType)
	buf, exists := a.buffers[k]
	if !exists {
		buf = ringbuf.New[models.Candle](fifoCap)
		a.buffers[k] = buf
	}
	buf.Append(candle)

	emitted := []models.Candle{candle}
	for _, w := range derivedWindows {
		if buf.Len() >= w.span {
			emitted = append(emitted, synthesize(buf.Latest(w.span), w.timeframe))
		}
	}
	handlers := a.handlers
	a.mu.Unlock()

	for _, h := range handlers {
		for _, c := range emitted {
			h(c)
		}
	}
}

// synthesize builds one derived candle from a full window of base candles
func synthesize(window []models.Candle, timeframe models.Timeframe) models.Candle {
	first := window[0]
	last := window[len(window)-1]

	var volume float64
	var trades int64
	for _, c := range window {
		volume += c.Volume
		trades += c.TradeCount
	}

	return models.Candle{
		Symbol:     last.Symbol,
		Timeframe:  timeframe,
		MarketType: last.MarketType,
		OpenTime:   first.OpenTime,
		CloseTime:  last.CloseTime,
		Open:       first.Open,
		Close:      last.Close,
		Volume:     volume,
		TradeCount: trades,
	}
}

// BufferedCount returns how many base candles are held for a key,
// mainly for status reporting
func (a *Aggregator) BufferedCount(symbol string, marketType models.MarketType) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf, exists := a.buffers[fmt.Sprintf("%s:%s", symbol, marketType)]
	if !exists {
		return 0
	}
	return buf.Len()
}
