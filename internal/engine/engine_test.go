package engine

import (
	"testing"
	"time"

	"crypto-flow-radar/internal/aggregator"
	"crypto-flow-radar/internal/anomaly"
	"crypto-flow-radar/internal/baseline"
	"crypto-flow-radar/internal/liquidation"
	"crypto-flow-radar/internal/logging"
	"crypto-flow-radar/internal/models"
	"crypto-flow-radar/internal/patterns"
	"crypto-flow-radar/internal/throttle"
)

func newTestEngine(config *Config) *Engine {
	tracker := baseline.NewTracker(nil)
	gate := throttle.New(time.Minute)
	deps := Deps{
		Aggregator: aggregator.New(),
		Baselines:  tracker,
		Detector:   anomaly.NewDetector(nil, tracker),
		Book:       liquidation.NewBook(nil, nil, nil),
		Classifier: patterns.NewClassifier(nil, gate),
		Throttle:   gate,
	}
	logger := logging.New(&logging.Config{Level: "ERROR", JSONFormat: true})
	return New(config, deps, logger)
}

func candle(symbol string, volume float64, openTime time.Time) models.Candle {
	return models.Candle{
		Symbol:     symbol,
		Timeframe:  models.Timeframe1m,
		MarketType: models.MarketFutures,
		OpenTime:   openTime,
		CloseTime:  openTime.Add(time.Minute),
		Open:       100,
		Close:      103, // 3% move
		Volume:     volume,
		TradeCount: 1200,
	}
}

// TestCandlePipelineProducesAlert verifies a volume spike after a
// warmed baseline lands in the alert window
func TestCandlePipelineProducesAlert(t *testing.T) {
	e := newTestEngine(nil)
	start := time.Now()

	for i := 0; i < 5; i++ {
		e.handleCandle(candle("BTCUSDT", 100, start.Add(time.Duration(i)*time.Minute)))
	}
	if len(e.Alerts()) != 0 {
		t.Fatal("steady volume should not alert during warmup")
	}

	e.handleCandle(candle("BTCUSDT", 400, start.Add(5*time.Minute)))

	alerts := e.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("a 4x spike should produce one alert, got %d", len(alerts))
	}
	if alerts[0].Symbol != "BTCUSDT" || alerts[0].Multiplier < 3.5 {
		t.Errorf("unexpected alert: %+v", alerts[0])
	}

	status := e.Status()
	if !status.HasData {
		t.Error("status should report data after candles")
	}
	if status.AlertsHeld != 1 {
		t.Errorf("status should count the held alert, got %d", status.AlertsHeld)
	}
}

// TestLiquidationFlipSignal verifies a dominance reversal across two
// classification passes emits exactly one FLIP
func TestLiquidationFlipSignal(t *testing.T) {
	e := newTestEngine(nil)
	now := time.Now()

	e.handleLiquidation(models.LiquidationEvent{
		Ticker: "ZZZUSDT", Side: models.SideLong, AmountUSD: 30000, Price: 10, Timestamp: now,
	})
	e.classifyAll(now)
	if len(e.Signals()) != 0 {
		t.Fatal("one snapshot is not enough history for a signal")
	}

	e.handleLiquidation(models.LiquidationEvent{
		Ticker: "ZZZUSDT", Side: models.SideShort, AmountUSD: 40000, Price: 10, Timestamp: now,
	})
	e.classifyAll(now.Add(10 * time.Second))

	signals := e.Signals()
	if len(signals) != 1 {
		t.Fatalf("the reversal should emit exactly one signal, got %d", len(signals))
	}
	if signals[0].PatternType != models.PatternFlip || signals[0].Asset != "ZZZ" {
		t.Errorf("unexpected signal: %+v", signals[0])
	}

	// Same state on the next pass stays quiet: dominance did not change
	// again and the cooldown is stamped
	e.classifyAll(now.Add(20 * time.Second))
	if len(e.Signals()) != 1 {
		t.Error("an unchanged book should not re-emit")
	}
}

// TestSignalWindowPruned verifies the retained signal window is bounded
func TestSignalWindowPruned(t *testing.T) {
	config := DefaultConfig()
	config.MaxStoredSignals = 2
	e := newTestEngine(config)

	for i := 0; i < 3; i++ {
		e.publishSignal(models.PatternSignal{ID: string(rune('a' + i)), Asset: "BTC"})
	}

	signals := e.Signals()
	if len(signals) != 2 {
		t.Fatalf("window should hold 2 signals, got %d", len(signals))
	}
	if signals[0].ID != "c" {
		t.Errorf("newest signal should be first, got %s", signals[0].ID)
	}
}

// TestRejectedLiquidationRecordsError verifies malformed events surface
// in the status without stopping the engine
func TestRejectedLiquidationRecordsError(t *testing.T) {
	e := newTestEngine(nil)

	e.handleLiquidation(models.LiquidationEvent{
		Ticker: "BTCUSDT", Side: models.SideBuy, AmountUSD: 50000, Price: 10, Timestamp: time.Now(),
	})

	status := e.Status()
	if status.LastError == "" {
		t.Error("an invalid side should be recorded as the last error")
	}
	if len(e.UnifiedView()) != 0 {
		t.Error("a rejected event must not enter the book")
	}
}

// TestSweepDropsExpiredAlerts verifies expired alerts leave the window
func TestSweepDropsExpiredAlerts(t *testing.T) {
	e := newTestEngine(nil)
	now := time.Now()

	e.mu.Lock()
	e.alerts = []models.VolumeAlert{
		{ID: "fresh", ExpiresAt: now.Add(time.Hour)},
		{ID: "stale", ExpiresAt: now.Add(-time.Hour)},
	}
	e.mu.Unlock()

	e.sweep(now)

	alerts := e.Alerts()
	if len(alerts) != 1 || alerts[0].ID != "fresh" {
		t.Errorf("only the unexpired alert should survive, got %+v", alerts)
	}
}
