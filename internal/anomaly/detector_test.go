package anomaly

import (
	"testing"
	"time"

	"crypto-flow-radar/internal/baseline"
	"crypto-flow-radar/internal/models"
)

func warmedTracker(t *testing.T, symbol string, tf models.Timeframe, avg float64, samples int) *baseline.Tracker {
	t.Helper()
	tracker := baseline.NewTracker(&baseline.Config{Alpha: 0.08, SampleCap: 60, MinSamples: 5})
	now := time.Now()
	for i := 0; i < samples; i++ {
		tracker.Update(symbol, tf, avg, now)
	}
	return tracker
}

func futuresCandle(symbol string, volume, open, close float64, trades int64) models.Candle {
	now := time.Now()
	return models.Candle{
		Symbol:     symbol,
		Timeframe:  models.Timeframe1m,
		MarketType: models.MarketFutures,
		OpenTime:   now.Add(-time.Minute),
		CloseTime:  now,
		Open:       open,
		Close:      close,
		Volume:     volume,
		TradeCount: trades,
	}
}

// TestFailsClosedWithoutBaseline verifies nil when no baseline exists
func TestFailsClosedWithoutBaseline(t *testing.T) {
	tracker := baseline.NewTracker(nil)
	d := NewDetector(nil, tracker)

	if alert := d.Detect(futuresCandle("BTCUSDT", 1000, 100, 101, 10), time.Now()); alert != nil {
		t.Error("detector should fail closed with no baseline")
	}
}

// TestFailsClosedBelowMinSamples verifies an untrusted baseline never alerts
func TestFailsClosedBelowMinSamples(t *testing.T) {
	tracker := warmedTracker(t, "BTCUSDT", models.Timeframe1m, 100, 3) // below MinSamples=5
	d := NewDetector(nil, tracker)

	if alert := d.Detect(futuresCandle("BTCUSDT", 10000, 100, 101, 10), time.Now()); alert != nil {
		t.Error("detector should fail closed below the minimum sample count")
	}
}

// TestThresholdBoundary verifies volume exactly at threshold*baseline does
// not trigger while anything above it does
func TestThresholdBoundary(t *testing.T) {
	tracker := warmedTracker(t, "BTCUSDT", models.Timeframe1m, 100, 10)
	d := NewDetector(nil, tracker) // threshold 2.5

	if alert := d.Detect(futuresCandle("BTCUSDT", 250, 100, 101, 10), time.Now()); alert != nil {
		t.Error("volume exactly at threshold should not trigger")
	}
	if alert := d.Detect(futuresCandle("BTCUSDT", 250.01, 100, 101, 10), time.Now()); alert == nil {
		t.Error("volume just above threshold should trigger")
	}
}

// TestFuturesScenario covers the end-to-end case: warmed baseline of 100,
// a 3.5x candle with 3% price move and 1200 trades in futures
func TestFuturesScenario(t *testing.T) {
	tracker := warmedTracker(t, "BTCUSDT", models.Timeframe1m, 100, 5)
	d := NewDetector(nil, tracker)

	alert := d.Detect(futuresCandle("BTCUSDT", 350, 100, 103, 1200), time.Now())
	if alert == nil {
		t.Fatal("expected an alert for a 3.5x spike")
	}
	if alert.Side != models.SideLong {
		t.Errorf("futures candle with positive move should be long, got %s", alert.Side)
	}
	if alert.Multiplier < 3.49 || alert.Multiplier > 3.51 {
		t.Errorf("multiplier should be ~3.5, got %f", alert.Multiplier)
	}
	// band 3, +1 for the 3% move, +1 for 1200 trades, capped at 5
	if alert.Strength != 5 {
		t.Errorf("strength should be 5 (band 3 + price bonus + trades bonus), got %d", alert.Strength)
	}
	if alert.Asset != "BTC" {
		t.Errorf("asset should derive from ticker, got %s", alert.Asset)
	}
	if !alert.ExpiresAt.After(alert.Timestamp.Add(23 * time.Hour)) {
		t.Error("alert TTL should be 24h")
	}
}

// TestSpotSideClassification verifies buy/sell mapping on spot markets
func TestSpotSideClassification(t *testing.T) {
	tracker := warmedTracker(t, "ETHUSDT", models.Timeframe1m, 100, 10)
	d := NewDetector(nil, tracker)

	up := futuresCandle("ETHUSDT", 400, 100, 102, 10)
	up.MarketType = models.MarketSpot
	if alert := d.Detect(up, time.Now()); alert == nil || alert.Side != models.SideBuy {
		t.Error("rising spot candle should classify as buy")
	}

	down := futuresCandle("ETHUSDT", 400, 100, 98, 10)
	down.MarketType = models.MarketSpot
	if alert := d.Detect(down, time.Now()); alert == nil || alert.Side != models.SideSell {
		t.Error("falling spot candle should classify as sell")
	}
}

// TestBonusesAreIndependent verifies each bonus applies on its own
func TestBonusesAreIndependent(t *testing.T) {
	tracker := warmedTracker(t, "SOLUSDT", models.Timeframe1m, 100, 10)
	d := NewDetector(nil, tracker)

	// 4x spike, no price move to speak of, few trades: band 3 only
	flat := d.Detect(futuresCandle("SOLUSDT", 400, 100, 100.5, 10), time.Now())
	if flat == nil || flat.Strength != 3 {
		t.Fatalf("4x spike with no bonuses should be strength 3, got %+v", flat)
	}

	// Same spike with only the trade-count bonus
	busy := d.Detect(futuresCandle("SOLUSDT", 400, 100, 100.5, 5000), time.Now())
	if busy == nil || busy.Strength != 4 {
		t.Errorf("trade-count bonus should add exactly 1, got %+v", busy)
	}

	// Same spike with only the price-move bonus
	moved := d.Detect(futuresCandle("SOLUSDT", 400, 100, 105, 10), time.Now())
	if moved == nil || moved.Strength != 4 {
		t.Errorf("price-move bonus should add exactly 1, got %+v", moved)
	}
}

// TestStrengthCap verifies strength never exceeds 5
func TestStrengthCap(t *testing.T) {
	tracker := warmedTracker(t, "DOGEUSDT", models.Timeframe1m, 100, 10)
	d := NewDetector(nil, tracker)

	alert := d.Detect(futuresCandle("DOGEUSDT", 2000, 100, 110, 9000), time.Now())
	if alert == nil || alert.Strength != 5 {
		t.Errorf("20x spike with both bonuses should cap at strength 5, got %+v", alert)
	}
}
