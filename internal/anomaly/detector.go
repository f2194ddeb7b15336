// Package anomaly detects statistically unusual volume against the
// rolling baselines and classifies the result into a VolumeAlert.
package anomaly

import (
	"math"
	"time"

	"crypto-flow-radar/internal/baseline"
	"crypto-flow-radar/internal/models"

	"github.com/google/uuid"
)

// Config holds detector thresholds. Reference values are heuristic and
// tunable per deployment.
type Config struct {
	MultiplierThreshold float64       // reject below this multiple of baseline
	PriceMoveBonusPct   float64       // |price move| strictly above this adds +1 strength
	TradeCountBonus     int64         // trade count above this adds +1 strength
	AlertTTL            time.Duration // alerts expire after this
}

// DefaultConfig returns the reference thresholds
func DefaultConfig() *Config {
	return &Config{
		MultiplierThreshold: 2.5,
		PriceMoveBonusPct:   2.0,
		TradeCountBonus:     1000,
		AlertTTL:            24 * time.Hour,
	}
}

// Detector classifies closed-candle volume against the baseline tracker
type Detector struct {
	config  *Config
	tracker *baseline.Tracker
}

// NewDetector creates a detector backed by the given baseline tracker
func NewDetector(config *Config, tracker *baseline.Tracker) *Detector {
	if config == nil {
		config = DefaultConfig()
	}
	return &Detector{config: config, tracker: tracker}
}

// Detect runs once per (symbol, timeframe) per closed candle. It fails
// closed: nil when the baseline is absent, not yet trusted, below the
// multiplier threshold, or when any computed field is non-finite.
func (d *Detector) Detect(candle models.Candle, now time.Time) *models.VolumeAlert {
	b, ok := d.tracker.Get(candle.Symbol, candle.Timeframe)
	if !ok || b.SampleCount < d.tracker.MinSamples() {
		return nil
	}

	// Denominators clamp to 1 so a zeroed baseline cannot divide by zero
	avg := b.Average
	if avg < 1 {
		avg = 1
	}
	// Trigger only on a strictly greater multiplier; exactly at the
	// threshold is still normal volume
	multiplier := candle.Volume / avg
	if multiplier <= d.config.MultiplierThreshold {
		return nil
	}

	priceMove := candle.PriceMovementPct()
	side := classifySide(candle.MarketType, priceMove)
	strength := d.strength(multiplier, priceMove, candle.TradeCount)

	if !isFinite(multiplier) || !isFinite(priceMove) || !isFinite(candle.Close) {
		return nil
	}

	return &models.VolumeAlert{
		ID:               uuid.NewString(),
		Symbol:           candle.Symbol,
		Asset:            models.AssetFromTicker(candle.Symbol),
		Timeframe:        candle.Timeframe,
		MarketType:       candle.MarketType,
		Side:             side,
		Baseline:         b.Average,
		Current:          candle.Volume,
		Multiplier:       multiplier,
		PriceMovementPct: priceMove,
		Price:            candle.Close,
		Strength:         strength,
		TradeCount:       candle.TradeCount,
		Timestamp:        now,
		ExpiresAt:        now.Add(d.config.AlertTTL),
	}
}

// classifySide maps the price move onto buy/sell for spot and
// long/short for futures
func classifySide(marketType models.MarketType, priceMovePct float64) models.Side {
	if marketType == models.MarketSpot {
		if priceMovePct > 0 {
			return models.SideBuy
		}
		return models.SideSell
	}
	if priceMovePct > 0 {
		return models.SideLong
	}
	return models.SideShort
}

// strength grades the spike 1..5 from multiplier bands, then applies
// independent +1 bonuses for a large price move and a high trade count
func (d *Detector) strength(multiplier, priceMovePct float64, tradeCount int64) int {
	var s int
	switch {
	case multiplier >= 10:
		s = 5
	case multiplier >= 7:
		s = 4
	case multiplier >= 3.5:
		s = 3
	default:
		s = 2
	}

	if math.Abs(priceMovePct) > d.config.PriceMoveBonusPct {
		s++
	}
	if tradeCount > d.config.TradeCountBonus {
		s++
	}
	if s > 5 {
		s = 5
	}
	return s
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
