// Package models defines the data types shared by the flow-radar engine:
// candles, volume baselines and alerts, liquidation state, and pattern signals.
package models

import (
	"strings"
	"time"
)

// Timeframe represents a supported candle interval
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe3m  Timeframe = "3m"
	Timeframe15m Timeframe = "15m"
)

// AllTimeframes returns every timeframe the engine tracks
var AllTimeframes = []Timeframe{Timeframe1m, Timeframe3m, Timeframe15m}

// MarketType distinguishes spot candles from futures candles
type MarketType string

const (
	MarketSpot    MarketType = "spot"
	MarketFutures MarketType = "futures"
)

// Side represents the direction of an alert or liquidation
type Side string

const (
	SideBuy   Side = "buy"
	SideSell  Side = "sell"
	SideLong  Side = "long"
	SideShort Side = "short"
)

// PatternType represents a classified liquidation pattern
type PatternType string

const (
	PatternFlip    PatternType = "FLIP"
	PatternCascade PatternType = "CASCADE"
	PatternSqueeze PatternType = "SQUEEZE"
	PatternWhale   PatternType = "WHALE"
)

// Severity grades how significant a pattern signal is
type Severity string

const (
	SeverityLow     Severity = "LOW"
	SeverityMedium  Severity = "MEDIUM"
	SeverityHigh    Severity = "HIGH"
	SeverityExtreme Severity = "EXTREME"
)

// MarketCapTier buckets assets by market capitalization
type MarketCapTier string

const (
	TierHigh MarketCapTier = "high"
	TierMid  MarketCapTier = "mid"
	TierLow  MarketCapTier = "low"
)

// Candle is one closed trading interval. Immutable once closed;
// produced by the exchange feed or synthesized by the aggregator.
type Candle struct {
	Symbol     string     `json:"symbol"`
	Timeframe  Timeframe  `json:"timeframe"`
	MarketType MarketType `json:"market_type"`
	OpenTime   time.Time  `json:"open_time"`
	CloseTime  time.Time  `json:"close_time"`
	Open       float64    `json:"open"`
	Close      float64    `json:"close"`
	Volume     float64    `json:"volume"`
	TradeCount int64      `json:"trade_count"`
}

// PriceMovementPct returns the close-over-open move as a percentage
func (c Candle) PriceMovementPct() float64 {
	if c.Open == 0 {
		return 0
	}
	return (c.Close - c.Open) / c.Open * 100
}

// VolumeBaseline is the EWMA volume state for one (symbol, timeframe) key
type VolumeBaseline struct {
	Average     float64   `json:"average"`
	SampleCount int       `json:"sample_count"`
	LastUpdated time.Time `json:"last_updated"`
}

// VolumeAlert is an immutable volume anomaly detection result
type VolumeAlert struct {
	ID               string     `json:"id"`
	Symbol           string     `json:"symbol"`
	Asset            string     `json:"asset"`
	Timeframe        Timeframe  `json:"timeframe"`
	MarketType       MarketType `json:"market_type"`
	Side             Side       `json:"side"`
	Baseline         float64    `json:"baseline"`
	Current          float64    `json:"current"`
	Multiplier       float64    `json:"multiplier"`
	PriceMovementPct float64    `json:"price_movement_pct"`
	Price            float64    `json:"price"`
	Strength         int        `json:"strength"` // 1..5
	TradeCount       int64      `json:"trade_count"`
	Timestamp        time.Time  `json:"timestamp"`
	ExpiresAt        time.Time  `json:"expires_at"`
}

// Expired reports whether downstream consumers must discard the alert
func (a VolumeAlert) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// LiquidationEvent is a raw forced-liquidation tick from the exchange feed
type LiquidationEvent struct {
	Ticker    string    `json:"ticker"`
	Side      Side      `json:"side"` // long or short
	AmountUSD float64   `json:"amount_usd"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// LiquidationFill is one bounded-history entry inside an accumulator
type LiquidationFill struct {
	Side      Side      `json:"side"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// SideLiquidationAsset is the per-(asset, side) accumulator state.
// Totals only ever grow; the asset disappears as a whole when swept.
type SideLiquidationAsset struct {
	Asset              string            `json:"asset"`
	Ticker             string            `json:"ticker"`
	Side               Side              `json:"side"`
	Price              float64           `json:"price"`
	Tier               MarketCapTier     `json:"tier"`
	PositionCount      int               `json:"position_count"`
	LiquidatedTotal    float64           `json:"liquidated_total"`
	FirstDetectionTime time.Time         `json:"first_detection_time"`
	LastUpdateTime     time.Time         `json:"last_update_time"`
	Intensity          int               `json:"intensity"` // 1..5, monotonic max
	History            []LiquidationFill `json:"history"`   // most recent last, bounded
}

// UnifiedAsset is the read-only join of the long and short accumulators
// for one asset. Recomputed on demand, never stored.
type UnifiedAsset struct {
	Asset           string        `json:"asset"`
	Ticker          string        `json:"ticker"`
	Price           float64       `json:"price"`
	Tier            MarketCapTier `json:"tier"`
	LongPositions   int           `json:"long_positions"`
	LongLiquidated  float64       `json:"long_liquidated"`
	ShortPositions  int           `json:"short_positions"`
	ShortLiquidated float64       `json:"short_liquidated"`
	TotalPositions  int           `json:"total_positions"`
	CombinedTotal   float64       `json:"combined_total"`
	DominantSide    Side          `json:"dominant_side"`
	Intensity       int           `json:"intensity"`
	LastUpdateTime  time.Time     `json:"last_update_time"`
}

// PatternMetrics carries the numbers behind a pattern signal so the
// dashboard can render it without recomputation
type PatternMetrics struct {
	LongVolume   float64 `json:"long_volume"`
	ShortVolume  float64 `json:"short_volume"`
	DominantSide Side    `json:"dominant_side"`
	VolumeRatio  float64 `json:"volume_ratio"`
	Intensity    int     `json:"intensity"`
}

// PatternSignal is an immutable classifier output
type PatternSignal struct {
	ID          string         `json:"id"`
	Asset       string         `json:"asset"`
	PatternType PatternType    `json:"pattern_type"`
	Description string         `json:"description"`
	Confidence  float64        `json:"confidence"` // 0..100
	Severity    Severity       `json:"severity"`
	Timestamp   time.Time      `json:"timestamp"`
	Metrics     PatternMetrics `json:"metrics"`
}

// quoteSuffixes are the quote currencies stripped when deriving an asset
// name from an exchange ticker
var quoteSuffixes = []string{"USDT", "USDC", "BUSD", "FDUSD", "USD", "BTC", "ETH"}

// AssetFromTicker derives the base asset from an exchange ticker,
// e.g. "BTCUSDT" -> "BTC". Unrecognized tickers are returned unchanged.
func AssetFromTicker(ticker string) string {
	upper := strings.ToUpper(ticker)
	for _, suffix := range quoteSuffixes {
		if strings.HasSuffix(upper, suffix) && len(upper) > len(suffix) {
			return strings.TrimSuffix(upper, suffix)
		}
	}
	return upper
}
