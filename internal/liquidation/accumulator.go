// Package liquidation accumulates forced-liquidation events per asset
// and side, and exposes unified read-only views over both sides.
package liquidation

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"crypto-flow-radar/internal/models"
	"crypto-flow-radar/internal/ringbuf"
)

// Errors returned by ingestion validation
var (
	ErrInvalidSide   = errors.New("liquidation side must be long or short")
	ErrInvalidAmount = errors.New("liquidation amount must be a positive finite number")
	ErrEmptyTicker   = errors.New("liquidation ticker is empty")
)

// Config holds accumulator tuning
type Config struct {
	HistoryCap      int           // bounded per-asset fill history
	TopAssetsCap    int           // hard cap on TopAssets results
	StalenessWindow time.Duration // assets idle longer than this are swept
}

// DefaultConfig returns the reference tuning
func DefaultConfig() *Config {
	return &Config{
		HistoryCap:      20,
		TopAssetsCap:    50,
		StalenessWindow: 20 * time.Minute,
	}
}

// assetState is the mutable accumulator entry; the bounded history lives
// in a ring buffer and is materialized only on snapshot
type assetState struct {
	data    models.SideLiquidationAsset
	history *ringbuf.Buffer[models.LiquidationFill]
}

func (s *assetState) snapshot() models.SideLiquidationAsset {
	out := s.data
	out.History = s.history.All()
	return out
}

// Accumulator holds the per-asset state for exactly one side. Long and
// short events never share an accumulator; they are merged only in the
// read-only unified view.
type Accumulator struct {
	mu     sync.RWMutex
	side   models.Side
	config *Config
	assets map[string]*assetState
}

// NewAccumulator creates an accumulator for one side
func NewAccumulator(side models.Side, config *Config) *Accumulator {
	if config == nil {
		config = DefaultConfig()
	}
	return &Accumulator{
		side:   side,
		config: config,
		assets: make(map[string]*assetState),
	}
}

// Side returns which side this accumulator owns
func (a *Accumulator) Side() models.Side {
	return a.side
}

// Ingest folds one event of this accumulator's side into the asset state,
// creating the entry on first sight. Events for the other side are a
// programming error and are rejected.
func (a *Accumulator) Ingest(event models.LiquidationEvent, tier models.MarketCapTier) error {
	if event.Side != a.side {
		return ErrInvalidSide
	}
	if err := validate(event); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	asset := models.AssetFromTicker(event.Ticker)
	state, exists := a.assets[asset]
	if !exists {
		state = &assetState{
			data: models.SideLiquidationAsset{
				Asset:              asset,
				Ticker:             event.Ticker,
				Side:               a.side,
				Tier:               tier,
				FirstDetectionTime: event.Timestamp,
			},
			history: ringbuf.New[models.LiquidationFill](a.config.HistoryCap),
		}
		a.assets[asset] = state
	}

	state.data.Price = event.Price
	state.data.Tier = tier
	state.data.PositionCount++
	state.data.LiquidatedTotal += event.AmountUSD
	state.data.LastUpdateTime = event.Timestamp
	if score := intensityScore(event.AmountUSD); score > state.data.Intensity {
		state.data.Intensity = score
	}
	state.history.Append(models.LiquidationFill{
		Side:      event.Side,
		Amount:    event.AmountUSD,
		Timestamp: event.Timestamp,
	})
	return nil
}

// Get returns a snapshot of one asset's state
func (a *Accumulator) Get(asset string) (models.SideLiquidationAsset, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	state, exists := a.assets[asset]
	if !exists {
		return models.SideLiquidationAsset{}, false
	}
	return state.snapshot(), true
}

// All returns snapshots of every tracked asset, unordered
func (a *Accumulator) All() []models.SideLiquidationAsset {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]models.SideLiquidationAsset, 0, len(a.assets))
	for _, state := range a.assets {
		out = append(out, state.snapshot())
	}
	return out
}

// Top returns the largest assets by liquidated total, descending,
// limited to the smaller of limit and the configured cap
func (a *Accumulator) Top(limit int) []models.SideLiquidationAsset {
	if limit <= 0 || limit > a.config.TopAssetsCap {
		limit = a.config.TopAssetsCap
	}
	out := a.All()
	sort.Slice(out, func(i, j int) bool {
		return out[i].LiquidatedTotal > out[j].LiquidatedTotal
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Sweep removes assets idle longer than the staleness window and
// returns how many were dropped. Each side sweeps independently.
func (a *Accumulator) Sweep(now time.Time) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	removed := 0
	for asset, state := range a.assets {
		if now.Sub(state.data.LastUpdateTime) > a.config.StalenessWindow {
			delete(a.assets, asset)
			removed++
		}
	}
	return removed
}

// Size returns the number of tracked assets
func (a *Accumulator) Size() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.assets)
}

func validate(event models.LiquidationEvent) error {
	if event.Ticker == "" {
		return ErrEmptyTicker
	}
	if event.AmountUSD <= 0 || math.IsNaN(event.AmountUSD) || math.IsInf(event.AmountUSD, 0) {
		return ErrInvalidAmount
	}
	return nil
}

// intensityScore maps a liquidation amount onto 1..5; monotonic in the
// amount, saturating at $300K
func intensityScore(amountUSD float64) int {
	raw := int(amountUSD / 30000)
	if raw > 10 {
		raw = 10
	}
	return 1 + raw*4/10
}
