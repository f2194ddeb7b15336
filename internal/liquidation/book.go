package liquidation

import (
	"sort"
	"time"

	"crypto-flow-radar/internal/models"
)

// TierResolver classifies a ticker by market capitalization. Resolvers
// must be non-blocking best-effort; the cached implementation in
// internal/marketcap falls back to a static table on lookup failure.
type TierResolver interface {
	Tier(ticker string) models.MarketCapTier
}

// FilterConfig holds the tiered inbound minimum-amount filter. Large-cap
// assets need a higher floor to count as signal rather than noise.
type FilterConfig struct {
	MinAmountHighCap float64
	MinAmountDefault float64
}

// DefaultFilterConfig returns the reference floors
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		MinAmountHighCap: 20000,
		MinAmountDefault: 6000,
	}
}

// Book owns the long and short accumulators for the whole market and
// produces the unified per-asset join consumed by the classifier.
type Book struct {
	long     *Accumulator
	short    *Accumulator
	resolver TierResolver
	filter   *FilterConfig
}

// NewBook creates a liquidation book
func NewBook(config *Config, filter *FilterConfig, resolver TierResolver) *Book {
	if filter == nil {
		filter = DefaultFilterConfig()
	}
	return &Book{
		long:     NewAccumulator(models.SideLong, config),
		short:    NewAccumulator(models.SideShort, config),
		resolver: resolver,
		filter:   filter,
	}
}

// Ingest applies the tiered amount floor and routes the event to its
// side's accumulator. Below-floor events are dropped silently: not
// counted and not an error. Returns whether the event was accumulated.
func (b *Book) Ingest(event models.LiquidationEvent) (bool, error) {
	tier := models.TierLow
	if b.resolver != nil {
		tier = b.resolver.Tier(event.Ticker)
	}

	floor := b.filter.MinAmountDefault
	if tier == models.TierHigh {
		floor = b.filter.MinAmountHighCap
	}
	if event.AmountUSD < floor {
		return false, nil
	}

	switch event.Side {
	case models.SideLong:
		return true, b.long.Ingest(event, tier)
	case models.SideShort:
		return true, b.short.Ingest(event, tier)
	default:
		return false, ErrInvalidSide
	}
}

// Long returns the long-side accumulator
func (b *Book) Long() *Accumulator { return b.long }

// Short returns the short-side accumulator
func (b *Book) Short() *Accumulator { return b.short }

// TopAssets returns the largest assets for one side, descending by
// liquidated total
func (b *Book) TopAssets(side models.Side, limit int) []models.SideLiquidationAsset {
	if side == models.SideLong {
		return b.long.Top(limit)
	}
	return b.short.Top(limit)
}

// UnifiedAsset joins the long and short state for one asset. Present if
// the asset appears on either side.
func (b *Book) UnifiedAsset(asset string) (models.UnifiedAsset, bool) {
	longState, hasLong := b.long.Get(asset)
	shortState, hasShort := b.short.Get(asset)
	if !hasLong && !hasShort {
		return models.UnifiedAsset{}, false
	}
	return unify(asset, longState, shortState), true
}

// UnifiedView joins both sides for every tracked asset. Recomputed on
// demand; never authoritative state.
func (b *Book) UnifiedView() []models.UnifiedAsset {
	seen := make(map[string]bool)
	var out []models.UnifiedAsset

	for _, s := range b.long.All() {
		seen[s.Asset] = true
	}
	for _, s := range b.short.All() {
		seen[s.Asset] = true
	}
	for asset := range seen {
		if u, ok := b.UnifiedAsset(asset); ok {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CombinedTotal > out[j].CombinedTotal
	})
	return out
}

// Sweep removes stale assets from both sides independently and returns
// the per-side removal counts.
func (b *Book) Sweep(now time.Time) (longRemoved, shortRemoved int) {
	return b.long.Sweep(now), b.short.Sweep(now)
}

func unify(asset string, long, short models.SideLiquidationAsset) models.UnifiedAsset {
	u := models.UnifiedAsset{
		Asset:           asset,
		Ticker:          long.Ticker,
		Price:           long.Price,
		Tier:            long.Tier,
		LongPositions:   long.PositionCount,
		LongLiquidated:  long.LiquidatedTotal,
		ShortPositions:  short.PositionCount,
		ShortLiquidated: short.LiquidatedTotal,
		Intensity:       long.Intensity,
		LastUpdateTime:  long.LastUpdateTime,
	}
	if u.Ticker == "" {
		u.Ticker = short.Ticker
		u.Price = short.Price
		u.Tier = short.Tier
	}
	if short.Intensity > u.Intensity {
		u.Intensity = short.Intensity
	}
	if short.LastUpdateTime.After(u.LastUpdateTime) {
		u.LastUpdateTime = short.LastUpdateTime
	}
	u.TotalPositions = u.LongPositions + u.ShortPositions
	u.CombinedTotal = u.LongLiquidated + u.ShortLiquidated
	if u.LongLiquidated > u.ShortLiquidated {
		u.DominantSide = models.SideLong
	} else {
		u.DominantSide = models.SideShort
	}
	return u
}
