// Package marketcap resolves exchange tickers to market-cap tiers.
// Lookups never block: the service serves from an in-memory table that
// a background refresh keeps current, write-through to Redis so a
// restart can warm up before the first provider call succeeds.
package marketcap

import (
	"context"
	"sync"
	"time"

	"crypto-flow-radar/internal/cache"
	"crypto-flow-radar/internal/models"

	"github.com/rs/zerolog"
)

// Provider supplies market-cap ranks by asset, e.g. {"BTC": 1, "ETH": 2}.
// Implementations may hit the network; the service calls them only from
// its background refresh loop.
type Provider interface {
	Ranks(ctx context.Context) (map[string]int, error)
}

// Config tunes the tier mapping and refresh cadence
type Config struct {
	RefreshInterval time.Duration
	CacheTTL        time.Duration
	HighCapMaxRank  int
	MidCapMaxRank   int
}

// DefaultConfig returns the reference tuning
func DefaultConfig() *Config {
	return &Config{
		RefreshInterval: 30 * time.Minute,
		CacheTTL:        30 * time.Minute,
		HighCapMaxRank:  20,
		MidCapMaxRank:   100,
	}
}

// staticTiers is the last-resort fallback when neither the provider nor
// Redis has answered yet. Deliberately small; anything absent is low cap.
var staticTiers = map[string]models.MarketCapTier{
	"BTC":  models.TierHigh,
	"ETH":  models.TierHigh,
	"BNB":  models.TierHigh,
	"SOL":  models.TierHigh,
	"XRP":  models.TierHigh,
	"ADA":  models.TierHigh,
	"DOGE": models.TierHigh,
	"AVAX": models.TierMid,
	"DOT":  models.TierMid,
	"LINK": models.TierMid,
	"TON":  models.TierMid,
	"TRX":  models.TierMid,
	"LTC":  models.TierMid,
	"NEAR": models.TierMid,
	"UNI":  models.TierMid,
	"ATOM": models.TierMid,
}

// Service is the tier lookup used by the liquidation book's inbound filter
type Service struct {
	config   *Config
	provider Provider
	cache    *cache.CacheService
	logger   zerolog.Logger

	mu    sync.RWMutex
	tiers map[string]models.MarketCapTier
}

// NewService creates a tier service. Both provider and cache may be nil;
// the service then answers from the static table alone.
func NewService(config *Config, provider Provider, cacheService *cache.CacheService, logger zerolog.Logger) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	return &Service{
		config:   config,
		provider: provider,
		cache:    cacheService,
		logger:   logger.With().Str("component", "marketcap").Logger(),
		tiers:    make(map[string]models.MarketCapTier),
	}
}

// Tier resolves a ticker to its market-cap tier. Never blocks and never
// errors; unknown assets are low cap.
func (s *Service) Tier(ticker string) models.MarketCapTier {
	asset := models.AssetFromTicker(ticker)

	s.mu.RLock()
	tier, ok := s.tiers[asset]
	s.mu.RUnlock()
	if ok {
		return tier
	}

	if tier, ok := staticTiers[asset]; ok {
		return tier
	}
	return models.TierLow
}

// Refresh pulls fresh ranks from the provider, rebuilds the in-memory
// table and writes the tiers through to Redis.
func (s *Service) Refresh(ctx context.Context) error {
	if s.provider == nil {
		return nil
	}

	ranks, err := s.provider.Ranks(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("market-cap refresh failed, keeping previous tiers")
		return err
	}

	fresh := make(map[string]models.MarketCapTier, len(ranks))
	for asset, rank := range ranks {
		fresh[asset] = s.tierForRank(rank)
	}

	s.mu.Lock()
	s.tiers = fresh
	s.mu.Unlock()

	if s.cache != nil && s.cache.IsHealthy() {
		for asset, tier := range fresh {
			if err := s.cache.Set(ctx, cache.TierKey(asset), string(tier), s.config.CacheTTL); err != nil {
				s.logger.Debug().Err(err).Str("asset", asset).Msg("tier cache write failed")
				break
			}
		}
	}

	s.logger.Info().Int("assets", len(fresh)).Msg("market-cap tiers refreshed")
	return nil
}

// WarmFromCache loads any tiers Redis still holds from a previous run.
// Best effort; silent on miss.
func (s *Service) WarmFromCache(ctx context.Context, assets []string) {
	if s.cache == nil || !s.cache.IsHealthy() {
		return
	}

	warmed := 0
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, asset := range assets {
		val, err := s.cache.Get(ctx, cache.TierKey(asset))
		if err != nil {
			continue
		}
		s.tiers[asset] = models.MarketCapTier(val)
		warmed++
	}
	if warmed > 0 {
		s.logger.Info().Int("assets", warmed).Msg("market-cap tiers warmed from cache")
	}
}

// Run refreshes immediately and then on the configured interval until
// the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	_ = s.Refresh(ctx)

	ticker := time.NewTicker(s.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.Refresh(ctx)
		}
	}
}

func (s *Service) tierForRank(rank int) models.MarketCapTier {
	switch {
	case rank <= s.config.HighCapMaxRank:
		return models.TierHigh
	case rank <= s.config.MidCapMaxRank:
		return models.TierMid
	default:
		return models.TierLow
	}
}
