package database

import (
	"context"
	"math"
	"time"

	"crypto-flow-radar/internal/models"

	"github.com/rs/zerolog"
)

// SinkConfig tunes the persistence filter and write behavior
type SinkConfig struct {
	WriteTimeout time.Duration

	// Worth-persisting criteria for volume alerts. An alert is written
	// when at least two of the three are met.
	MinNotionalUSD    float64 // current volume * price
	MinPriceMovePct   float64 // absolute close-over-open move
	MinMultiplier     float64 // volume over baseline
	MinLiquidationUSD float64 // floor for raw liquidation rows
}

// DefaultSinkConfig returns the reference tuning
func DefaultSinkConfig() *SinkConfig {
	return &SinkConfig{
		WriteTimeout:      3 * time.Second,
		MinNotionalUSD:    500000,
		MinPriceMovePct:   2.0,
		MinMultiplier:     4.0,
		MinLiquidationUSD: 50000,
	}
}

// Sink writes engine output to Postgres without ever blocking the hot
// path. Writes are fire-and-forget with a timeout; failures are logged
// and dropped.
type Sink struct {
	repo   *Repository
	config *SinkConfig
	logger zerolog.Logger
}

// NewSink creates a persistence sink around a repository
func NewSink(repo *Repository, config *SinkConfig, logger zerolog.Logger) *Sink {
	if config == nil {
		config = DefaultSinkConfig()
	}
	return &Sink{
		repo:   repo,
		config: config,
		logger: logger.With().Str("component", "db_sink").Logger(),
	}
}

// WorthPersisting reports whether an alert clears at least two of the
// notional, volatility and multiplier criteria. Most alerts are noise
// at storage timescales; only confluent ones earn a row.
func (s *Sink) WorthPersisting(alert *models.VolumeAlert) bool {
	met := 0
	if alert.Current*alert.Price >= s.config.MinNotionalUSD {
		met++
	}
	if math.Abs(alert.PriceMovementPct) >= s.config.MinPriceMovePct {
		met++
	}
	if alert.Multiplier >= s.config.MinMultiplier {
		met++
	}
	return met >= 2
}

// StoreAlert persists a volume alert asynchronously if it passes the
// worth-persisting filter
func (s *Sink) StoreAlert(alert *models.VolumeAlert) {
	if s.repo == nil || !s.WorthPersisting(alert) {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
		defer cancel()
		if err := s.repo.SaveAlert(ctx, alert); err != nil {
			s.logger.Warn().Err(err).Str("alert_id", alert.ID).Msg("alert write failed")
		}
	}()
}

// StoreSignal persists a pattern signal asynchronously. Signals are
// rare enough that all of them are kept.
func (s *Sink) StoreSignal(signal *models.PatternSignal) {
	if s.repo == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
		defer cancel()
		if err := s.repo.SaveSignal(ctx, signal); err != nil {
			s.logger.Warn().Err(err).Str("signal_id", signal.ID).Msg("signal write failed")
		}
	}()
}

// StoreLiquidation persists a liquidation event asynchronously when it
// clears the dollar floor
func (s *Sink) StoreLiquidation(event *models.LiquidationEvent, tier models.MarketCapTier) {
	if s.repo == nil || event.AmountUSD < s.config.MinLiquidationUSD {
		return
	}
	ev := *event
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
		defer cancel()
		if err := s.repo.SaveLiquidation(ctx, &ev, tier); err != nil {
			s.logger.Warn().Err(err).Str("ticker", ev.Ticker).Msg("liquidation write failed")
		}
	}()
}

// RecentAlerts reads back the newest stored alerts for startup warmup
func (s *Sink) RecentAlerts(ctx context.Context, limit int) ([]*models.VolumeAlert, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.RecentAlerts(ctx, limit)
}

// RecentSignals reads back the newest stored signals for startup warmup
func (s *Sink) RecentSignals(ctx context.Context, limit int) ([]*models.PatternSignal, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.RecentSignals(ctx, limit)
}
