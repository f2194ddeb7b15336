package database

import (
	"context"

	"crypto-flow-radar/internal/models"
)

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// ============================================================================
// VOLUME ALERTS
// ============================================================================

// SaveAlert inserts a volume anomaly alert
func (r *Repository) SaveAlert(ctx context.Context, alert *models.VolumeAlert) error {
	query := `
		INSERT INTO volume_alerts (id, symbol, asset, timeframe, market_type, side, baseline,
		       current_volume, multiplier, price_movement_pct, price, strength, trade_count,
		       alert_time, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.Pool.Exec(
		ctx, query,
		alert.ID, alert.Symbol, alert.Asset, alert.Timeframe, alert.MarketType, alert.Side,
		alert.Baseline, alert.Current, alert.Multiplier, alert.PriceMovementPct, alert.Price,
		alert.Strength, alert.TradeCount, alert.Timestamp, alert.ExpiresAt,
	)
	return err
}

// RecentAlerts retrieves the most recent alerts, newest first
func (r *Repository) RecentAlerts(ctx context.Context, limit int) ([]*models.VolumeAlert, error) {
	query := `
		SELECT id, symbol, asset, timeframe, market_type, side, baseline, current_volume,
		       multiplier, price_movement_pct, price, strength, trade_count, alert_time, expires_at
		FROM volume_alerts
		ORDER BY alert_time DESC
		LIMIT $1
	`
	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*models.VolumeAlert
	for rows.Next() {
		alert := &models.VolumeAlert{}
		err := rows.Scan(
			&alert.ID, &alert.Symbol, &alert.Asset, &alert.Timeframe, &alert.MarketType,
			&alert.Side, &alert.Baseline, &alert.Current, &alert.Multiplier,
			&alert.PriceMovementPct, &alert.Price, &alert.Strength, &alert.TradeCount,
			&alert.Timestamp, &alert.ExpiresAt,
		)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// ============================================================================
// LIQUIDATION EVENTS
// ============================================================================

// SaveLiquidation inserts a filtered liquidation event
func (r *Repository) SaveLiquidation(ctx context.Context, event *models.LiquidationEvent, tier models.MarketCapTier) error {
	query := `
		INSERT INTO liquidation_events (ticker, asset, side, amount_usd, price, tier, event_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Pool.Exec(
		ctx, query,
		event.Ticker, models.AssetFromTicker(event.Ticker), event.Side,
		event.AmountUSD, event.Price, tier, event.Timestamp,
	)
	return err
}

// ============================================================================
// PATTERN SIGNALS
// ============================================================================

// SaveSignal inserts a classified pattern signal
func (r *Repository) SaveSignal(ctx context.Context, signal *models.PatternSignal) error {
	query := `
		INSERT INTO pattern_signals (id, asset, pattern_type, description, confidence, severity,
		       long_volume, short_volume, dominant_side, volume_ratio, intensity, signal_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.Pool.Exec(
		ctx, query,
		signal.ID, signal.Asset, signal.PatternType, signal.Description, signal.Confidence,
		signal.Severity, signal.Metrics.LongVolume, signal.Metrics.ShortVolume,
		signal.Metrics.DominantSide, signal.Metrics.VolumeRatio, signal.Metrics.Intensity,
		signal.Timestamp,
	)
	return err
}

// RecentSignals retrieves the most recent pattern signals, newest first
func (r *Repository) RecentSignals(ctx context.Context, limit int) ([]*models.PatternSignal, error) {
	query := `
		SELECT id, asset, pattern_type, description, confidence, severity, long_volume,
		       short_volume, dominant_side, volume_ratio, intensity, signal_time
		FROM pattern_signals
		ORDER BY signal_time DESC
		LIMIT $1
	`
	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []*models.PatternSignal
	for rows.Next() {
		signal := &models.PatternSignal{}
		err := rows.Scan(
			&signal.ID, &signal.Asset, &signal.PatternType, &signal.Description,
			&signal.Confidence, &signal.Severity, &signal.Metrics.LongVolume,
			&signal.Metrics.ShortVolume, &signal.Metrics.DominantSide,
			&signal.Metrics.VolumeRatio, &signal.Metrics.Intensity, &signal.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		signals = append(signals, signal)
	}
	return signals, rows.Err()
}
