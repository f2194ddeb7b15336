package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log.Printf("Successfully connected to PostgreSQL database: %s", cfg.Database)

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Println("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	log.Println("Running database migrations...")

	migrations := []string{
		// Volume anomaly alerts
		`CREATE TABLE IF NOT EXISTS volume_alerts (
			id UUID PRIMARY KEY,
			symbol VARCHAR(30) NOT NULL,
			asset VARCHAR(20) NOT NULL,
			timeframe VARCHAR(5) NOT NULL,
			market_type VARCHAR(10) NOT NULL,
			side VARCHAR(10) NOT NULL,
			baseline DECIMAL(30, 8) NOT NULL,
			current_volume DECIMAL(30, 8) NOT NULL,
			multiplier DECIMAL(12, 4) NOT NULL,
			price_movement_pct DECIMAL(10, 4) NOT NULL,
			price DECIMAL(20, 8) NOT NULL,
			strength SMALLINT NOT NULL,
			trade_count BIGINT NOT NULL,
			alert_time TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_volume_alerts_symbol ON volume_alerts(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_volume_alerts_alert_time ON volume_alerts(alert_time DESC)`,

		// Raw liquidation events that passed the inbound filter
		`CREATE TABLE IF NOT EXISTS liquidation_events (
			id BIGSERIAL PRIMARY KEY,
			ticker VARCHAR(30) NOT NULL,
			asset VARCHAR(20) NOT NULL,
			side VARCHAR(10) NOT NULL,
			amount_usd DECIMAL(30, 8) NOT NULL,
			price DECIMAL(20, 8) NOT NULL,
			tier VARCHAR(10) NOT NULL,
			event_time TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_liquidation_events_asset ON liquidation_events(asset)`,
		`CREATE INDEX IF NOT EXISTS idx_liquidation_events_event_time ON liquidation_events(event_time DESC)`,

		// Classified pattern signals
		`CREATE TABLE IF NOT EXISTS pattern_signals (
			id UUID PRIMARY KEY,
			asset VARCHAR(20) NOT NULL,
			pattern_type VARCHAR(10) NOT NULL,
			description TEXT,
			confidence DECIMAL(5, 2) NOT NULL,
			severity VARCHAR(10) NOT NULL,
			long_volume DECIMAL(30, 8) NOT NULL,
			short_volume DECIMAL(30, 8) NOT NULL,
			dominant_side VARCHAR(10) NOT NULL,
			volume_ratio DECIMAL(10, 4) NOT NULL,
			intensity SMALLINT NOT NULL,
			signal_time TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pattern_signals_asset ON pattern_signals(asset)`,
		`CREATE INDEX IF NOT EXISTS idx_pattern_signals_type ON pattern_signals(pattern_type)`,
		`CREATE INDEX IF NOT EXISTS idx_pattern_signals_signal_time ON pattern_signals(signal_time DESC)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// HealthCheck performs a database health check
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
