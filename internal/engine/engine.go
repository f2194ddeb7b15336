// Package engine wires the pipeline together: candles flow through the
// aggregator into the baseline tracker and anomaly detector, liquidation
// events flow into the book, and a periodic pass classifies the book's
// per-asset history into pattern signals. All state mutation happens on
// one goroutine; snapshots are served from behind a read lock.
package engine

import (
	"context"
	"sync"
	"time"

	"crypto-flow-radar/internal/aggregator"
	"crypto-flow-radar/internal/ai/llm"
	"crypto-flow-radar/internal/anomaly"
	"crypto-flow-radar/internal/baseline"
	"crypto-flow-radar/internal/cache"
	"crypto-flow-radar/internal/database"
	"crypto-flow-radar/internal/events"
	"crypto-flow-radar/internal/liquidation"
	"crypto-flow-radar/internal/logging"
	"crypto-flow-radar/internal/models"
	"crypto-flow-radar/internal/patterns"
	"crypto-flow-radar/internal/ringbuf"
	"crypto-flow-radar/internal/throttle"
)

// Config tunes the engine's buffers and cadences
type Config struct {
	CandleBuffer      int
	LiquidationBuffer int
	ClassifyInterval  time.Duration
	SweepInterval     time.Duration
	BaselineMaxAge    time.Duration
	SnapshotHistory   int // per-asset unified snapshots kept for classification
	MaxStoredAlerts   int
	MaxStoredSignals  int
	BackfillLimit     int
}

// DefaultConfig returns the reference tuning
func DefaultConfig() *Config {
	return &Config{
		CandleBuffer:      512,
		LiquidationBuffer: 1024,
		ClassifyInterval:  10 * time.Second,
		SweepInterval:     time.Minute,
		BaselineMaxAge:    24 * time.Hour,
		SnapshotHistory:   12,
		MaxStoredAlerts:   200,
		MaxStoredSignals:  200,
		BackfillLimit:     50,
	}
}

// Deps holds the engine's collaborators. Sink, bus, analyzer and cache
// are optional; the engine runs degraded without them.
type Deps struct {
	Aggregator *aggregator.Aggregator
	Baselines  *baseline.Tracker
	Detector   *anomaly.Detector
	Book       *liquidation.Book
	Classifier *patterns.Classifier
	Throttle   *throttle.Throttle
	Resolver   liquidation.TierResolver
	Sink       *database.Sink
	Bus        *events.EventBus
	Analyzer   *llm.Analyzer
	Cache      *cache.CacheService
}

// Status is the engine's health snapshot for the API
type Status struct {
	Running         bool      `json:"running"`
	HasData         bool      `json:"has_data"`
	Analyzing       bool      `json:"analyzing"`
	LastError       string    `json:"last_error,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	ActiveAssets    int       `json:"active_assets"`
	BaselineKeys    int       `json:"baseline_keys"`
	AlertsHeld      int       `json:"alerts_held"`
	SignalsHeld     int       `json:"signals_held"`
	ThrottlePassed  int64     `json:"throttle_passed"`
	ThrottleBlocked int64     `json:"throttle_blocked"`
}

// Engine is the single-goroutine pipeline core
type Engine struct {
	config *Config
	deps   Deps
	logger *logging.Logger

	candleCh   chan models.Candle
	liqCh      chan models.LiquidationEvent
	reviewedCh chan models.PatternSignal

	mu        sync.RWMutex
	running   bool
	hasData   bool
	analyzing bool
	lastError error
	startedAt time.Time
	alerts    []models.VolumeAlert   // newest first
	signals   []models.PatternSignal // newest first
	histories map[string]*ringbuf.Buffer[models.UnifiedAsset]
}

// New creates an engine around its collaborators
func New(config *Config, deps Deps, logger *logging.Logger) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	e := &Engine{
		config:     config,
		deps:       deps,
		logger:     logger.WithComponent("engine"),
		candleCh:   make(chan models.Candle, config.CandleBuffer),
		liqCh:      make(chan models.LiquidationEvent, config.LiquidationBuffer),
		reviewedCh: make(chan models.PatternSignal, 16),
		histories:  make(map[string]*ringbuf.Buffer[models.UnifiedAsset]),
	}
	// The aggregator fans every base and synthesized candle back here
	deps.Aggregator.OnCandle(e.handleCandle)
	return e
}

// OnCandle enqueues a closed base candle from a feed. Never blocks; a
// full buffer drops the candle.
func (e *Engine) OnCandle(candle models.Candle) {
	select {
	case e.candleCh <- candle:
	default:
		e.logger.Warn("candle buffer full, dropping", "symbol", candle.Symbol)
	}
}

// OnLiquidation enqueues a liquidation event from the feed
func (e *Engine) OnLiquidation(event models.LiquidationEvent) {
	select {
	case e.liqCh <- event:
	default:
		e.logger.Warn("liquidation buffer full, dropping", "ticker", event.Ticker)
	}
}

// Run processes events until the context is cancelled
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	e.running = true
	e.startedAt = time.Now()
	e.mu.Unlock()

	e.backfill(ctx)

	if e.deps.Bus != nil {
		e.deps.Bus.Publish(events.Event{Type: events.EventEngineStarted})
	}
	e.logger.Info("engine started")

	classifyTicker := time.NewTicker(e.config.ClassifyInterval)
	sweepTicker := time.NewTicker(e.config.SweepInterval)
	defer classifyTicker.Stop()
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.mu.Lock()
			e.running = false
			e.mu.Unlock()
			if e.deps.Bus != nil {
				e.deps.Bus.Publish(events.Event{Type: events.EventEngineStopped})
			}
			e.logger.Info("engine stopped")
			return
		case candle := <-e.candleCh:
			e.deps.Aggregator.OnClosedCandle(candle)
		case event := <-e.liqCh:
			e.handleLiquidation(event)
		case signal := <-e.reviewedCh:
			e.setAnalyzing(false)
			e.publishSignal(signal)
		case <-classifyTicker.C:
			e.classifyAll(time.Now())
		case <-sweepTicker.C:
			e.sweep(time.Now())
		}
	}
}

// backfill warms the in-memory alert and signal windows from storage
func (e *Engine) backfill(ctx context.Context) {
	if e.deps.Sink == nil {
		return
	}
	readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if alerts, err := e.deps.Sink.RecentAlerts(readCtx, e.config.BackfillLimit); err == nil {
		e.mu.Lock()
		for _, a := range alerts {
			e.alerts = append(e.alerts, *a)
		}
		e.mu.Unlock()
		if len(alerts) > 0 {
			e.logger.Info("alerts backfilled", "count", len(alerts))
		}
	} else {
		e.recordError(err)
	}

	if signals, err := e.deps.Sink.RecentSignals(readCtx, e.config.BackfillLimit); err == nil {
		e.mu.Lock()
		for _, s := range signals {
			e.signals = append(e.signals, *s)
		}
		e.mu.Unlock()
		if len(signals) > 0 {
			e.logger.Info("signals backfilled", "count", len(signals))
		}
	} else {
		e.recordError(err)
	}
}

// handleCandle receives every closed candle the aggregator emits, base
// and synthesized alike. Detection runs against the baseline as it was
// before this candle so a spike cannot inflate its own reference.
func (e *Engine) handleCandle(candle models.Candle) {
	now := time.Now()

	alert := e.deps.Detector.Detect(candle, now)
	e.deps.Baselines.Update(candle.Symbol, candle.Timeframe, candle.Volume, now)

	e.mu.Lock()
	e.hasData = true
	e.mu.Unlock()

	if alert == nil {
		return
	}

	e.mu.Lock()
	e.alerts = append([]models.VolumeAlert{*alert}, e.alerts...)
	if len(e.alerts) > e.config.MaxStoredAlerts {
		e.alerts = e.alerts[:e.config.MaxStoredAlerts]
	}
	e.mu.Unlock()

	e.logger.Info("volume alert",
		"symbol", alert.Symbol, "timeframe", string(alert.Timeframe),
		"multiplier", alert.Multiplier, "strength", alert.Strength)

	if e.deps.Sink != nil {
		e.deps.Sink.StoreAlert(alert)
	}
	if e.deps.Bus != nil {
		e.deps.Bus.PublishVolumeAlert(alert.ID, alert.Symbol, string(alert.Timeframe),
			string(alert.Side), alert.Multiplier, alert.Strength)
	}
	if e.deps.Cache != nil {
		go func(dateKey string) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_, _ = e.deps.Cache.IncrementDailyAlertCount(ctx, dateKey)
		}(now.UTC().Format("2006-01-02"))
	}
}

func (e *Engine) handleLiquidation(event models.LiquidationEvent) {
	ingested, err := e.deps.Book.Ingest(event)
	if err != nil {
		e.recordError(err)
		e.logger.Warn("liquidation rejected", "ticker", event.Ticker, "error", err)
		return
	}
	if !ingested {
		return
	}

	e.mu.Lock()
	e.hasData = true
	e.mu.Unlock()

	asset := models.AssetFromTicker(event.Ticker)
	if e.deps.Sink != nil {
		tier := models.TierLow
		if e.deps.Resolver != nil {
			tier = e.deps.Resolver.Tier(event.Ticker)
		}
		e.deps.Sink.StoreLiquidation(&event, tier)
	}
	if e.deps.Bus != nil {
		combined := 0.0
		if u, ok := e.deps.Book.UnifiedAsset(asset); ok {
			combined = u.CombinedTotal
		}
		e.deps.Bus.PublishLiquidationUpdate(asset, string(event.Side), event.AmountUSD, combined)
	}
}

// classifyAll snapshots every tracked asset into its history window and
// runs the pattern rules over it.
func (e *Engine) classifyAll(now time.Time) {
	view := e.deps.Book.UnifiedView()
	for _, unified := range view {
		history := e.historyFor(unified.Asset)
		history.Append(unified)

		for _, signal := range e.deps.Classifier.Classify(history.All(), now) {
			// Stamp the cooldown at selection so the next tick cannot
			// re-emit while a review is in flight
			e.deps.Throttle.Record(signal.Asset, string(signal.PatternType), now)

			if e.deps.Analyzer != nil && e.deps.Analyzer.ShouldReview(signal) {
				e.setAnalyzing(true)
				go e.reviewSignal(signal, history.All())
				continue
			}
			e.publishSignal(signal)
		}
	}

	if e.deps.Cache != nil && len(view) > 0 {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = e.deps.Cache.SetJSON(ctx, cache.UnifiedViewKey(), view, cache.DefaultSnapshotTTL)
		}()
	}
}

// reviewSignal runs off the engine goroutine and feeds the verdict back
// through reviewedCh
func (e *Engine) reviewSignal(signal models.PatternSignal, history []models.UnifiedAsset) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	assessment := e.deps.Analyzer.Review(ctx, signal, history)
	if !assessment.Confirmed {
		e.logger.Info("signal rejected by reviewer", "signal_id", signal.ID, "reason", assessment.Reasoning)
		e.setAnalyzing(false)
		return
	}
	signal.Confidence = assessment.Confidence
	e.reviewedCh <- signal
}

func (e *Engine) publishSignal(signal models.PatternSignal) {
	e.mu.Lock()
	e.signals = append([]models.PatternSignal{signal}, e.signals...)
	if len(e.signals) > e.config.MaxStoredSignals {
		e.signals = e.signals[:e.config.MaxStoredSignals]
	}
	e.mu.Unlock()

	e.logger.Info("pattern signal",
		"asset", signal.Asset, "pattern", string(signal.PatternType),
		"severity", string(signal.Severity), "confidence", signal.Confidence)

	if e.deps.Sink != nil {
		e.deps.Sink.StoreSignal(&signal)
	}
	if e.deps.Bus != nil {
		e.deps.Bus.PublishPatternSignal(signal.ID, signal.Asset,
			string(signal.PatternType), string(signal.Severity), signal.Confidence)
	}
}

// sweep evicts stale baselines, stale book assets, expired alerts and
// orphaned history windows.
func (e *Engine) sweep(now time.Time) {
	removed := e.deps.Baselines.Sweep(now, e.config.BaselineMaxAge)
	longRemoved, shortRemoved := e.deps.Book.Sweep(now)
	if removed+longRemoved+shortRemoved > 0 {
		e.logger.Debug("sweep",
			"baselines", removed, "long_assets", longRemoved, "short_assets", shortRemoved)
	}

	live := make(map[string]bool)
	for _, u := range e.deps.Book.UnifiedView() {
		live[u.Asset] = true
	}

	e.mu.Lock()
	for asset := range e.histories {
		if !live[asset] {
			delete(e.histories, asset)
		}
	}
	kept := e.alerts[:0]
	for _, a := range e.alerts {
		if !a.Expired(now) {
			kept = append(kept, a)
		}
	}
	e.alerts = kept
	e.mu.Unlock()
}

func (e *Engine) historyFor(asset string) *ringbuf.Buffer[models.UnifiedAsset] {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.histories[asset]
	if !ok {
		h = ringbuf.New[models.UnifiedAsset](e.config.SnapshotHistory)
		e.histories[asset] = h
	}
	return h
}

func (e *Engine) setAnalyzing(v bool) {
	e.mu.Lock()
	e.analyzing = v
	e.mu.Unlock()
}

func (e *Engine) recordError(err error) {
	e.mu.Lock()
	e.lastError = err
	e.mu.Unlock()

	if e.deps.Bus != nil {
		e.deps.Bus.PublishError("engine", "pipeline error", err)
	}
}

// Alerts returns the retained alerts, newest first
func (e *Engine) Alerts() []models.VolumeAlert {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.VolumeAlert, len(e.alerts))
	copy(out, e.alerts)
	return out
}

// Signals returns the retained pattern signals, newest first
func (e *Engine) Signals() []models.PatternSignal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.PatternSignal, len(e.signals))
	copy(out, e.signals)
	return out
}

// UnifiedView returns the current liquidation join, largest first
func (e *Engine) UnifiedView() []models.UnifiedAsset {
	return e.deps.Book.UnifiedView()
}

// TopAssets returns one side's largest liquidated assets
func (e *Engine) TopAssets(side models.Side, limit int) []models.SideLiquidationAsset {
	return e.deps.Book.TopAssets(side, limit)
}

// Status returns the engine's health snapshot
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Status{
		Running:      e.running,
		HasData:      e.hasData,
		Analyzing:    e.analyzing,
		StartedAt:    e.startedAt,
		BaselineKeys: e.deps.Baselines.Size(),
		ActiveAssets: len(e.histories),
		AlertsHeld:   len(e.alerts),
		SignalsHeld:  len(e.signals),
	}
	if e.lastError != nil {
		s.LastError = e.lastError.Error()
	}
	s.ThrottlePassed, s.ThrottleBlocked = e.deps.Throttle.Stats()
	return s
}
