// Package baseline maintains exponentially-weighted average volume
// baselines per (symbol, timeframe) key.
package baseline

import (
	"fmt"
	"sync"
	"time"

	"crypto-flow-radar/internal/models"
)

// Config holds baseline tracker configuration
type Config struct {
	Alpha      float64 // EWMA smoothing factor; smaller = slower, stabler baseline
	SampleCap  int     // sample counter saturates here
	MinSamples int     // baselines with fewer samples are not trusted
}

// DefaultConfig returns the reference tuning
func DefaultConfig() *Config {
	return &Config{
		Alpha:      0.08,
		SampleCap:  60,
		MinSamples: 5,
	}
}

// Tracker keeps one EWMA volume baseline per (symbol, timeframe).
// EWMA adapts continuously with O(1) memory per key and down-weights
// stale regimes without storing raw history.
type Tracker struct {
	mu        sync.RWMutex
	config    *Config
	baselines map[string]*models.VolumeBaseline
}

// NewTracker creates a baseline tracker
func NewTracker(config *Config) *Tracker {
	if config == nil {
		config = DefaultConfig()
	}
	return &Tracker{
		config:    config,
		baselines: make(map[string]*models.VolumeBaseline),
	}
}

func key(symbol string, timeframe models.Timeframe) string {
	return fmt.Sprintf("%s:%s", symbol, timeframe)
}

// Update folds one closed-candle volume into the baseline for the key,
// creating it on first observation.
func (t *Tracker) Update(symbol string, timeframe models.Timeframe, volume float64, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key(symbol, timeframe)
	b, exists := t.baselines[k]
	if !exists {
		t.baselines[k] = &models.VolumeBaseline{
			Average:     volume,
			SampleCount: 1,
			LastUpdated: now,
		}
		return
	}

	b.Average = b.Average*(1-t.config.Alpha) + volume*t.config.Alpha
	if b.SampleCount < t.config.SampleCap {
		b.SampleCount++
	}
	b.LastUpdated = now
}

// Get returns a copy of the baseline for the key, or false if the key
// has never been observed.
func (t *Tracker) Get(symbol string, timeframe models.Timeframe) (models.VolumeBaseline, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	b, exists := t.baselines[key(symbol, timeframe)]
	if !exists {
		return models.VolumeBaseline{}, false
	}
	return *b, true
}

// Trusted reports whether the baseline has enough samples to gate detection
func (t *Tracker) Trusted(symbol string, timeframe models.Timeframe) bool {
	b, ok := t.Get(symbol, timeframe)
	return ok && b.SampleCount >= t.config.MinSamples
}

// MinSamples exposes the trust threshold for callers that fail closed
func (t *Tracker) MinSamples() int {
	return t.config.MinSamples
}

// Sweep removes baselines whose last update is older than maxAge and
// returns how many were dropped.
func (t *Tracker) Sweep(now time.Time, maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for k, b := range t.baselines {
		if now.Sub(b.LastUpdated) > maxAge {
			delete(t.baselines, k)
			removed++
		}
	}
	return removed
}

// Size returns the number of tracked keys
func (t *Tracker) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.baselines)
}
