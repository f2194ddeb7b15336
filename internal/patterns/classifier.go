// Package patterns classifies short liquidation histories into
// FLIP, CASCADE, SQUEEZE and WHALE signals with confidence and severity.
package patterns

import (
	"time"

	"crypto-flow-radar/internal/models"
	"crypto-flow-radar/internal/throttle"

	"github.com/google/uuid"
)

// Config holds the classifier's dollar floors. Heuristic and tunable;
// defaults follow the reference deployment.
type Config struct {
	FlipMinVolume    float64 // both flip sides must exceed this
	CascadeMinVolume float64 // latest cascade snapshot must exceed this
	SqueezeMinVolume float64 // both squeeze sides must exceed this
	SqueezeMinRatio  float64 // min/max balance required for a squeeze
	WhaleMinVolume   float64 // single-side floor for a whale print
}

// DefaultConfig returns the reference floors
func DefaultConfig() *Config {
	return &Config{
		FlipMinVolume:    25000,
		CascadeMinVolume: 30000,
		SqueezeMinVolume: 40000,
		SqueezeMinRatio:  0.6,
		WhaleMinVolume:   300000,
	}
}

// Classifier runs the rule set over an asset's ordered unified
// snapshots. Rules are evaluated independently; several may fire in one
// pass. Each candidate is gated by the injected throttle before it is
// returned; callers must Record on the throttle once a signal is
// actually published downstream.
type Classifier struct {
	config   *Config
	throttle *throttle.Throttle
}

// NewClassifier creates a classifier gated by the given throttle
func NewClassifier(config *Config, gate *throttle.Throttle) *Classifier {
	if config == nil {
		config = DefaultConfig()
	}
	return &Classifier{config: config, throttle: gate}
}

// Classify evaluates the rules against the most recent snapshots in
// history (ordered oldest first). Fewer than two snapshots is a normal
// no-signal outcome, never an error.
func (c *Classifier) Classify(history []models.UnifiedAsset, now time.Time) []models.PatternSignal {
	if len(history) < 2 {
		return nil
	}

	current := history[len(history)-1]
	previous := history[len(history)-2]

	var signals []models.PatternSignal
	add := func(s *models.PatternSignal) {
		if s == nil {
			return
		}
		if c.throttle != nil && !c.throttle.CanEmit(s.Asset, string(s.PatternType), now) {
			return
		}
		signals = append(signals, *s)
	}

	add(c.detectFlip(previous, current, now))
	if len(history) >= 3 {
		add(c.detectCascade(history[len(history)-3], previous, current, now))
	}
	add(c.detectSqueeze(current, now))
	add(c.detectWhale(current, now))

	return signals
}

// signal assembles an immutable PatternSignal for the current snapshot
func signal(current models.UnifiedAsset, patternType models.PatternType, description string,
	confidence float64, severity models.Severity, now time.Time) *models.PatternSignal {

	return &models.PatternSignal{
		ID:          uuid.NewString(),
		Asset:       current.Asset,
		PatternType: patternType,
		Description: description,
		Confidence:  clamp(confidence, 0, 100),
		Severity:    severity,
		Timestamp:   now,
		Metrics: models.PatternMetrics{
			LongVolume:   current.LongLiquidated,
			ShortVolume:  current.ShortLiquidated,
			DominantSide: current.DominantSide,
			VolumeRatio:  balanceRatio(current.LongLiquidated, current.ShortLiquidated),
			Intensity:    current.Intensity,
		},
	}
}

// balanceRatio returns min/max of the two sides with the denominator
// clamped to 1 so an empty side cannot divide by zero
func balanceRatio(long, short float64) float64 {
	lo, hi := long, short
	if lo > hi {
		lo, hi = hi, lo
	}
	if hi < 1 {
		hi = 1
	}
	return lo / hi
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
