package patterns

import (
	"testing"
	"time"

	"crypto-flow-radar/internal/models"
	"crypto-flow-radar/internal/throttle"
)

func unified(asset string, long, short float64) models.UnifiedAsset {
	u := models.UnifiedAsset{
		Asset:           asset,
		Ticker:          asset + "USDT",
		LongLiquidated:  long,
		ShortLiquidated: short,
		CombinedTotal:   long + short,
		Intensity:       3,
		LastUpdateTime:  time.Now(),
	}
	if long > short {
		u.DominantSide = models.SideLong
	} else {
		u.DominantSide = models.SideShort
	}
	return u
}

func findSignal(signals []models.PatternSignal, pt models.PatternType) *models.PatternSignal {
	for i := range signals {
		if signals[i].PatternType == pt {
			return &signals[i]
		}
	}
	return nil
}

// TestTooLittleHistory verifies short histories are a quiet no-signal
// outcome, never a panic
func TestTooLittleHistory(t *testing.T) {
	c := NewClassifier(nil, throttle.New(0))
	now := time.Now()

	if got := c.Classify(nil, now); got != nil {
		t.Errorf("nil history should yield no signals, got %d", len(got))
	}
	one := []models.UnifiedAsset{unified("BTC", 50000, 10000)}
	if got := c.Classify(one, now); got != nil {
		t.Errorf("a single snapshot should yield no signals, got %d", len(got))
	}
}

// TestFlipDetection verifies a dominance reversal with material volume
// on both snapshots fires a FLIP
func TestFlipDetection(t *testing.T) {
	c := NewClassifier(nil, throttle.New(0))
	now := time.Now()

	history := []models.UnifiedAsset{
		unified("SOL", 30000, 5000), // long dominant
		unified("SOL", 5000, 40000), // flipped to short
	}
	signals := c.Classify(history, now)

	flip := findSignal(signals, models.PatternFlip)
	if flip == nil {
		t.Fatal("dominance reversal should fire a FLIP")
	}
	if flip.Severity != models.SeverityMedium {
		t.Errorf("a $40K flip should grade MEDIUM, got %s", flip.Severity)
	}
	if flip.Asset != "SOL" {
		t.Errorf("signal asset should be SOL, got %s", flip.Asset)
	}
	if flip.Confidence < 50 || flip.Confidence > 100 {
		t.Errorf("confidence should stay in range, got %f", flip.Confidence)
	}
	if flip.Metrics.DominantSide != models.SideShort {
		t.Errorf("metrics should reflect the new dominant side, got %s", flip.Metrics.DominantSide)
	}
}

// TestFlipNeedsVolumeBothSides verifies a reversal between thin
// snapshots stays quiet
func TestFlipNeedsVolumeBothSides(t *testing.T) {
	c := NewClassifier(nil, throttle.New(0))
	now := time.Now()

	history := []models.UnifiedAsset{
		unified("DOGE", 10000, 2000), // long dominant but only $10K
		unified("DOGE", 2000, 40000),
	}
	if s := findSignal(c.Classify(history, now), models.PatternFlip); s != nil {
		t.Error("a flip from a thin previous snapshot should not fire")
	}
}

// TestCascadeDetection verifies three accelerating same-side snapshots
// fire a CASCADE
func TestCascadeDetection(t *testing.T) {
	c := NewClassifier(nil, throttle.New(0))
	now := time.Now()

	history := []models.UnifiedAsset{
		unified("AVAX", 10000, 1000),
		unified("AVAX", 25000, 1000),
		unified("AVAX", 60000, 1000),
	}
	signals := c.Classify(history, now)

	cascade := findSignal(signals, models.PatternCascade)
	if cascade == nil {
		t.Fatal("accelerating growth 10K -> 25K -> 60K should fire a CASCADE")
	}
	if cascade.Severity != models.SeverityMedium {
		t.Errorf("a $60K cascade should grade MEDIUM, got %s", cascade.Severity)
	}
	if cascade.Metrics.DominantSide != models.SideLong {
		t.Errorf("cascade side should be long, got %s", cascade.Metrics.DominantSide)
	}
}

// TestCascadeRequiresAcceleration verifies linear growth is not enough
func TestCascadeRequiresAcceleration(t *testing.T) {
	c := NewClassifier(nil, throttle.New(0))
	now := time.Now()

	// +20K then +20K, growing but not accelerating
	history := []models.UnifiedAsset{
		unified("LINK", 20000, 1000),
		unified("LINK", 40000, 1000),
		unified("LINK", 60000, 1000),
	}
	if s := findSignal(c.Classify(history, now), models.PatternCascade); s != nil {
		t.Error("linear growth should not fire a CASCADE")
	}
}

// TestSqueezeDetection verifies balanced heavy two-sided liquidations
// fire a SQUEEZE
func TestSqueezeDetection(t *testing.T) {
	c := NewClassifier(nil, throttle.New(0))
	now := time.Now()

	history := []models.UnifiedAsset{
		unified("BTC", 55000, 45000),
		unified("BTC", 60000, 50000),
	}
	signals := c.Classify(history, now)

	squeeze := findSignal(signals, models.PatternSqueeze)
	if squeeze == nil {
		t.Fatal("$60K vs $50K should fire a SQUEEZE")
	}
	if squeeze.Severity != models.SeverityHigh {
		t.Errorf("a $110K combined squeeze should grade HIGH, got %s", squeeze.Severity)
	}
	if squeeze.Metrics.VolumeRatio < 0.6 {
		t.Errorf("reported ratio should exceed the floor, got %f", squeeze.Metrics.VolumeRatio)
	}
}

// TestSqueezeNeedsBalance verifies lopsided volume does not squeeze
func TestSqueezeNeedsBalance(t *testing.T) {
	c := NewClassifier(nil, throttle.New(0))
	now := time.Now()

	history := []models.UnifiedAsset{
		unified("ETH", 100000, 41000),
		unified("ETH", 120000, 45000), // ratio 0.375
	}
	if s := findSignal(c.Classify(history, now), models.PatternSqueeze); s != nil {
		t.Error("a 0.375 balance ratio should not fire a SQUEEZE")
	}
}

// TestWhaleDetection verifies a single outsized side fires an EXTREME
// WHALE regardless of the other side
func TestWhaleDetection(t *testing.T) {
	c := NewClassifier(nil, throttle.New(0))
	now := time.Now()

	history := []models.UnifiedAsset{
		unified("BTC", 200000, 10000),
		unified("BTC", 350000, 10000),
	}
	signals := c.Classify(history, now)

	whale := findSignal(signals, models.PatternWhale)
	if whale == nil {
		t.Fatal("$350K on one side should fire a WHALE")
	}
	if whale.Severity != models.SeverityExtreme {
		t.Errorf("whales are always EXTREME, got %s", whale.Severity)
	}
	if whale.Confidence > 98 {
		t.Errorf("whale confidence is capped at 98, got %f", whale.Confidence)
	}
}

// TestThrottleSuppressesRepeat verifies a recorded signal class stays
// quiet for the cooldown and fires again after it
func TestThrottleSuppressesRepeat(t *testing.T) {
	gate := throttle.New(5 * time.Minute)
	c := NewClassifier(nil, gate)
	now := time.Now()

	history := []models.UnifiedAsset{
		unified("SOL", 30000, 5000),
		unified("SOL", 5000, 40000),
	}

	first := c.Classify(history, now)
	if findSignal(first, models.PatternFlip) == nil {
		t.Fatal("first pass should fire a FLIP")
	}
	gate.Record("SOL", string(models.PatternFlip), now)

	again := c.Classify(history, now.Add(time.Minute))
	if findSignal(again, models.PatternFlip) != nil {
		t.Error("the same FLIP inside the cooldown should be suppressed")
	}

	later := c.Classify(history, now.Add(6*time.Minute))
	if findSignal(later, models.PatternFlip) == nil {
		t.Error("the FLIP should fire again after the cooldown")
	}
}

// TestMultipleSignalsOnePass verifies independent rules can fire on the
// same snapshot
func TestMultipleSignalsOnePass(t *testing.T) {
	c := NewClassifier(nil, throttle.New(0))
	now := time.Now()

	// Balanced, heavy, and over the whale floor on the long side
	history := []models.UnifiedAsset{
		unified("BTC", 300000, 250000),
		unified("BTC", 400000, 300000),
	}
	signals := c.Classify(history, now)

	if findSignal(signals, models.PatternSqueeze) == nil {
		t.Error("snapshot should fire a SQUEEZE")
	}
	if findSignal(signals, models.PatternWhale) == nil {
		t.Error("snapshot should fire a WHALE")
	}
}
