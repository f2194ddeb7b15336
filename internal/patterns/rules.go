package patterns

import (
	"fmt"
	"math"
	"time"

	"crypto-flow-radar/internal/models"
)

// sideVolume returns the liquidated total for one side of a snapshot
func sideVolume(u models.UnifiedAsset, side models.Side) float64 {
	if side == models.SideLong {
		return u.LongLiquidated
	}
	return u.ShortLiquidated
}

// detectFlip fires when the dominant liquidation side changes between
// two consecutive snapshots with material volume on both.
func (c *Classifier) detectFlip(previous, current models.UnifiedAsset, now time.Time) *models.PatternSignal {
	if previous.DominantSide == current.DominantSide {
		return nil
	}

	prevVol := sideVolume(previous, previous.DominantSide)
	currVol := sideVolume(current, current.DominantSide)
	if prevVol <= c.config.FlipMinVolume || currVol <= c.config.FlipMinVolume {
		return nil
	}

	confidence := 50 + math.Min(45, math.Min(prevVol, currVol)/5000)
	severity := models.SeverityMedium
	switch {
	case currVol > 100000:
		severity = models.SeverityExtreme
	case currVol > 50000:
		severity = models.SeverityHigh
	}

	desc := fmt.Sprintf("%s liquidation dominance flipped from %s to %s ($%.0f -> $%.0f)",
		current.Asset, previous.DominantSide, current.DominantSide, prevVol, currVol)
	return signal(current, models.PatternFlip, desc, confidence, severity, now)
}

// detectCascade fires when one side's liquidations grow across three
// consecutive snapshots with accelerating increments.
func (c *Classifier) detectCascade(first, second, third models.UnifiedAsset, now time.Time) *models.PatternSignal {
	side := third.DominantSide
	if first.DominantSide != side || second.DominantSide != side {
		return nil
	}

	v1 := sideVolume(first, side)
	v2 := sideVolume(second, side)
	v3 := sideVolume(third, side)
	if !(v1 < v2 && v2 < v3) {
		return nil
	}
	// Accelerating: each step must be larger than the last
	if (v3 - v2) <= (v2 - v1) {
		return nil
	}
	if v3 <= c.config.CascadeMinVolume {
		return nil
	}

	confidence := 60 + math.Min(38, (v3-v1)/5000)
	severity := models.SeverityMedium
	switch {
	case v3 > 200000:
		severity = models.SeverityExtreme
	case v3 > 100000:
		severity = models.SeverityHigh
	}

	desc := fmt.Sprintf("%s %s liquidations cascading: $%.0f -> $%.0f -> $%.0f",
		third.Asset, side, v1, v2, v3)
	return signal(third, models.PatternCascade, desc, confidence, severity, now)
}

// detectSqueeze fires when both sides are being liquidated heavily at
// comparable volume, the signature of a two-sided volatility squeeze.
func (c *Classifier) detectSqueeze(current models.UnifiedAsset, now time.Time) *models.PatternSignal {
	long := current.LongLiquidated
	short := current.ShortLiquidated
	if long <= c.config.SqueezeMinVolume || short <= c.config.SqueezeMinVolume {
		return nil
	}

	ratio := balanceRatio(long, short)
	if ratio <= c.config.SqueezeMinRatio {
		return nil
	}

	confidence := 40 + ratio*55
	severity := models.SeverityHigh
	if long+short > 200000 {
		severity = models.SeverityExtreme
	}

	desc := fmt.Sprintf("%s squeezed on both sides: $%.0f long vs $%.0f short (balance %.2f)",
		current.Asset, long, short, ratio)
	return signal(current, models.PatternSqueeze, desc, confidence, severity, now)
}

// detectWhale fires on a single side crossing the whale floor. Always
// EXTREME; a print this size moves the market on its own.
func (c *Classifier) detectWhale(current models.UnifiedAsset, now time.Time) *models.PatternSignal {
	side := models.SideLong
	vol := current.LongLiquidated
	if current.ShortLiquidated > vol {
		side = models.SideShort
		vol = current.ShortLiquidated
	}
	if vol <= c.config.WhaleMinVolume {
		return nil
	}

	confidence := math.Min(98, 70+(vol-c.config.WhaleMinVolume)/25000)

	desc := fmt.Sprintf("%s whale liquidation: $%.0f %s positions wiped",
		current.Asset, vol, side)
	return signal(current, models.PatternWhale, desc, confidence, models.SeverityExtreme, now)
}
