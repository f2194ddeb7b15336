package throttle

import (
	"testing"
	"time"
)

// TestFirstEmissionAllowed verifies an unseen key always passes
func TestFirstEmissionAllowed(t *testing.T) {
	th := New(5 * time.Minute)
	if !th.CanEmit("BTC", "FLIP", time.Now()) {
		t.Error("first emission for a key should be allowed")
	}
}

// TestCooldownSuppresses verifies re-emission inside the window is
// blocked and allowed again after it elapses
func TestCooldownSuppresses(t *testing.T) {
	th := New(5 * time.Minute)
	start := time.Now()

	if !th.CanEmit("BTC", "FLIP", start) {
		t.Fatal("first check should pass")
	}
	th.Record("BTC", "FLIP", start)

	if th.CanEmit("BTC", "FLIP", start.Add(2*time.Minute)) {
		t.Error("second emission inside the cooldown should be suppressed")
	}
	if !th.CanEmit("BTC", "FLIP", start.Add(6*time.Minute)) {
		t.Error("emission after the cooldown should be allowed")
	}
}

// TestKeysIndependent verifies asset and pattern type both partition
// the cooldown
func TestKeysIndependent(t *testing.T) {
	th := New(5 * time.Minute)
	now := time.Now()
	th.Record("BTC", "FLIP", now)

	if !th.CanEmit("BTC", "CASCADE", now) {
		t.Error("a different pattern for the same asset should not be throttled")
	}
	if !th.CanEmit("ETH", "FLIP", now) {
		t.Error("the same pattern for a different asset should not be throttled")
	}
}

// TestCanEmitIsPure verifies CanEmit alone never starts a cooldown
func TestCanEmitIsPure(t *testing.T) {
	th := New(5 * time.Minute)
	now := time.Now()

	th.CanEmit("BTC", "WHALE", now)
	if !th.CanEmit("BTC", "WHALE", now.Add(time.Second)) {
		t.Error("CanEmit without Record must not suppress later checks")
	}
}

// TestRecordSweepsOldEntries verifies records older than twice the
// cooldown are garbage collected
func TestRecordSweepsOldEntries(t *testing.T) {
	th := New(5 * time.Minute)
	start := time.Now()

	th.Record("OLD", "FLIP", start)
	th.Record("NEW", "FLIP", start.Add(11*time.Minute))

	if th.Size() != 1 {
		t.Errorf("the stale record should be swept on Record, size=%d", th.Size())
	}
}
