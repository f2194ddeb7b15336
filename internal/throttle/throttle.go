// Package throttle gates pattern-signal emission with a per
// (asset, pattern) cooldown so one market move cannot spam the stream.
package throttle

import (
	"fmt"
	"sync"
	"time"
)

// DefaultCooldown is the reference re-emission window
const DefaultCooldown = 5 * time.Minute

// Throttle is a keyed cooldown registry. It is constructed explicitly
// and injected into the classifier so tests get isolated instances.
type Throttle struct {
	mu       sync.Mutex
	cooldown time.Duration
	lastSeen map[string]time.Time

	// stats
	passed     int64
	suppressed int64
}

// New creates a throttle with the given cooldown
func New(cooldown time.Duration) *Throttle {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Throttle{
		cooldown: cooldown,
		lastSeen: make(map[string]time.Time),
	}
}

func key(asset, patternType string) string {
	return fmt.Sprintf("%s:%s", asset, patternType)
}

// CanEmit reports whether a signal of this class may be emitted now.
// It is a pure read; call Record only once the signal actually goes out.
func (t *Throttle) CanEmit(asset, patternType string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, exists := t.lastSeen[key(asset, patternType)]
	if exists && now.Sub(last) < t.cooldown {
		t.suppressed++
		return false
	}
	t.passed++
	return true
}

// Record stamps the emission time for the key and opportunistically
// sweeps records older than twice the cooldown to bound memory.
func (t *Throttle) Record(asset, patternType string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastSeen[key(asset, patternType)] = now

	horizon := 2 * t.cooldown
	for k, seen := range t.lastSeen {
		if now.Sub(seen) > horizon {
			delete(t.lastSeen, k)
		}
	}
}

// Stats returns how many checks passed and how many were suppressed
func (t *Throttle) Stats() (passed, suppressed int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.passed, t.suppressed
}

// Size returns the number of live cooldown records
func (t *Throttle) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lastSeen)
}
