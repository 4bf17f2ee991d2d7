package portal

import (
	"sync"
	"time"
)

// PromoGate opens the landing promotion once per visitor, on the first
// scroll report past the threshold. A mark lives for ttl after the visitor's
// last report, the same sliding window the visitor cookie is issued with.
type PromoGate struct {
	mu        sync.Mutex
	threshold float64
	ttl       time.Duration
	shown     map[string]time.Time
	now       func() time.Time
}

// NewPromoGate creates a gate; marks idle for longer than ttl are dropped by Sweep
func NewPromoGate(threshold int, ttl time.Duration) *PromoGate {
	return &PromoGate{
		threshold: float64(threshold),
		ttl:       ttl,
		shown:     make(map[string]time.Time),
		now:       time.Now,
	}
}

// TTL is how long a visitor stays known after their last report
func (g *PromoGate) TTL() time.Duration {
	return g.ttl
}

// Observe reports whether the promo should open for this scroll position.
// Any report from a marked visitor keeps the mark alive.
func (g *PromoGate) Observe(visitor string, scrollY float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, seen := g.shown[visitor]; seen {
		g.shown[visitor] = g.now()
		return false
	}
	if scrollY <= g.threshold {
		return false
	}
	g.shown[visitor] = g.now()
	return true
}

// Sweep forgets visitors idle for longer than the ttl
func (g *PromoGate) Sweep() int {
	if g.ttl <= 0 {
		return 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := g.now().Add(-g.ttl)
	removed := 0
	for visitor, at := range g.shown {
		if at.Before(cutoff) {
			delete(g.shown, visitor)
			removed++
		}
	}
	return removed
}

// Len returns the number of visitors who have seen the promo
func (g *PromoGate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.shown)
}
