package scheduler

import (
	"time"

	"github.com/aptosarb/arbcore/internal/domain"
)

// dedupEntry remembers the last time a cycle (by canonical key) was emitted
// and at what net profit, so a re-detection of the same cycle within the
// window is suppressed unless it improved materially.
type dedupEntry struct {
	emittedAt time.Time
	netProfit domain.Quantity
}

// dedupWindow suppresses repeat emissions of the same cycle within a sliding
// time window, re-emitting early only when net profit improved by at least
// reemitThresholdPct (spec section 4.5 "Dedup window").
type dedupWindow struct {
	window             time.Duration
	reemitThresholdPct float64
	seen               map[string]dedupEntry
}

func newDedupWindow(window time.Duration, reemitThresholdPct float64) *dedupWindow {
	return &dedupWindow{
		window:             window,
		reemitThresholdPct: reemitThresholdPct,
		seen:               make(map[string]dedupEntry),
	}
}

// allow reports whether a cycle with the given key/net-profit should be
// emitted now, recording the emission if so.
func (d *dedupWindow) allow(key string, netProfit domain.Quantity, now time.Time) bool {
	prior, ok := d.seen[key]
	if !ok || now.Sub(prior.emittedAt) >= d.window {
		d.seen[key] = dedupEntry{emittedAt: now, netProfit: netProfit}
		return true
	}

	if prior.netProfit.Sign() <= 0 {
		return false
	}
	improvement, _ := netProfit.Sub(prior.netProfit).Div(prior.netProfit).Float64()
	if improvement >= d.reemitThresholdPct {
		d.seen[key] = dedupEntry{emittedAt: now, netProfit: netProfit}
		return true
	}
	return false
}

// sweep drops entries older than the window so the map doesn't grow
// unbounded across a long-running process.
func (d *dedupWindow) sweep(now time.Time) {
	for k, v := range d.seen {
		if now.Sub(v.emittedAt) >= d.window {
			delete(d.seen, k)
		}
	}
}
