package registry

import (
	"sync"
	"time"

	"github.com/wahke/ET-Masterserver/internal/wire"
)

// Aux holds the two in-memory timestamp maps used only for probe
// throttling and sweeper eligibility: last_probe_time and
// last_heartbeat_time. Both maps are guarded by a single mutex so that an
// eligibility check (which reads both) never observes a torn state.
type Aux struct {
	mu            sync.RWMutex
	lastProbe     map[wire.Endpoint]time.Time
	lastHeartbeat map[wire.Endpoint]time.Time
	now           func() time.Time
}

// NewAux returns an empty Aux state.
func NewAux() *Aux {
	return &Aux{
		lastProbe:     make(map[wire.Endpoint]time.Time),
		lastHeartbeat: make(map[wire.Endpoint]time.Time),
		now:           time.Now,
	}
}

// ProbedWithin reports whether ep was probed within the last `cooldown`.
// Used both by the heartbeat handler's de-dup check and the sweeper's
// query_needed test.
func (a *Aux) ProbedWithin(ep wire.Endpoint, cooldown time.Duration) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	t, ok := a.lastProbe[ep]
	return ok && a.now().Sub(t) < cooldown
}

// MarkProbed records that ep was just probed, regardless of outcome. The
// Prober calls this unconditionally after every attempt.
func (a *Aux) MarkProbed(ep wire.Endpoint) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastProbe[ep] = a.now()
}

// MarkHeartbeat records that a heartbeat from ep was just observed and
// refreshes ep's last-probe timestamp in the same critical section, so the
// heartbeat handler advances both timestamps together in one atomic update.
func (a *Aux) MarkHeartbeat(ep wire.Endpoint) {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	a.lastProbe[ep] = now
	a.lastHeartbeat[ep] = now
}

// MarkProbedAt records an explicit last-probe timestamp for ep, bypassing
// the now() clock. Used by tests to seed historical state.
func (a *Aux) MarkProbedAt(ep wire.Endpoint, t time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastProbe[ep] = t
}

// MarkHeartbeatAt records an explicit last-heartbeat timestamp for ep,
// bypassing the now() clock. Used by tests to seed historical state.
func (a *Aux) MarkHeartbeatAt(ep wire.Endpoint, t time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastHeartbeat[ep] = t
}

// SweepEligible reports whether ep should be probed on this sweeper tick:
// last_heartbeat_time must exist and be within heartbeatWindow, and
// last_probe_time must be absent or older than cooldown. Both maps are
// read under a single lock so the two conditions are evaluated against a
// consistent snapshot.
func (a *Aux) SweepEligible(ep wire.Endpoint, heartbeatWindow, cooldown time.Duration) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	now := a.now()

	hb, ok := a.lastHeartbeat[ep]
	heartbeatOK := ok && now.Sub(hb) <= heartbeatWindow
	if !heartbeatOK {
		return false
	}

	probe, ok := a.lastProbe[ep]
	queryNeeded := !ok || now.Sub(probe) >= cooldown
	return queryNeeded
}
