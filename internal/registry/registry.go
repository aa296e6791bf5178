// Package registry holds the keyed store of known game-server endpoints
// and the auxiliary timestamps used to throttle probing.
//
// Persistent state (the ServerRecord itself) lives in a bbolt store, see
// store.go. The two auxiliary maps (last_probe_time, last_heartbeat_time)
// never touch disk; they are pure in-memory rate-limit state guarded by a
// single mutex, following the pattern of the mDNS responder's service
// registry in the corpus this was built from.
package registry

import (
	"time"

	"github.com/wahke/ET-Masterserver/internal/wire"
)

// ServerRecord is the persisted view of a single game server.
type ServerRecord struct {
	Endpoint      wire.Endpoint
	Name          string
	Version       string
	Mod           string
	Map           string
	Players       uint
	MaxPlayers    uint
	FirstSeen     time.Time
	LastHeartbeat time.Time
}

func newStubRecord(ep wire.Endpoint, now time.Time) ServerRecord {
	return ServerRecord{
		Endpoint:      ep,
		Name:          "Unknown",
		Version:       "Unknown",
		Mod:           "Unknown",
		Map:           "Unknown",
		FirstSeen:     now,
		LastHeartbeat: now,
	}
}

func (r *ServerRecord) applyProbe(info wire.ProbeInfo, now time.Time) {
	r.Name = info.Name
	r.Version = info.Version
	r.Mod = info.Mod
	r.Map = info.Map
	r.Players = info.Players
	r.MaxPlayers = info.MaxPlayers
	r.LastHeartbeat = now
}

// Store is the persistence contract the registry is built on. bbolt is the
// production implementation (see store.go); tests use an in-memory
// implementation.
type Store interface {
	Get(ep wire.Endpoint) (ServerRecord, bool, error)
	Put(rec ServerRecord) error
	All() ([]ServerRecord, error)
	Close() error
}

// Registry is the single keyed store of server endpoints shared by every
// other component.
type Registry struct {
	store Store
	now   func() time.Time
}

// New wraps a Store with the registry operation contract from the
// specification: insert-if-absent stubs, upsert-on-probe, and the two
// time-windowed read views used by getservers replies and the JSON API.
func New(store Store) *Registry {
	return &Registry{store: store, now: time.Now}
}

// Exists reports whether a record for ep is already present.
func (r *Registry) Exists(ep wire.Endpoint) (bool, error) {
	_, ok, err := r.store.Get(ep)
	return ok, err
}

// InsertStub idempotently creates a default-valued record for ep. It is a
// no-op if a record already exists; upstream sync uses this to seed
// endpoints it has not yet probed itself.
func (r *Registry) InsertStub(ep wire.Endpoint) error {
	_, ok, err := r.store.Get(ep)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return r.store.Put(newStubRecord(ep, r.now()))
}

// UpsertInfo inserts or updates the six info fields for ep and refreshes
// LastHeartbeat. FirstSeen is set only on insert and is never mutated
// afterward.
func (r *Registry) UpsertInfo(ep wire.Endpoint, info wire.ProbeInfo) error {
	now := r.now()
	rec, ok, err := r.store.Get(ep)
	if err != nil {
		return err
	}
	if !ok {
		rec = ServerRecord{Endpoint: ep, FirstSeen: now}
	}
	rec.applyProbe(info, now)
	return r.store.Put(rec)
}

// GetAllEndpoints returns every endpoint currently known, regardless of
// liveness. The sweeper snapshots this set at the start of each tick.
func (r *Registry) GetAllEndpoints() ([]wire.Endpoint, error) {
	records, err := r.store.All()
	if err != nil {
		return nil, err
	}
	out := make([]wire.Endpoint, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Endpoint)
	}
	return out, nil
}

// GetLiveEndpoints returns endpoints whose LastHeartbeat falls within the
// last `within` duration. Used for getserversResponse replies (within = 6
// minutes).
func (r *Registry) GetLiveEndpoints(within time.Duration) ([]wire.Endpoint, error) {
	records, err := r.store.All()
	if err != nil {
		return nil, err
	}
	cutoff := r.now().Add(-within)
	out := make([]wire.Endpoint, 0, len(records))
	for _, rec := range records {
		if rec.LastHeartbeat.After(cutoff) {
			out = append(out, rec.Endpoint)
		}
	}
	return out, nil
}

// GetRecordsVisible returns full records whose LastHeartbeat falls within
// the last `within` duration. Used by the JSON read API (within = 19
// minutes).
func (r *Registry) GetRecordsVisible(within time.Duration) ([]ServerRecord, error) {
	records, err := r.store.All()
	if err != nil {
		return nil, err
	}
	cutoff := r.now().Add(-within)
	out := make([]ServerRecord, 0, len(records))
	for _, rec := range records {
		if rec.LastHeartbeat.After(cutoff) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Close releases the underlying store.
func (r *Registry) Close() error {
	return r.store.Close()
}
