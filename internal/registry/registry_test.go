package registry

import (
	"testing"
	"time"

	"github.com/wahke/ET-Masterserver/internal/wire"
)

func newTestRegistry() *Registry {
	return New(NewMemStore())
}

func TestInsertStubIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	ep := wire.Endpoint{IP: "5.6.7.8", Port: 27960}

	if err := r.InsertStub(ep); err != nil {
		t.Fatalf("InsertStub: %v", err)
	}
	rec, ok, err := r.store.Get(ep)
	if err != nil || !ok {
		t.Fatalf("expected stub to exist, ok=%v err=%v", ok, err)
	}
	firstSeen := rec.FirstSeen

	time.Sleep(time.Millisecond)
	if err := r.InsertStub(ep); err != nil {
		t.Fatalf("InsertStub (second): %v", err)
	}
	rec2, _, _ := r.store.Get(ep)
	if !rec2.FirstSeen.Equal(firstSeen) {
		t.Fatalf("InsertStub mutated an existing record: first_seen changed from %v to %v", firstSeen, rec2.FirstSeen)
	}
}

func TestUpsertInfoSetsFirstSeenOnlyOnce(t *testing.T) {
	r := newTestRegistry()
	ep := wire.Endpoint{IP: "1.2.3.4", Port: 27960}

	info := wire.ProbeInfo{Name: "Foo", Version: "v1", Mod: "etmain", Map: "oasis", Players: 3, MaxPlayers: 20}
	if err := r.UpsertInfo(ep, info); err != nil {
		t.Fatalf("UpsertInfo: %v", err)
	}
	rec, _, _ := r.store.Get(ep)
	if !rec.FirstSeen.Equal(rec.LastHeartbeat) {
		t.Fatalf("first insert: expected first_seen == last_heartbeat, got %v vs %v", rec.FirstSeen, rec.LastHeartbeat)
	}
	firstSeen := rec.FirstSeen

	time.Sleep(time.Millisecond)
	info.Players = 5
	if err := r.UpsertInfo(ep, info); err != nil {
		t.Fatalf("UpsertInfo (update): %v", err)
	}
	rec2, _, _ := r.store.Get(ep)
	if !rec2.FirstSeen.Equal(firstSeen) {
		t.Fatalf("update must not mutate first_seen: got %v, want %v", rec2.FirstSeen, firstSeen)
	}
	if rec2.Players != 5 {
		t.Fatalf("players = %d, want 5", rec2.Players)
	}
	if !rec2.LastHeartbeat.After(firstSeen) {
		t.Fatalf("last_heartbeat should have advanced past first insert")
	}
}

func TestGetLiveEndpointsExcludesStale(t *testing.T) {
	r := newTestRegistry()
	fresh := wire.Endpoint{IP: "1.1.1.1", Port: 1}
	stale := wire.Endpoint{IP: "2.2.2.2", Port: 2}

	now := time.Now()
	mustPut(t, r, ServerRecord{Endpoint: fresh, FirstSeen: now, LastHeartbeat: now})
	mustPut(t, r, ServerRecord{Endpoint: stale, FirstSeen: now.Add(-20 * time.Minute), LastHeartbeat: now.Add(-20 * time.Minute)})

	live, err := r.GetLiveEndpoints(6 * time.Minute)
	if err != nil {
		t.Fatalf("GetLiveEndpoints: %v", err)
	}
	if len(live) != 1 || live[0] != fresh {
		t.Fatalf("got %v, want only %v", live, fresh)
	}
}

func TestGetRecordsVisibleExcludesStaleBeyond19Minutes(t *testing.T) {
	r := newTestRegistry()
	fresh := wire.Endpoint{IP: "1.1.1.1", Port: 1}
	stale := wire.Endpoint{IP: "2.2.2.2", Port: 2}

	now := time.Now()
	mustPut(t, r, ServerRecord{Endpoint: fresh, FirstSeen: now, LastHeartbeat: now})
	mustPut(t, r, ServerRecord{Endpoint: stale, FirstSeen: now.Add(-20 * time.Minute), LastHeartbeat: now.Add(-20 * time.Minute)})

	visible, err := r.GetRecordsVisible(19 * time.Minute)
	if err != nil {
		t.Fatalf("GetRecordsVisible: %v", err)
	}
	if len(visible) != 1 || visible[0].Endpoint != fresh {
		t.Fatalf("got %v, want only %v", visible, fresh)
	}
}

func mustPut(t *testing.T, r *Registry, rec ServerRecord) {
	t.Helper()
	if err := r.store.Put(rec); err != nil {
		t.Fatalf("store.Put: %v", err)
	}
}
