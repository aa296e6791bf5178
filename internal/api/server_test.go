package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/wahke/ET-Masterserver/internal/registry"
	"github.com/wahke/ET-Masterserver/internal/wire"
)

// TestGetServersExcludesStale pins end-to-end scenario 3's JSON API half:
// a record older than 19 minutes never appears in GET /servers.
func TestGetServersExcludesStale(t *testing.T) {
	store := registry.NewMemStore()
	now := time.Now()

	fresh := wire.Endpoint{IP: "1.1.1.1", Port: 1}
	stale := wire.Endpoint{IP: "2.2.2.2", Port: 2}

	mustPut(t, store, registry.ServerRecord{Endpoint: fresh, Name: "Fresh", FirstSeen: now, LastHeartbeat: now})
	mustPut(t, store, registry.ServerRecord{
		Endpoint:      stale,
		Name:          "Stale",
		FirstSeen:     now.Add(-30 * time.Minute),
		LastHeartbeat: now.Add(-20 * time.Minute),
	})

	logger, _ := test.NewNullLogger()
	srv := New(registry.New(store), logger)

	req := httptest.NewRequest(http.MethodGet, "/servers", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("CORS header = %q, want *", got)
	}

	var out []serverJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(out) != 1 || out[0].Name != "Fresh" {
		t.Fatalf("expected only the fresh record, got %+v", out)
	}
}

func mustPut(t *testing.T, store *registry.MemStore, rec registry.ServerRecord) {
	t.Helper()
	if err := store.Put(rec); err != nil {
		t.Fatalf("store.Put: %v", err)
	}
}
