// Package api implements the read-only HTTP dashboard endpoint: GET
// /servers returns the currently visible registry as JSON. Routing uses
// gorilla/mux, following the router the wider example corpus (the Docker
// engine daemon) reaches for instead of a bare http.ServeMux.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/wahke/ET-Masterserver/internal/registry"
)

// visibilityWindow bounds how stale a record may be and still appear in
// the JSON API, per spec.md §3.
const visibilityWindow = 19 * time.Minute

// serverJSON is the wire shape of a single dashboard entry.
type serverJSON struct {
	IP            string `json:"ip"`
	Port          uint16 `json:"port"`
	Name          string `json:"name"`
	Version       string `json:"version"`
	Mod           string `json:"mod"`
	Players       uint   `json:"players"`
	MaxPlayers    uint   `json:"max_players"`
	Map           string `json:"map"`
	FirstSeen     string `json:"first_seen"`
	LastHeartbeat string `json:"last_heartbeat"`
}

// Server serves the read-only registry dashboard.
type Server struct {
	reg *registry.Registry
	log logrus.FieldLogger
}

// New constructs a Server over reg.
func New(reg *registry.Registry, log logrus.FieldLogger) *Server {
	return &Server{reg: reg, log: log}
}

// Handler returns the HTTP handler to mount: a single GET /servers route
// with CORS left open for dashboard consumers on any origin.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/servers", s.getServers).Methods(http.MethodGet)
	return r
}

func (s *Server) getServers(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")

	records, err := s.reg.GetRecordsVisible(visibilityWindow)
	if err != nil {
		s.log.WithError(err).Error("api: registry read failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]serverJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, serverJSON{
			IP:            rec.Endpoint.IP,
			Port:          rec.Endpoint.Port,
			Name:          rec.Name,
			Version:       rec.Version,
			Mod:           rec.Mod,
			Players:       rec.Players,
			MaxPlayers:    rec.MaxPlayers,
			Map:           rec.Map,
			FirstSeen:     rec.FirstSeen.UTC().Format(time.RFC3339),
			LastHeartbeat: rec.LastHeartbeat.UTC().Format(time.RFC3339),
		})
	}

	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.log.WithError(err).Error("api: response encode failed")
	}
}

// ListenAndServe starts the HTTP server on addr, using TLS if certFile and
// keyFile are both non-empty, and shuts it down cleanly when ctx is
// canceled.
func ListenAndServe(ctx context.Context, addr, certFile, keyFile string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	var err error
	if certFile != "" && keyFile != "" {
		err = srv.ListenAndServeTLS(certFile, keyFile)
	} else {
		err = srv.ListenAndServe()
	}
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
