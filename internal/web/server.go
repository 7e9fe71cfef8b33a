// Package web provides the HTTP diagnostics and trigger surface for the
// daemon: the latest decision snapshot as JSON, prometheus metrics, and
// the schedule-enable / force-refresh actions.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/emavap/heating-control/internal/coordinator"
	"github.com/emavap/heating-control/internal/metrics"
	"github.com/emavap/heating-control/internal/status"
)

// Triggers are the control actions exposed over HTTP, implemented by the
// coordinator.
type Triggers interface {
	SetScheduleEnabled(ref string, enabled bool) error
	ForceRefresh()
}

// Server serves the status and trigger endpoints.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	triggers   Triggers
	log        zerolog.Logger
}

// New creates a Server reading state from the given tracker.
func New(addr string, tracker *status.Tracker, triggers Triggers, log zerolog.Logger) *Server {
	s := &Server{
		tracker:  tracker,
		triggers: triggers,
		log:      log.With().Str("component", "web").Logger(),
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/status.json", s.handleStatus)
	r.Handle("/metrics", metrics.Handler())
	r.Post("/api/schedules/{id}/enabled", s.handleSetEnabled)
	r.Post("/api/refresh", s.handleRefresh)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.tracker.Snapshot()
	if snap.State == nil {
		http.Error(w, "no cycle completed yet", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

type setEnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleSetEnabled(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req setEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		http.Error(w, "body must be {\"enabled\": true|false}", http.StatusBadRequest)
		return
	}

	if err := s.triggers.SetScheduleEnabled(id, *req.Enabled); err != nil {
		if errors.Is(err, coordinator.ErrScheduleNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		s.log.Error().Err(err).Str("schedule", id).Msg("set schedule enabled failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	s.triggers.ForceRefresh()
	w.WriteHeader(http.StatusAccepted)
}
