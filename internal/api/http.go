// Package api exposes the Hub's state over the pull (REST) and push
// (WebSocket) surfaces. It is a thin routing, framing, and JSON-encoding
// layer built on stdlib net/http; six fixed routes don't need a router
// library (see DESIGN.md).
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/chainwatch/rollup-sentinel/internal/health"
	"github.com/chainwatch/rollup-sentinel/pkg/config"
	"github.com/chainwatch/rollup-sentinel/pkg/models"
)

// HubReader is the subset of Hub the HTTP/WS surfaces read from.
type HubReader interface {
	SnapshotStatus(rollup models.RollupId) models.RollupStatus
	SnapshotAllStatus() map[models.RollupId]models.RollupStatus
	SnapshotSequencers() map[models.RollupId]models.SequencerMetrics
}

// nowFunc allows tests to pin the wall clock used for health derivation.
type nowFunc func() time.Time

// Server holds the routes and dependencies for the REST surface.
type Server struct {
	hub                    HubReader
	thresholds             map[models.RollupId]models.ThresholdSet
	sequencerDownThreshold int64
	logger                 zerolog.Logger
	now                    nowFunc
}

// NewServer builds the HTTP handler for the pull API, given the Hub and
// the per-rollup threshold configuration loaded at startup.
func NewServer(hub HubReader, cfg *config.Config, logger zerolog.Logger) *Server {
	thresholds := make(map[models.RollupId]models.ThresholdSet, len(cfg.Rollups))
	for id, rc := range cfg.Rollups {
		thresholds[id] = rc.Thresholds
	}
	return &Server{
		hub:                    hub,
		thresholds:             thresholds,
		sequencerDownThreshold: int64(cfg.SequencerDownThreshold.Seconds()),
		logger:                 logger.With().Str("component", "http_api").Logger(),
		now:                    time.Now,
	}
}

// Handler returns the stdlib mux wired with every route, wrapped with a
// panic-recovery boundary: an internal panic becomes a generic 500 body.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/rollups", s.handleListRollups)
	mux.HandleFunc("/rollups/health", s.handleAllHealth)
	mux.HandleFunc("/rollups/sequencer", s.handleSequencer)
	mux.HandleFunc("/rollups/", s.handleRollupScoped)

	return s.recover(mux)
}

func (s *Server) recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("panic recovered in http handler")
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRollups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, models.AllRollups)
}

func (s *Server) handleAllHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	now := s.now().Unix()
	reports := make([]models.HealthReport, 0, len(models.AllRollups))
	for _, id := range models.AllRollups {
		if _, ok := s.thresholds[id]; !ok {
			continue // rollup not enabled in this deployment
		}
		status := s.hub.SnapshotStatus(id)
		reports = append(reports, health.Assess(id, status, now, s.thresholds[id]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rollups": reports})
}

func (s *Server) handleSequencer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	out := make(map[models.RollupId]models.SequencerMetrics)
	for id, m := range s.hub.SnapshotSequencers() {
		out[id] = m.WithIsProducing(s.sequencerDownThreshold)
	}
	writeJSON(w, http.StatusOK, map[string]any{"sequencer": out})
}

// handleRollupScoped serves /rollups/{name}/status and /rollups/{name}/health.
func (s *Server) handleRollupScoped(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/rollups/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown rollup"})
		return
	}

	rollup := models.RollupId(parts[0])
	if _, enabled := s.thresholds[rollup]; !rollup.Valid() || !enabled {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown rollup"})
		return
	}

	switch parts[1] {
	case "status":
		writeJSON(w, http.StatusOK, s.hub.SnapshotStatus(rollup))
	case "health":
		now := s.now().Unix()
		status := s.hub.SnapshotStatus(rollup)
		writeJSON(w, http.StatusOK, health.Assess(rollup, status, now, s.thresholds[rollup]))
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown rollup"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
