package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/muurk/onvif-discover/internal/discovery"
	"github.com/muurk/onvif-discover/internal/logging"
	"go.uber.org/zap"
)

// ResultView is the JSON and YAML form of a completed run.
type ResultView struct {
	RunID      string             `json:"run_id" yaml:"run_id"`
	Mode       discovery.Mode     `json:"mode" yaml:"mode"`
	Count      int                `json:"count" yaml:"count"`
	Hosts      []string           `json:"hosts" yaml:"hosts"`
	Rejected   int                `json:"rejected" yaml:"rejected"`
	StartedAt  time.Time          `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time          `json:"finished_at" yaml:"finished_at"`
	Devices    []discovery.Device `json:"devices" yaml:"devices"`
	Errors     []string           `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// NewResultView converts r for JSON output.
func NewResultView(r *discovery.Result) ResultView {
	v := ResultView{
		RunID:      r.RunID,
		Mode:       r.Mode,
		Count:      r.Count,
		Hosts:      r.Hosts,
		Rejected:   r.Rejected,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Devices:    r.Devices,
	}
	if v.Hosts == nil {
		v.Hosts = []string{}
	}
	if v.Devices == nil {
		v.Devices = []discovery.Device{}
	}
	for _, err := range r.Errors {
		v.Errors = append(v.Errors, err.Error())
	}
	return v
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Get("/ws", s.hub.serveWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/devices", s.handleDevices)
		r.Post("/discover", s.handleDiscover)
		r.Get("/modes", s.handleModes)
	})
	return r
}

// observe logs each request and records it in the HTTP metrics.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
			if websocket.IsWebSocketUpgrade(r) {
				status = http.StatusSwitchingProtocols
			}
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		s.metrics.ObserveHTTP(r.Method, route, status, time.Since(start))
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, status)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"feed_clients": s.hub.count(),
	})
}

func (s *Server) handleDevices(w http.ResponseWriter, _ *http.Request) {
	last := s.LastResult()
	if last == nil {
		writeError(w, http.StatusNotFound, "no discovery run has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, NewResultView(last))
}

func (s *Server) handleDiscover(w http.ResponseWriter, _ *http.Request) {
	result, err := s.Discover(s.ctx)
	switch {
	case errors.Is(err, ErrRunInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case discovery.IsConfigurationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, NewResultView(result))
	}
}

func (s *Server) handleModes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, discovery.Modes())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Failed to write JSON response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
