// Package server provides the HTTP status server of the gesture sender.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cyclopcam/logs"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/store"
)

// Pipeline is the part of the app the server reports on and controls.
type Pipeline interface {
	Status() app.Status
	Enabled() bool
	SetEnabled(enabled bool)
	LatestJPEG() ([]byte, uint64)
}

// Config holds the server configuration.
type Config struct {
	StaticDir  string
	Pipeline   Pipeline
	Store      *store.Store
	SessionID  string
	Classifier gesture.Config
	Log        logs.Log
}

// Server is the HTTP server: status and control endpoints, the transition
// journal, an MJPEG preview and a websocket feed of live transitions.
type Server struct {
	config Config
	log    logs.Log
	mux    *http.ServeMux
	hub    *Hub
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	log := config.Log
	if log == nil {
		var err error
		if log, err = logs.NewLog(); err != nil {
			panic(err)
		}
	}
	s := &Server{
		config: config,
		log:    log,
		mux:    http.NewServeMux(),
		hub:    NewHub(log),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.Handle("/ws/transitions", s.hub)

	if s.config.Pipeline != nil {
		s.mux.HandleFunc("/api/status", s.handleStatus)
		s.mux.HandleFunc("/api/enabled", s.handleEnabled)
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Pipeline))
	}

	if s.config.Store != nil {
		transitions := api.NewTransitionHandler(s.config.Store, s.log)
		s.mux.Handle("/api/transitions", transitions)
		s.mux.Handle("/api/transitions/", transitions)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// Hub returns the websocket hub. It is a sink: register it with the app so
// connected clients see every transition.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	})
}

type statusResponse struct {
	app.Status
	Session    string             `json:"session,omitempty"`
	Last       *TransitionMessage `json:"last,omitempty"`
	Classifier gesture.Config     `json:"classifier"`
	Clients    int                `json:"clients"`
	Uptime     string             `json:"uptime"`
}

// handleStatus handles GET /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st := s.config.Pipeline.Status()
	resp := statusResponse{
		Status:     st,
		Session:    s.config.SessionID,
		Classifier: s.config.Classifier,
		Clients:    s.hub.Clients(),
		Uptime:     time.Since(s.start).String(),
	}
	if st.Last != nil {
		msg := NewTransitionMessage(st.Last)
		resp.Last = &msg
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

type enabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleEnabled handles GET and POST /api/enabled. A POST with
// {"enabled": bool} sets the state; a POST without a body toggles it.
func (s *Server) handleEnabled(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var req enabledRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			api.WriteError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		enabled := !s.config.Pipeline.Enabled()
		if req.Enabled != nil {
			enabled = *req.Enabled
		}
		s.config.Pipeline.SetEnabled(enabled)
		if s.config.Store != nil {
			if err := s.config.Store.Settings().SetBool(store.SettingEnabled, enabled); err != nil {
				s.log.Warnf("Failed to persist enabled state: %v", err)
			}
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]bool{"enabled": s.config.Pipeline.Enabled()})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("Status server listening on http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
