// Package server exposes the appliance over HTTP.
//
// This is the presentation surface: a viewer polls GET /frame.png at its
// own frame rate and always gets the current display frame immediately.
// The handlers only ever read the orchestrator's published state, so a
// slow client cannot stall the update or transition machinery.
package server

import (
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mhartmeier/chartmorph/pkg/buildinfo"
	"github.com/mhartmeier/chartmorph/pkg/frame"
	"github.com/mhartmeier/chartmorph/pkg/vision"
)

// Core is the orchestrator surface the server needs.
type Core interface {
	DisplayFrame() *frame.Frame
	ForceRefresh(ctx context.Context)
	Status() vision.Status
}

// Server serves the display frame and control endpoints.
type Server struct {
	core   Core
	logger *log.Logger
}

// New creates a server around the orchestrator core.
func New(core Core, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(nil)
	}
	return &Server{core: core, logger: logger}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/frame.png", s.handleFrame)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Post("/refresh", s.handleRefresh)
	return r
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	f := s.core.DisplayFrame()
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, f.Img); err != nil {
		s.logger.Debug("frame write aborted", "err", err)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"version": buildinfo.Version,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.core.Status())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.core.ForceRefresh(r.Context())
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "refresh dispatched"})
}
