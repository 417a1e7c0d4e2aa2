// Package server provides the HTTP server for the attendance kiosk.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ayusman/hajira/internal/app"
	"github.com/ayusman/hajira/internal/server/api"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	App       *app.App
	Logger    *zap.Logger
}

// Server represents the HTTP server for the kiosk.
type Server struct {
	config     Config
	router     *chi.Mux
	httpServer *http.Server
	events     *EventsHandler
	logger     *zap.Logger
	start      time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	s := &Server{
		config: config,
		router: chi.NewRouter(),
		logger: config.Logger,
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	r := s.router
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/api/health", s.handleHealth)

	if a := s.config.App; a != nil {
		st := a.Store()
		subjects := api.NewSubjectHandler(st, a, s.logger.Named("api"))
		attendance := api.NewAttendanceHandler(st, s.logger.Named("api"))

		r.Route("/api/subjects", func(r chi.Router) {
			subjects.Routes(r)
			attendance.SubjectRoutes(r)
		})
		r.Route("/api/attendance", attendance.Routes)

		r.Method(http.MethodGet, "/api/stream", NewStreamHandler(a.Streamer(), a, s.logger.Named("stream")))

		s.events = NewEventsHandler(a.Hub(), s.logger.Named("events"))
		r.Method(http.MethodGet, "/api/events", s.events)

		r.Get("/api/kiosk", s.handleKioskGet)
		r.Post("/api/kiosk", s.handleKioskSet)
		r.Post("/api/recognizer/reload", s.handleReload)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if a := s.config.App; a != nil {
		response["trained"] = a.Matcher().Trained()
		response["liveness"] = a.Policy().Name()
		response["streaming"] = a.Streamer().Active()
	}

	writeJSON(w, http.StatusOK, response)
}

type kioskState struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleKioskGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, kioskState{Enabled: s.config.App.IsEnabled()})
}

func (s *Server) handleKioskSet(w http.ResponseWriter, r *http.Request) {
	var req kioskState
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	s.config.App.SetEnabled(req.Enabled)
	writeJSON(w, http.StatusOK, kioskState{Enabled: s.config.App.IsEnabled()})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.config.App.ReloadRecognizer(r.Context()); err != nil {
		s.logger.Error("reload recognizer", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to reload recognizer")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"trained": s.config.App.Matcher().Trained()})
}

// ListenAndServe starts the HTTP server on the given address and blocks
// until it stops. Shutdown makes it return nil.
func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.logger.Info("http server listening", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server and disconnects event clients.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.events != nil {
		s.events.Close()
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
