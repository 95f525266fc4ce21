// Package server exposes the scheduler controls over HTTP.
//
//	POST /start         start or resume the run
//	POST /pause         pause the run
//	POST /stop          stop the run
//	PUT  /concurrency   {"threads": 3} set the thread count for the next run
//	GET  /status        scheduler snapshot as JSON
//	GET  /metrics       Prometheus metrics
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/handiism/gallery-downloader/internal/download"
)

// Controller is the part of download.Scheduler the server drives.
type Controller interface {
	Start()
	Pause()
	Stop()
	ConfigureConcurrency(n int)
	Snapshot() download.Snapshot
}

// Server holds the HTTP server state.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	controller Controller
	metrics    http.Handler
	logger     *slog.Logger
	authToken  string
}

// NewServer constructs the control server. metrics may be nil, in which
// case /metrics is not routed. An empty authToken disables authentication.
func NewServer(addr, authToken string, controller Controller, metrics http.Handler, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:     router,
		controller: controller,
		metrics:    metrics,
		logger:     logger,
		authToken:  authToken,
	}
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics)
	}

	s.router.Group(func(r chi.Router) {
		if s.authToken != "" {
			r.Use(AuthMiddleware(s.authToken))
		}

		r.Get("/status", s.handleStatus)
		r.Post("/start", s.handleControl("start", s.controller.Start))
		r.Post("/pause", s.handleControl("pause", s.controller.Pause))
		r.Post("/stop", s.handleControl("stop", s.controller.Stop))
		r.Put("/concurrency", s.handleConcurrency)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *Server) handleControl(name string, action func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		action()
		snap := s.controller.Snapshot()
		s.logger.Info("control", "action", name, "state", snap.StateName, "request_id", middleware.GetReqID(r.Context()))
		writeJSON(w, http.StatusOK, snap)
	}
}

type concurrencyRequest struct {
	Threads json.RawMessage `json:"threads"`
}

// handleConcurrency accepts the thread count as a number or a string.
// Unparsable strings fall back to the maximum, as in the settings UI.
func (s *Server) handleConcurrency(w http.ResponseWriter, r *http.Request) {
	var req concurrencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	if len(req.Threads) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_input", "threads is required")
		return
	}

	var n int
	var str string
	switch {
	case json.Unmarshal(req.Threads, &n) == nil:
	case json.Unmarshal(req.Threads, &str) == nil:
		n = download.ParseConcurrency(strings.TrimSpace(str))
	default:
		writeError(w, http.StatusBadRequest, "invalid_input", "threads must be a number or a string")
		return
	}

	s.controller.ConfigureConcurrency(n)
	s.logger.Info("control", "action", "concurrency", "threads", n)
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	payload := map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	}
	writeJSON(w, status, payload)
}
