// Package api serves the live monitoring surface for a run: current
// recorder totals, a health probe, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/FairForge/burstbench/internal/metrics"
	"github.com/FairForge/burstbench/internal/recorder"
)

// Server exposes run state over HTTP while a benchmark is running.
type Server struct {
	logger  *zap.Logger
	rec     *recorder.Memory
	metrics *metrics.Metrics
	started time.Time

	router chi.Router
	http   *http.Server
}

// NewServer wires the monitoring routes.
func NewServer(addr string, rec *recorder.Memory, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		logger:  logger,
		rec:     rec,
		metrics: m,
		started: time.Now(),
		router:  chi.NewRouter(),
	}
	s.router.Use(middleware.Recoverer)
	s.routes()

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/api/v1/stats", s.handleStats)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		s.logger.Info("monitor listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("monitor server failed", zap.Error(err))
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// liveStats is the stats payload for dashboards and curl.
type liveStats struct {
	recorder.Totals
	Elapsed     float64 `json:"elapsed_seconds"`
	RequestRate float64 `json:"requests_per_second"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	totals := s.rec.Totals()
	elapsed := time.Since(s.started).Seconds()

	stats := liveStats{Totals: totals, Elapsed: elapsed}
	if elapsed > 0 {
		stats.RequestRate = float64(totals.Requests) / elapsed
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		s.logger.Error("encode stats", zap.Error(err))
	}
}
