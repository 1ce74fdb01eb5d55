// Package api provides a thin, local-operability HTTP surface: health,
// prometheus metrics, and a read-only snapshot of runner status. It is
// not a trading API — order placement and configuration changes go
// through the runner and execution service directly, not HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/metrics"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/risk"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/runner"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

// StatusSource is what the server reads to answer /api/v1/status; the
// concrete *runner.Runner satisfies it directly. Risk metrics come from
// the separately passed *risk.Manager.
type StatusSource interface {
	GetStatus() runner.RuntimeStatus
}

// Server is the process's local HTTP surface for health checks,
// prometheus scraping, and a status snapshot.
type Server struct {
	logger     *zap.Logger
	config     *types.ServerConfig
	router     *mux.Router
	httpServer *http.Server
	runner     StatusSource
	riskMgr    *risk.Manager
}

// NewServer builds the status surface bound to a runner and risk
// manager; both may be nil for a server started before the runner is
// constructed (the status handler reports "unavailable" in that case).
func NewServer(logger *zap.Logger, config *types.ServerConfig, r StatusSource, riskMgr *risk.Manager) *Server {
	server := &Server{
		logger:  logger.Named("api"),
		config:  config,
		router:  mux.NewRouter(),
		runner:  r,
		riskMgr: riskMgr,
	}
	server.setupRoutes()
	return server
}

// Router exposes the underlying mux.Router, mainly for tests.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api/v1/status", s.handleStatus).Methods("GET")
	s.router.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods("GET")
}

// Start begins serving; blocks until Stop shuts it down or it fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("starting status surface", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	body := map[string]interface{}{}
	if s.runner != nil {
		body["runner"] = s.runner.GetStatus()
	}
	if s.riskMgr != nil {
		body["risk"] = s.riskMgr.GetMetrics()
	}
	if len(body) == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "status sources not yet wired"})
		return
	}
	json.NewEncoder(w).Encode(body)
}
