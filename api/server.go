// Package api is the local agent: a small HTTP server that receives the
// mobile-money gateway redirect and exposes health and metrics endpoints.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/satanpticoeur/social-logement-app/config"
	"github.com/satanpticoeur/social-logement-app/core/payments"
	"github.com/satanpticoeur/social-logement-app/core/utils"
)

type Server struct {
	cfg        *config.AppConfig
	router     chi.Router
	httpServer *http.Server
	logger     *utils.Logger

	status     StatusSource
	worker     Worker
	tracker    *payments.Tracker
	reconciler PaymentReconciler
	registry   *prometheus.Registry
	collectors []prometheus.Collector
	limiter    *requestLimiter
}

func NewServer(cfg *config.AppConfig, logger *utils.Logger, deps ServerDeps) *Server {
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	if cfg == nil {
		cfg = &config.AppConfig{}
	}
	tracker := deps.Tracker
	if tracker == nil {
		tracker = payments.NewTracker()
	}
	s := &Server{
		cfg:        cfg,
		router:     chi.NewRouter(),
		logger:     logger,
		status:     deps.Status,
		worker:     deps.Worker,
		tracker:    tracker,
		reconciler: deps.Reconciler,
		registry:   deps.Registry,
		collectors: deps.Collectors,
		limiter:    newLimiter(returnLimiterCapacity, time.Minute),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.securityHeadersMiddleware)
	s.registerObservabilityRoutes()
	s.router.With(s.rateLimitMiddleware).Get(payments.ReturnPath, s.paymentReturn)
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONPlain(w, http.StatusNotFound, map[string]any{"ok": false, "error": "not found"})
	})
}

// Start runs the background worker and serves until Stop is called.
func (s *Server) Start(ctx context.Context) error {
	if s.worker != nil {
		if err := s.worker.StartWithContext(ctx); err != nil {
			return err
		}
	}
	s.httpServer = &http.Server{
		Addr:              s.cfg.Agent.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	s.logger.Printf("agent listening on %s", s.cfg.Agent.ListenAddr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Stop(ctx context.Context) error {
	if s.worker != nil {
		if err := s.worker.StopWithContext(ctx); err != nil {
			s.logger.Warnf("stop worker: %v", err)
		}
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
