package opsurface

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/brightwire/knxlogic/pkg/log"
	"github.com/brightwire/knxlogic/pkg/metrics"
)

// Server is the operational surface (component C10): /health, /ready, and
// /metrics over HTTP. It owns no domain state; metrics.RegisterComponent is
// how the rest of the daemon reports in.
type Server struct {
	httpServer *http.Server
	log        zerolog.Logger
}

// New builds a Server listening on addr.
func New(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/healthz", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/metrics", metrics.Handler())

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: log.WithComponent("opsurface"),
	}
}

// Start runs the server in the background. Listen errors are logged, not
// returned, since this endpoint's failure should not take the daemon down.
func (s *Server) Start() {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("operational surface server stopped")
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the underlying mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
