package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/iwvelando/microloan/internal/config"
	"go.uber.org/zap"
)

// Server represents the HTTP server lifecycle.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// New constructs a Server for handler using the configured address and
// timeouts.
func New(logger *zap.Logger, cfg config.ServerConfig, handler http.Handler) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Address,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("op", "server.Start"), zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully terminates all active connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server", zap.String("op", "server.Shutdown"))
	return s.httpServer.Shutdown(ctx)
}
