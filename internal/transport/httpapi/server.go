package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/fintrack/paper_trading_service/config"
)

type Server struct {
	server *http.Server
}

func NewServer(cfg *config.Config, ctrl *Controller) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", ctrl.handleHealth)
	mux.HandleFunc("/api/accounts", ctrl.handleCreateAccount)
	mux.HandleFunc("/api/accounts/", ctrl.routeAccounts)
	mux.HandleFunc("/api/quotes/", ctrl.handleQuote)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
			Handler:      requestLogger(mux),
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		},
	}
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server (blocking).
func (s *Server) Start() error {
	slog.Info("starting HTTP server", slog.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
