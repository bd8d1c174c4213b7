package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"francoggm/terminal-payments-demo/internal/app/server/handlers"
	"francoggm/terminal-payments-demo/internal/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Writes must outlast a full payment poll before the redirect is sent.
const writeTimeoutSlack = 30 * time.Second

type Server struct {
	cfg        *config.Config
	router     *chi.Mux
	handlers   *handlers.Handlers
	httpServer *http.Server
	logger     *slog.Logger
}

func NewServer(cfg *config.Config, h *handlers.Handlers, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	srv := &Server{
		cfg:      cfg,
		router:   chi.NewRouter(),
		handlers: h,
		logger:   logger,
	}

	srv.registerRoutes()

	srv.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           srv.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Poll.Timeout + writeTimeoutSlack,
		IdleTimeout:       60 * time.Second,
	}

	return srv
}

func (s *Server) registerRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)

	s.router.Get("/", s.handlers.Index)
	s.router.Get("/terminal-config", s.handlers.TerminalConfig)
	s.router.Post("/add-terminal", s.handlers.AddTerminal)
	s.router.Get("/demo", s.handlers.Demo)
	s.router.Post("/simulate-payment", s.handlers.SimulatePayment)
	s.router.Post("/webhook", s.handlers.Webhook)

	s.router.Get("/payments-summary", s.handlers.GetPaymentsSummary)
	s.router.Post("/purge-payments", s.handlers.PurgePayments)
	s.router.Get("/health", s.handlers.Health)
	s.router.Handle("/metrics", promhttp.Handler())
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("server listening", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
