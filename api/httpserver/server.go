// Package httpserver exposes the market service over a JSON HTTP API.
// Handlers translate requests into service calls; all matching rules
// live in the domain.
package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type Config struct {
	Addr string
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and wires the logging middleware.
// metricsHandler serves the Prometheus registry; pass nil to disable.
func NewServer(cfg Config, h *Handler, metricsHandler http.Handler, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.Health)

	mux.HandleFunc("POST /api/books", h.CreateOrderBook)
	mux.HandleFunc("GET /api/books", h.ListOrderBooks)
	mux.HandleFunc("GET /api/books/{id}", h.GetDetail)
	mux.HandleFunc("POST /api/books/{id}/itayose", h.RunItayose)

	mux.HandleFunc("POST /api/books/{id}/orders", h.PlaceOrder)
	mux.HandleFunc("GET /api/books/{id}/orders/{orderID}", h.GetOrder)
	mux.HandleFunc("DELETE /api/books/{id}/orders/{orderID}", h.CancelOrder)

	mux.HandleFunc("GET /api/books/{id}/prices", h.BestPrices)
	mux.HandleFunc("POST /api/books/{id}/unwind", h.UnwindPosition)
	mux.HandleFunc("GET /api/books/{id}/estimate", h.Estimate)

	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	var root http.Handler = mux
	root = logging(logger)(root)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           root,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
