// Package api exposes a backtest submission/results HTTP+WebSocket server:
// POST a run request, poll or stream its progress, then fetch the finished
// RunResult and its TradeRecords. Built on go-chi for routing and
// gorilla/websocket for the equity-curve push, in place of the teacher's
// live-trading REST+streaming surface (auth/orders/live market data are out
// of scope for a backtesting core).
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/bikeshrana/laddertest/internal/config"
	"github.com/bikeshrana/laddertest/internal/core/bar"
	"github.com/bikeshrana/laddertest/internal/metrics"
	"github.com/bikeshrana/laddertest/internal/store"
)

// Server wires together the HTTP router, the run manager, and the
// background resources (data source, result store, metrics) a handler needs.
type Server struct {
	cfg     *config.ServerConfig
	log     zerolog.Logger
	runs    *RunManager
	metrics *metrics.BacktestMetrics
	router  chi.Router
}

// NewServer builds a Server. results may be nil, in which case completed
// runs are not persisted. GetRun/GetTrades always serve from the
// RunManager's in-memory state.
func NewServer(cfg *config.ServerConfig, source bar.HistoricalDataSource, results *store.ResultStore, m *metrics.BacktestMetrics, log zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		log:     log,
		runs:    NewRunManager(source, results, m, log),
		metrics: m,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/runs", func(r chi.Router) {
		r.Post("/", s.handleSubmitRun)
		r.Get("/", s.handleListRuns)
		r.Get("/{runID}", s.handleGetRun)
		r.Get("/{runID}/trades", s.handleGetTrades)
		r.Get("/{runID}/stream", s.handleStreamEquity)
	})

	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe starts the HTTP server on cfg.Host:cfg.Port, returning once
// ctx is canceled and the server has shut down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:      s,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("api server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
