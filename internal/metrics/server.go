package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mediacompress/internal/logging"
)

// Server exposes /metrics, /healthz and /status.
type Server struct {
	bind     string
	logger   *slog.Logger
	recorder *Recorder

	listener net.Listener
	server   *http.Server
}

// NewServer builds a server for bind. Nothing listens until Listen is called.
func NewServer(bind string, recorder *Recorder, logger *slog.Logger) *Server {
	srv := &Server{
		bind:     bind,
		logger:   logging.NewComponentLogger(logger, "metrics"),
		recorder: recorder,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Get("/status", s.handleStatus)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.recorder.Snapshot()); err != nil {
		s.logger.Debug("status encode failed", logging.Error(err))
	}
}

// Listen binds the listener and returns its address.
func (s *Server) Listen() (net.Addr, error) {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return nil, fmt.Errorf("metrics listen: %w", err)
	}
	s.listener = listener
	s.logger.Info("metrics server listening", logging.String("address", listener.Addr().String()))
	return listener.Addr(), nil
}

// Serve blocks until ctx is cancelled. Listen is called first when it has not
// been. The endpoint is optional: a server failure is logged and Serve returns
// nil so the caller keeps running without it.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if _, err := s.Listen(); err != nil {
			return err
		}
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics shutdown: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logging.ErrorWithContext(s.logger, "metrics server stopped", "metrics_serve_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "restart the daemon to bring the endpoint back"),
			logging.String(logging.FieldImpact, "metrics and status are unavailable; processing continues"),
		)
		return nil
	}
}
