// Package server exposes a running machine over the network. All machine
// access is serialized through a Worker; the inspection service is served
// with connect using a CBOR codec.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// shutdownTimeout bounds how long in-flight requests get after the serve
// context is cancelled.
const shutdownTimeout = 5 * time.Second

// Server hosts the inspection service for one worker.
type Server struct {
	worker *Worker
	logger *zap.Logger
	mux    *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Server wrapping the given worker.
func New(w *Worker, opts ...Option) *Server {
	s := &Server{
		worker: w,
		logger: zap.L(),
		mux:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("server")

	path, handler := NewInspectHandler(NewInspectService(w))
	s.mux.Handle(path, handler)
	return s
}

// Handler returns the HTTP handler for all services.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("inspect service listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("service", InspectServiceName))

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("shutdown", zap.Error(err))
			return err
		}
		s.logger.Info("inspect service stopped")
		return nil
	}
}
