package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"trustlab/internal/bootstrap/logging"
	"trustlab/internal/errs"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

type Server struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		shutdownTimeout: shutdownTimeout,
	}
}

// WithShutdownTimeout bounds how long in-flight requests may drain. Non-positive values keep the default.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	if d > 0 {
		s.shutdownTimeout = d
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return errs.Wrapf(err, "listen on %s", s.server.Addr)
	}
	return s.Serve(ctx, listener)
}

func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.server.BaseContext = func(net.Listener) context.Context { return ctx }

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.server.Serve(listener)
	}()
	logging.Info(ctx, "http server started", slog.String("addr", listener.Addr().String()))

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errs.Wrap(err, "serve http")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return errs.Wrap(err, "shutdown http server")
	}
	<-serveErr
	logging.Info(ctx, "http server stopped")
	return nil
}
