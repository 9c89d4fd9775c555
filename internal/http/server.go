// README: API gateway; wires handlers onto gin and runs the HTTP server until shutdown.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"itinera/internal/ai"
	"itinera/internal/logger"
	"itinera/internal/modules/saved"
)

type ServerDeps struct {
	Provider       ai.Provider
	Saved          *saved.Service
	AllowedOrigins []string
	// StreamTimeout bounds one SSE generation; BufferTimeout one buffered generation.
	StreamTimeout time.Duration
	BufferTimeout time.Duration
}

type Server struct {
	srv *http.Server
}

func NewServer(addr string, deps ServerDeps) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logger.Info("http server shutting down")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
