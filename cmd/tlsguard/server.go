package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/csmith/tlsguard/enforce"
	"github.com/csmith/tlsguard/metrics"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const (
	shutdownTimeout = time.Second * 5
)

type server struct {
	srv     *http.Server
	errChan chan<- error
}

func newServer(handler http.Handler, errChan chan<- error) *server {
	return &server{
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		errChan: errChan,
	}
}

func (s *server) start(listener net.Listener) {
	if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.errChan <- fmt.Errorf("server on %s failed: %w", listener.Addr(), err)
	}
}

func (s *server) stop(ctx context.Context) {
	timeoutContext, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	_ = s.srv.Shutdown(timeoutContext)
}

// newRouter builds the handler chain for incoming requests: every request goes through the guard, and
// those that it lets through are passed on to the upstream.
func newRouter(guard *enforce.Guard, upstream http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(guard.Middleware)
	r.Handle("/*", upstream)
	return r
}

func newMetricsRouter(recorder *metrics.Recorder) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Method(http.MethodGet, "/metrics", recorder.Handler())
	return r
}
