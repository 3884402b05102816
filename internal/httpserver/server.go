// Package httpserver exposes discovery over HTTP.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vulnverified/orbit/internal/httpserver/deps"
	"github.com/vulnverified/orbit/internal/httpserver/handlers"
	"github.com/vulnverified/orbit/internal/httpserver/mw"
	"github.com/vulnverified/orbit/internal/logger"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	http   *http.Server
	logger logger.Logger
}

// New builds the router and HTTP server listening on addr.
func New(addr string, log logger.Logger, d deps.Deps) *Server {
	if d.Logger == nil {
		d.Logger = log
	}

	s := &http.Server{
		Addr:              addr,
		Handler:           Router(log, d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      d.RunTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	if d.RunTimeout <= 0 {
		s.WriteTimeout = 0
	}

	return &Server{
		http:   s,
		logger: log,
	}
}

// Router returns the handler tree.
func Router(log logger.Logger, d deps.Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.GetHead)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(mw.Log(log))

	r.Get("/healthz", handlers.Healthz(d))

	r.Route("/v1", func(r chi.Router) {
		r.With(mw.RateLimit(mw.RateLimitConfig{
			PerMinute:  d.RateLimit.PerMinute,
			Burst:      d.RateLimit.Burst,
			TrustProxy: d.RateLimit.TrustProxy,
		})).Get("/discover", handlers.Discover(d))
	})

	return r
}

// Start runs the HTTP server (blocks until error or shutdown).
func (s *Server) Start() error {
	s.logger.Infof("HTTP server listening on %s", s.http.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server with the provided context deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down...")
	return s.http.Shutdown(ctx)
}
