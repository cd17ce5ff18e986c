// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/krre/ocean-backend/internal/logging"
)

// NewHTTPHandler mounts the RPC router behind the shared middleware
// chain. Anything that is not POST /api answers 400 Bad request.
func NewHTTPHandler(rt *Router, rateLimit int) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}))
	if rateLimit > 0 {
		r.Use(httprate.LimitByIP(rateLimit, time.Minute))
	}

	r.Post("/api", rt.ServeHTTP)
	r.NotFound(BadRequest)
	r.MethodNotAllowed(BadRequest)

	return r
}

// ServerService runs an http.Server under the supervision tree. With
// cert and key files set it serves TLS; the metrics listener leaves
// them empty.
type ServerService struct {
	server          *http.Server
	certFile        string
	keyFile         string
	shutdownTimeout time.Duration
	name            string
}

// NewServerService wraps the HTTPS API listener.
func NewServerService(addr string, handler http.Handler, certFile, keyFile string) *ServerService {
	return &ServerService{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		certFile:        certFile,
		keyFile:         keyFile,
		shutdownTimeout: 10 * time.Second,
		name:            "api-server",
	}
}

// NewMetricsService wraps a plain-HTTP /metrics listener over the given
// Prometheus registry.
func NewMetricsService(addr string, registry *prometheus.Registry) *ServerService {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return &ServerService{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: 5 * time.Second,
		name:            "metrics-server",
	}
}

// Serve implements suture.Service. It blocks until the listener fails or
// the supervisor cancels the context, then shuts down gracefully.
func (s *ServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.certFile != "" {
			err = s.server.ListenAndServeTLS(s.certFile, s.keyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logging.Info().Str("addr", s.server.Addr).Str("service", s.name).Msg("Listener started")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%s failed: %w", s.name, err)
		}
		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s shutdown failed: %w", s.name, err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *ServerService) String() string {
	return s.name
}
