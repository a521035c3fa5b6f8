package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/cttgateway/pkg/gateway"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// Server is the HTTP server exposing the gateway as a JSON API.
type Server struct {
	port    int
	gateway *gateway.Gateway
	logger  *otelzap.Logger
}

// Config holds server configuration.
type Config struct {
	Port int
}

// New creates a new server instance.
func New(cfg Config, gw *gateway.Gateway, logger *otelzap.Logger) *Server {
	return &Server{
		port:    cfg.Port,
		gateway: gw,
		logger:  logger,
	}
}

// Handler returns the router of the API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/tracking-link/{code}", s.handleTrackingLink)
	r.Post("/manifests", s.handleManifests)

	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", s.handleAccounts)
		r.Route("/{account}", func(r chi.Router) {
			r.Post("/shipments", s.handleSend)
			r.Get("/shipments", s.handleBulkTracking)
			r.Post("/cancel", s.handleCancel)
			r.Get("/tracking", s.handleTracking)
			r.Get("/labels/{code}", s.handleLabel)
			r.Post("/pickups", s.handlePickup)
			r.Post("/validate", s.handleValidate)
			r.Get("/service-types", s.handleServiceTypes)
		})
	})
	return r
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Ctx(r.Context()).Debug("Request served",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
