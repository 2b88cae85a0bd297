// Package api exposes the HTTP surface: ingestion, risk scoring, SAR
// lifecycle and evidence endpoints.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/ingest"
	"github.com/opensource-finance/harrier/internal/sar"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, sars *sar.Service, ingestSvc *ingest.Service, version string) *Server {
	handler := NewHandler(repo, cache, sars, ingestSvc, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	router.Route("/api", func(r chi.Router) {
		// Customers
		r.Get("/customers", handler.ListCustomers)
		r.Post("/customers", handler.CreateCustomer)
		r.Get("/customers/{id}", handler.GetCustomer)

		// Transactions and alerts
		r.Get("/transactions", handler.ListTransactions)
		r.Get("/alerts", handler.ListAlerts)

		// Bulk ingestion
		r.Post("/data/upload", handler.Upload)
		r.Post("/data/upload-csv", handler.UploadCSV)

		// Risk scoring
		r.Post("/risk-scoring/customers/{customerId}", handler.ScoreCustomer)

		// SAR lifecycle
		r.Get("/sars", handler.ListSars)
		r.Post("/sars/generate", handler.GenerateSar)
		r.Get("/sars/{id}", handler.GetSar)
		r.Put("/sars/{sarId}/sections/{sectionId}", handler.EditSection)
		r.Get("/sars/{id}/compare", handler.CompareSar)
		r.Get("/sars/{id}/audit-trail", handler.AuditTrail)

		// Evidence resolution
		r.Get("/sentences/{sentenceId}/explain", handler.ExplainSentence)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
