// Package api exposes the platform's HTTP surface: the telephony webhook
// endpoint and health checks. Per spec §1's explicit non-goal there is no
// campaign/contact CRUD here — those are operator tooling out of scope.
package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/voicesurvey/platform/internal/webhookingestor"
)

// Server is the platform's HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
}

// NewServer builds a Server wiring the webhook endpoint to ingestor and the
// health checker to db. webhookSecret validates the provider's signature
// header (telephony.ValidateSignature); an empty secret skips validation,
// matching local/dev setups that have no signing key configured.
func NewServer(ingestor *webhookingestor.Ingestor, webhookSecret string, db *sql.DB) *Server {
	h := &webhookHandlers{ingestor: ingestor, webhookSecret: webhookSecret}
	hc := &healthHandlers{db: db, startTime: time.Now()}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", hc.handleHealth)
	r.Get("/health/live", hc.handleLiveness)
	r.Get("/health/ready", hc.handleReadiness)

	r.Post("/webhooks/telephony", h.handleStatusWebhook)
	r.Post("/webhooks/telephony/turn", h.handleTurn)

	return &Server{router: r}
}

// ListenAndServe starts the HTTP server on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      70 * time.Second, // dialogue turns may wait on the LLM adapter (§4.3 call_timeout_seconds default 60s)
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for testing.
func (s *Server) Handler() http.Handler { return s.router }
