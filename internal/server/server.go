package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/meltforce/haetable/internal/events"
	"github.com/meltforce/haetable/internal/ingest"
	"github.com/meltforce/haetable/internal/mcp"
	"github.com/meltforce/haetable/internal/models"
	"github.com/meltforce/haetable/internal/storage"
)

// Ingester runs a decoded payload through the pipeline. *hae.Provider
// implements it.
type Ingester interface {
	Ingest(ctx context.Context, payload *models.HAEPayload) *ingest.Result
}

// DeliveryRecorder counts processed deliveries. *metrics.Metrics implements it.
type DeliveryRecorder interface {
	RecordDelivery(status string)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	hae        Ingester
	journal    storage.Journal
	events     events.Publisher
	inspect    mcp.DataSource
	recorder   DeliveryRecorder
	metrics    http.Handler
	mcp        http.Handler
	webhookKey string
	log        *slog.Logger
	router     chi.Router
}

// Option configures optional server dependencies.
type Option func(*Server)

// WithWebhookKey requires X-API-Key on ingest endpoints.
func WithWebhookKey(key string) Option {
	return func(s *Server) { s.webhookKey = key }
}

// WithPublisher publishes a summary of every delivery.
func WithPublisher(p events.Publisher) Option {
	return func(s *Server) { s.events = p }
}

// WithMetrics counts deliveries on rec and serves h at /metrics.
func WithMetrics(rec DeliveryRecorder, h http.Handler) Option {
	return func(s *Server) {
		s.recorder = rec
		s.metrics = h
	}
}

// WithInspector enables the table inspection endpoints.
func WithInspector(ds mcp.DataSource) Option {
	return func(s *Server) { s.inspect = ds }
}

// WithMCP mounts an MCP transport at /mcp.
func WithMCP(h http.Handler) Option {
	return func(s *Server) { s.mcp = h }
}

// New creates a new Server with all routes configured.
func New(haeProvider Ingester, journal storage.Journal, log *slog.Logger, opts ...Option) *Server {
	s := &Server{
		hae:     haeProvider,
		journal: journal,
		events:  events.Nop{},
		log:     log,
		router:  chi.NewRouter(),
	}
	for _, o := range opts {
		o(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(Recovery(s.log))
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
	})

	// Ingest endpoints. The key check runs only on POST so other methods
	// get 405 regardless of credentials.
	ingestRoute := s.router.With(APIKeyAuth(s.webhookKey), Decompress)
	ingestRoute.Post("/webhook", s.handleWebhook)
	ingestRoute.Post("/api/v1/ingest", s.handleWebhook)

	s.router.Get("/healthz", s.handleHealth)

	// Read-only API; shares the webhook key when one is set.
	s.router.Group(func(r chi.Router) {
		r.Use(APIKeyAuth(s.webhookKey))
		r.Get("/api/v1/deliveries", s.handleDeliveries)
		if s.inspect != nil {
			r.Get("/api/v1/tables", s.handleTables)
			r.Get("/api/v1/tables/{name}/dates", s.handleTableDates)
		}
		if s.mcp != nil {
			r.Handle("/mcp", s.mcp)
		}
	})

	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics)
	}
}
