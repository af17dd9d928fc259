package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/ticketchain/service/metrics"
	natspkg "github.com/brojonat/ticketchain/service/nats"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// Server represents the HTTP server for the ticket API.
type Server struct {
	addr       string
	tickets    TicketService
	store      SubmissionStore
	publisher  natspkg.Publisher
	subscriber natspkg.Subscriber
	confirmer  Confirmer
	renderer   *TemplateRenderer
	metrics    *metrics.Metrics
	logger     *slog.Logger
	server     *http.Server
}

// New creates a new HTTP server around the ticket service.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, tickets TicketService, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:    addr,
		tickets: tickets,
		metrics: m,
		logger:  logger,
	}
}

// WithStore records accepted submissions and enables GET /api/submissions.
func (s *Server) WithStore(store SubmissionStore) *Server {
	s.store = store
	return s
}

// WithPublisher publishes an event for every accepted submission.
func (s *Server) WithPublisher(publisher natspkg.Publisher) *Server {
	s.publisher = publisher
	return s
}

// WithSubscriber enables the SSE ticket stream.
func (s *Server) WithSubscriber(subscriber natspkg.Subscriber) *Server {
	s.subscriber = subscriber
	return s
}

// WithConfirmer starts a confirmation workflow for every accepted submission.
func (s *Server) WithConfirmer(confirmer Confirmer) *Server {
	s.confirmer = confirmer
	return s
}

// WithTemplates adds template rendering support to the server using embedded files
func (s *Server) WithTemplates() error {
	renderer, err := NewTemplateRenderer(s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize templates: %w", err)
	}
	s.renderer = renderer
	s.logger.Info("HTML templates loaded from embedded files")
	return nil
}

// Handler builds the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, name)(h))
	}

	hooks := submitHooks{store: s.store, publisher: s.publisher, confirmer: s.confirmer}
	route("POST /api/soroban", "/api/soroban", handleSorobanAPI(s.tickets, hooks, s.logger))

	if s.store != nil {
		route("GET /api/submissions", "/api/submissions", handleListSubmissions(s.store, s.logger))
	} else {
		s.logger.Warn("store not configured, submissions endpoint disabled")
	}

	if s.subscriber != nil {
		route("GET /api/stream/tickets", "/api/stream/tickets", handleStreamTickets(s.subscriber, s.metrics, s.logger))
		s.logger.Info("SSE streaming endpoint enabled")
	} else {
		s.logger.Warn("NATS subscriber not configured, streaming endpoint disabled")
	}

	if s.renderer != nil {
		route("GET /{$}", "/", handleDashboard(s.renderer, s.tickets, s.subscriber != nil))
		s.logger.Info("HTML dashboard enabled")
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	return corsMiddleware(requestIDMiddleware(recoverMiddleware(s.logger)(mux)))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// No write timeout: SSE streams stay open for the life of the client.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	// Close the subscriber first (disconnects all SSE clients)
	if s.subscriber != nil {
		s.subscriber.Close()
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// recoverMiddleware answers panics with a JSON 500.
func recoverMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.ErrorContext(r.Context(), "handler panicked",
					"path", r.URL.Path,
					"request_id", RequestID(r.Context()),
					"panic", rec,
				)
				msg := "Unknown error"
				if err, ok := rec.(error); ok {
					msg = err.Error()
				}
				writeError(w, msg, http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// requestIDMiddleware echoes the caller's X-Request-ID or assigns a new one.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// RequestID returns the request ID assigned by the server, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
