// Package httpapi exposes the worksheet generator to the browser over HTTP and WebSocket.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/p-n-ai/pai-worksheet/internal/curriculum"
	"github.com/p-n-ai/pai-worksheet/internal/generation"
	"github.com/p-n-ai/pai-worksheet/internal/session"
)

// requestTimeout bounds every non-streaming request, including the LLM round trip.
const requestTimeout = 2 * time.Minute

// Checker is a dependency reported by /readyz.
type Checker interface {
	Name() string
	HealthCheck(ctx context.Context) error
}

// Server holds the handlers' dependencies.
type Server struct {
	sessions  *session.Manager
	generator generation.Generator
	catalog   *curriculum.Catalog
	checkers  []Checker
	origins   []string
}

// Option configures a Server.
type Option func(*Server)

// WithCheckers adds dependencies to the readiness probe.
func WithCheckers(checkers ...Checker) Option {
	return func(s *Server) {
		s.checkers = append(s.checkers, checkers...)
	}
}

// WithAllowedOrigins sets the CORS and WebSocket origin allow list.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// NewServer creates a Server. The generator serves the stateless action endpoint; sessions use their own.
func NewServer(sessions *session.Manager, generator generation.Generator, catalog *curriculum.Catalog, opts ...Option) *Server {
	s := &Server{
		sessions:  sessions,
		generator: generator,
		catalog:   catalog,
		origins:   []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Disposition", "Content-Length"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	r.Route("/api", func(r chi.Router) {
		timeout := middleware.Timeout(requestTimeout)

		r.With(timeout).HandleFunc("/generator", s.handleGenerator)
		r.With(timeout).Get("/catalog", s.handleCatalog)
		r.With(timeout).Post("/sessions", s.handleCreateSession)

		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			// Long-lived; no request timeout.
			r.Get("/ws", s.handleWebSocket)

			r.Group(func(r chi.Router) {
				r.Use(timeout)
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)
				r.Put("/grade", s.handleSetGrade)
				r.Put("/units", s.handleToggleUnit)
				r.Put("/subtopics", s.handleSetSubTopics)
				r.Put("/difficulty", s.handleSetDifficulty)
				r.Post("/generate", s.handleGenerate)
				r.Post("/select", s.handleSelect)
				r.Post("/problems/{problemID}/replace", s.handleReplace)
				r.Delete("/problems/{problemID}", s.handleRemove)
				r.Get("/export.docx", s.handleExport(session.FormatDOCX))
				r.Get("/export.xlsx", s.handleExport(session.FormatXLSX))
			})
		})
	})

	return r
}

// requestLogger logs one line per request with slog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
