// Package api exposes enrichment sessions, prompt templates, the run ledger
// and a worker-compatible extraction endpoint over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/pim-enrich/internal/extraction"
	"github.com/sells-group/pim-enrich/internal/model"
	"github.com/sells-group/pim-enrich/internal/session"
)

// Sessions creates and looks up live sessions. *session.Manager satisfies it.
type Sessions interface {
	Create(ctx context.Context, productUUID string) (*session.Session, error)
	Get(id string) (*session.Session, error)
	Delete(id string)
}

// Prompts lists and resolves prompt templates. *registry.Registry satisfies it.
type Prompts interface {
	Get(id string) model.PromptTemplate
	List() []model.PromptTemplate
}

// RunLister reads the run ledger.
type RunLister interface {
	ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error)
}

// Deps are the collaborators of the server. Runs and Extractor may be nil;
// the matching routes then answer 404.
type Deps struct {
	Sessions  Sessions
	Prompts   Prompts
	Runs      RunLister
	Extractor extraction.Extractor
}

// Config tunes the server.
type Config struct {
	AllowedOrigins []string
	// APIKey guards POST /v1/extract when set.
	APIKey         string
	MaxFileBytes   int64
	SupportedTypes []string
}

// Server is the HTTP API.
type Server struct {
	deps Deps
	cfg  Config
}

// New creates a Server.
func New(deps Deps, cfg Config) *Server {
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	return &Server{deps: deps, cfg: cfg}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/prompts", s.listPrompts)
		r.Get("/runs", s.listRuns)

		r.With(s.requireAPIKey).Post("/extract", s.workerExtract)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.createSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getSession)
				r.Delete("/", s.deleteSession)
				r.Post("/extract", s.extract)
				r.Post("/toggle", s.toggle)
				r.Post("/edit", s.edit)
				r.Post("/select-all", s.selectAll)
				r.Post("/deselect-all", s.deselectAll)
				r.Post("/save", s.save)
				r.Post("/cancel", s.cancel)
			})
		})
	})

	return r
}

// requestLogger logs each request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
		)
	})
}
