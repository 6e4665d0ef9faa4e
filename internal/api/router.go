package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apihandler "github.com/maraichr/graphlens/internal/api/handler"
	apimw "github.com/maraichr/graphlens/internal/api/middleware"
	"github.com/maraichr/graphlens/internal/crypto"
	"github.com/maraichr/graphlens/internal/graph"
	"github.com/maraichr/graphlens/internal/metadata"
	"github.com/maraichr/graphlens/internal/store"
)

// RouterDeps holds the wired subsystems the routes depend on.
type RouterDeps struct {
	Executor     *graph.Executor
	Resolver     *graph.Resolver
	Enricher     *metadata.Enricher
	Secrets      *crypto.Box
	DefaultLimit int
}

func NewRouter(logger *slog.Logger, s *store.Store, deps *RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(apimw.Logger(logger))
	r.Use(apimw.CORS)
	r.Use(chimw.Recoverer)

	// Health checks
	health := apihandler.NewHealthHandler(s.Pool())
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	if deps == nil {
		deps = &RouterDeps{}
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/scopes/{scopeID}", func(r chi.Router) {
			query := apihandler.NewQueryHandler(logger, deps.Executor, deps.Enricher, deps.DefaultLimit)
			r.Post("/query", query.Execute)

			schema := apihandler.NewSchemaHandler(logger, deps.Enricher)
			r.Post("/metadata", schema.Discover)

			scopes := apihandler.NewScopeHandler(logger, s, deps.Secrets, deps.Resolver)
			r.Post("/credentials", scopes.UpdateCredentials)
		})
	})

	return r
}
