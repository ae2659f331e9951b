// Package api serves the aggregation tables as JSON for the dashboard
// and exposes refresh control.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/regstock/internal/aggregate"
	"github.com/dgallion1/regstock/internal/config"
	"github.com/dgallion1/regstock/internal/corpus"
	"github.com/dgallion1/regstock/internal/pipeline"
)

// Runs is the pipeline surface the server needs. *pipeline.Runner
// satisfies it; tests substitute a stub.
type Runs interface {
	Latest() (*aggregate.Tables, string)
	Trigger() (*pipeline.Run, error)
	GetRun(id string) *pipeline.Run
}

// Server is the HTTP API server for regstock.
type Server struct {
	router   chi.Router
	runs     Runs
	store    *corpus.Store
	assigner aggregate.Assigner
	log      *slog.Logger
	cfg      config.Config
}

// NewServer creates and configures the HTTP server. The store and
// assigner are used to recompute tables when a request overrides the
// configured aggregation options.
func NewServer(runs Runs, store *corpus.Store, assigner aggregate.Assigner, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		runs:     runs,
		store:    store,
		assigner: assigner,
		log:      log,
		cfg:      cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public read endpoints.
	r.Get("/health", s.handleHealth)
	r.Get("/api/stock", s.handleStock)
	r.Get("/api/industries", s.handleIndustries)
	r.Get("/api/industries/{division}/legislation", s.handleIndustryLegislation)
	r.Get("/api/index", s.handleIndex)
	r.Get("/api/documents", s.handleDocuments)

	// Mutating and operational endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/refresh", s.handleRefresh)
		r.Get("/api/runs", s.handleRunHistory)
		r.Get("/api/runs/{runID}", s.handleRun)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, runID := s.runs.Latest()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"latest_run": runID,
	})
}
