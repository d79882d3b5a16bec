package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/fieldmap/internal/config"
	"github.com/dgallion1/fieldmap/internal/engine"
	"github.com/dgallion1/fieldmap/internal/metrics"
	"github.com/dgallion1/fieldmap/internal/people"
	"github.com/dgallion1/fieldmap/internal/pipeline"
	"github.com/dgallion1/fieldmap/internal/session"
)

// Deps are the services the API is built on. Orchestrator, People and
// Metrics may be nil; their routes then answer 503.
type Deps struct {
	Engine       *engine.Engine
	Sessions     *session.Store
	Orchestrator *pipeline.Orchestrator
	People       people.Store
	Metrics      *metrics.Collector
}

// Server is the HTTP API server for fieldmap.
type Server struct {
	router       chi.Router
	engine       *engine.Engine
	sessions     *session.Store
	orchestrator *pipeline.Orchestrator
	people       people.Store
	metrics      *metrics.Collector
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(deps Deps, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		engine:       deps.Engine,
		sessions:     deps.Sessions,
		orchestrator: deps.Orchestrator,
		people:       deps.People,
		metrics:      deps.Metrics,
		log:          log,
		cfg:          cfg,
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
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/sessions", s.handleCreateSession)
		r.Route("/api/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Get("/mapping", s.handleMappingForm)
			r.Post("/mapping", s.handleMappingSubmit)
			r.Get("/mapping/export", s.handleMappingExport)
			r.Get("/result", s.handleResult)
			r.Post("/batch", s.handleBatch)
		})
		r.Get("/api/jobs/{jobID}", s.handleJobStatus)

		r.Get("/api/people", s.handleListPeople)
		r.Post("/api/people", s.handleCreatePerson)
		r.Get("/api/people/{id}", s.handleGetPerson)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
	})
}
