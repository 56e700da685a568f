package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/meltforce/mesoplan/internal/assign"
	"github.com/meltforce/mesoplan/internal/expand"
	"github.com/meltforce/mesoplan/internal/lifecycle"
	"github.com/meltforce/mesoplan/internal/models"
)

// Store is everything the HTTP API reads and writes. Both *storage.DB and
// *memstore.Store satisfy it.
type Store interface {
	lifecycle.Store
	assign.Store
	CreateMesocycle(ctx context.Context, m *models.Mesocycle) error
	ListMesocycles(ctx context.Context, f models.MesocycleFilter) ([]models.MesocycleSummary, error)
	UpsertStudent(ctx context.Context, s *models.Student) error
}

// Options configures the engine behind the API.
type Options struct {
	APIKey            string
	Expand            expand.Options
	TransitionRetries int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store     Store
	lifecycle *lifecycle.Service
	assign    *assign.Service
	expand    expand.Options
	log       *slog.Logger
	apiKey    string
	now       func() time.Time
	router    chi.Router
}

// New creates a new Server with all routes configured.
func New(store Store, opts Options, log *slog.Logger) *Server {
	s := &Server{
		store:     store,
		lifecycle: lifecycle.NewService(store, opts.TransitionRetries, log),
		assign:    assign.NewService(store, log),
		expand:    opts.Expand,
		log:       log,
		apiKey:    opts.APIKey,
		now:       time.Now,
		router:    chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	// Authoring and lifecycle writes (API key required)
	s.router.Group(func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/api/v1/templates", s.handleCreateTemplate)
		r.Post("/api/v1/mesocycles/{id}/status", s.handleTransition)
		r.Delete("/api/v1/mesocycles/{id}", s.handleDeleteMesocycle)
		r.Patch("/api/v1/mesocycles/{id}/sets/{setId}/amrap", s.handleSetAmrap)
		r.Post("/api/v1/assignments", s.handleCreateAssignment)
		r.Put("/api/v1/students/{id}", s.handleUpsertStudent)
	})

	// Read endpoints (no auth, tsnet handles access)
	s.router.Post("/api/v1/templates/preview", s.handlePreviewTemplate)
	s.router.Get("/api/v1/mesocycles", s.handleListMesocycles)
	s.router.Get("/api/v1/mesocycles/{id}", s.handleGetMesocycle)
	s.router.Get("/api/v1/mesocycles/{id}/export.xlsx", s.handleExportMesocycle)
	s.router.Get("/api/v1/students/{id}", s.handleGetStudent)
	s.router.Get("/api/v1/students/{id}/mesocycles", s.handleStudentMesocycles)
	s.router.Get("/api/v1/macrocycles/{id}", s.handleGetMacrocycle)
	s.router.Get("/api/v1/status-transitions", s.handleStatusTransitions)
}

func (s *Server) expandOptions() expand.Options {
	opts := s.expand
	if opts.Now == nil {
		opts.Now = s.now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.New
	}
	return opts
}
