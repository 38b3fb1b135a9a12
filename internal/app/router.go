package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/epicevents/epicevents/internal/auth"
	"github.com/epicevents/epicevents/internal/clients"
	"github.com/epicevents/epicevents/internal/contracts"
	"github.com/epicevents/epicevents/internal/events"
	"github.com/epicevents/epicevents/internal/observability"
	"github.com/epicevents/epicevents/internal/shared"
	"github.com/epicevents/epicevents/internal/users"
	"github.com/epicevents/epicevents/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	AuthHandler      *auth.Handler
	UsersHandler     *users.Handler
	ClientsHandler   *clients.Handler
	ContractsHandler *contracts.Handler
	EventsHandler    *events.Handler
	JobsHandler      *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(params.AuthHandler.RequireIdentity)
		r.Use(RequireDeleteConfirmation)

		r.Route("/users", params.UsersHandler.MountRoutes)
		r.Route("/clients", params.ClientsHandler.MountRoutes)
		r.Route("/contracts", params.ContractsHandler.MountRoutes)
		r.Route("/events", params.EventsHandler.MountRoutes)
	})

	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
