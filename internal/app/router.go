package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/toursync/toursync-admin/internal/auth"
	"github.com/toursync/toursync-admin/internal/branches"
	"github.com/toursync/toursync-admin/internal/observability"
	"github.com/toursync/toursync-admin/internal/platform/httpx"
	"github.com/toursync/toursync-admin/internal/session"
	"github.com/toursync/toursync-admin/internal/shared"
	"github.com/toursync/toursync-admin/internal/users"
	"github.com/toursync/toursync-admin/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Sessions        *session.Manager
	Refresher       *session.Refresher
	CSRFManager     *shared.CSRFManager
	AuthHandler     *auth.Handler
	UsersHandler    *users.Handler
	BranchesHandler *branches.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with TourSync defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Logger)
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:    params.Logger,
		Config:    params.Config,
		Sessions:  params.Sessions,
		Refresher: params.Refresher,
		CSRF:      params.CSRFManager,
		Metrics:   params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.BranchesHandler != nil {
			r.Route("/branches", params.BranchesHandler.MountRoutes)
		}
	})
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil && (params.Config == nil || params.Config.MetricsEnabled) {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}
