package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/solution-studio/ai-studio/internal/catalog"
	"github.com/solution-studio/ai-studio/internal/knowledge"
	"github.com/solution-studio/ai-studio/internal/observability"
	"github.com/solution-studio/ai-studio/internal/platform/httpx"
	"github.com/solution-studio/ai-studio/internal/proposal"
	"github.com/solution-studio/ai-studio/internal/rbac"
	"github.com/solution-studio/ai-studio/internal/shared"
	"github.com/solution-studio/ai-studio/internal/twin"
	"github.com/solution-studio/ai-studio/internal/users"
	"github.com/solution-studio/ai-studio/internal/wizard"
	"github.com/solution-studio/ai-studio/jobs"
	"github.com/solution-studio/ai-studio/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics

	SessionHandler   *SessionHandler
	RBACHandler      *rbac.Handler
	UsersHandler     *users.Handler
	CatalogHandler   *catalog.Handler
	WizardHandler    *wizard.Handler
	TwinHandler      *twin.Handler
	ProposalHandler  *proposal.Handler
	KnowledgeHandler *knowledge.Handler
	ReportHandler    *report.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with the studio defaults.
func NewRouter(params RouterParams) http.Handler {
	mwCfg := MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}

	r := chi.NewRouter()
	r.Use(BaseMiddleware(mwCfg)...)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", r.Method+" is not supported here")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.ReportHandler != nil {
		r.Route("/report", params.ReportHandler.MountRoutes)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(APIMiddleware(mwCfg)...)

		if params.TwinHandler != nil {
			params.TwinHandler.MountStream(api)
		}

		api.Group(func(g chi.Router) {
			g.Use(RequestMiddleware(mwCfg)...)
			if params.SessionHandler != nil {
				g.Route("/session", params.SessionHandler.MountRoutes)
			}
			if params.RBACHandler != nil {
				params.RBACHandler.MountRoutes(g)
			}
			if params.UsersHandler != nil {
				params.UsersHandler.MountRoutes(g)
			}
			if params.CatalogHandler != nil {
				g.Route("/catalog", params.CatalogHandler.MountRoutes)
			}
			if params.WizardHandler != nil {
				params.WizardHandler.MountRoutes(g)
			}
			if params.TwinHandler != nil {
				params.TwinHandler.MountRoutes(g)
			}
			if params.ProposalHandler != nil {
				params.ProposalHandler.MountRoutes(g)
			}
			if params.KnowledgeHandler != nil {
				params.KnowledgeHandler.MountRoutes(g)
			}
		})
	})
	return r
}
