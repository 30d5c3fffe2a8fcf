package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/VrushankPatel/shield-sub001/internal/auth"
	"github.com/VrushankPatel/shield-sub001/internal/ratelimit"
	"github.com/VrushankPatel/shield-sub001/internal/rbac"
	"github.com/VrushankPatel/shield-sub001/internal/rootaccount"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger        *slog.Logger
	Config        *Config
	Authenticator *auth.Authenticator
	Limiter       *ratelimit.Service
	RBACHandler   *rbac.Handler
	RootHandler   *rootaccount.Handler
	Pool          *pgxpool.Pool
}

// NewRouter constructs the chi.Router with shield defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:        params.Logger,
		Config:        params.Config,
		Authenticator: params.Authenticator,
		Limiter:       params.Limiter,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				params.Logger.Error("health check db ping", slog.Any("error", err))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/root", func(root chi.Router) {
			params.RootHandler.MountRoutes(root)
		})
		api.Route("/rbac", func(sub chi.Router) {
			sub.Use(auth.RequirePrincipal)
			params.RBACHandler.MountRoutes(sub)
		})
	})

	return r
}
