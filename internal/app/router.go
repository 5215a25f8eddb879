package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/obscura-studio/obscura/internal/auth"
	"github.com/obscura-studio/obscura/internal/clients"
	"github.com/obscura-studio/obscura/internal/finance"
	"github.com/obscura-studio/obscura/internal/goals"
	"github.com/obscura-studio/obscura/internal/reports"
	"github.com/obscura-studio/obscura/internal/settings"
	"github.com/obscura-studio/obscura/internal/shared"
	"github.com/obscura-studio/obscura/internal/shoots"
	"github.com/obscura-studio/obscura/jobs"
	"github.com/obscura-studio/obscura/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler     *auth.Handler
	ShootsHandler   *shoots.Handler
	FinanceHandler  *finance.Handler
	ClientsHandler  *clients.Handler
	SettingsHandler *settings.Handler
	GoalsHandler    *goals.Handler
	ReportsHandler  *reports.Handler
	JobsHandler     *jobs.Handler
}

// NewRouter constructs the chi.Router with the studio defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth)
		params.ShootsHandler.MountRoutes(r)
		params.FinanceHandler.MountRoutes(r)
		params.ClientsHandler.MountRoutes(r)
		params.SettingsHandler.MountRoutes(r)
		params.GoalsHandler.MountRoutes(r)
		params.ReportsHandler.MountRoutes(r)
		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler wraps a file server with a one hour Cache-Control header.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
