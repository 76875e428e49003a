package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	backuphttp "github.com/odyssey-erp/ppestock/internal/backup/http"
	"github.com/odyssey-erp/ppestock/internal/observability"
	"github.com/odyssey-erp/ppestock/internal/platform/httpx"
	producthttp "github.com/odyssey-erp/ppestock/internal/products/http"
)

// HealthFunc reports whether the record store is usable.
type HealthFunc func(r *http.Request) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	ProductHandler *producthttp.Handler
	BackupHandler  *backuphttp.Handler
	Metrics        *observability.Metrics
	Health         HealthFunc
}

// NewRouter constructs the chi.Router for the local API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Health != nil {
			if err := params.Health(r); err != nil {
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		if params.ProductHandler != nil {
			params.ProductHandler.MountRoutes(r)
		}
		if params.BackupHandler != nil {
			params.BackupHandler.MountRoutes(r)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no such route")
	})
	return r
}
