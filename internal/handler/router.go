package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/facture-btp-bfa/internal/domain"
	"github.com/boddenberg/facture-btp-bfa/internal/infra/observability"
	"github.com/boddenberg/facture-btp-bfa/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Pinger reports the round-trip latency to a backing service.
type Pinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

// NewRouter creates the HTTP router with all routes and middleware.
// backend may be nil when running on the in-memory dev store.
func NewRouter(workspaces *service.Workspaces, authSvc *service.AuthService, backend Pinger, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(backend, logger))
	r.Get("/readyz", readyzHandler(workspaces, authSvc))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/exports", exportMetricsHandler(metrics))

		// =============================================
		// Authentication
		// =============================================
		r.Route("/auth", func(r chi.Router) {
			if authSvc == nil {
				r.Handle("/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
				}))
				return
			}
			r.Post("/signup", signUpHandler(authSvc, logger))
			r.Post("/signin", signInHandler(authSvc, logger))

			r.Group(func(r chi.Router) {
				r.Use(AuthMiddleware(authSvc, logger))
				r.Post("/signout", signOutHandler(authSvc, logger))
			})
		})

		if authSvc == nil || workspaces == nil {
			return
		}

		// =============================================
		// Protected workspace routes
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(authSvc, logger))

			// Dashboard
			r.Get("/dashboard", getDashboardHandler(workspaces, logger))
			r.Put("/dashboard/custom-range", setCustomBoundHandler(workspaces, logger))

			// Facture list
			r.Get("/factures", getFacturesHandler(workspaces, logger))
			r.Put("/factures/filters", setFiltersHandler(workspaces, logger))
			r.Post("/factures/filters/reset", resetFiltersHandler(workspaces, logger))
			r.Post("/factures/reload", reloadFacturesHandler(workspaces, logger))
			r.Post("/factures/selection/toggle-all", toggleSelectAllHandler(workspaces, logger))
			r.Post("/factures/selection/{id}/toggle", toggleSelectionHandler(workspaces, logger))
			r.Post("/factures/export", exportHandler(workspaces, logger))

			// Export artifacts
			r.Get("/exports/pending", pendingExportsHandler(workspaces, logger))
			r.Post("/exports/{exportId}/confirm", confirmImportHandler(workspaces, logger))
			r.Get("/exports/{exportId}/download", downloadHandler(workspaces, logger))
		})
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(backend Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "bfa-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if backend != nil {
			latency, err := backend.Ping(r.Context())
			status := "healthy"
			if err != nil {
				status = "degraded"
				logger.Warn("health: supabase ping failed", zap.Error(err))
			}
			services = append(services, domain.ServiceHealth{
				Name: "supabase", Status: status, LatencyMs: latency.Milliseconds(), LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler(workspaces *service.Workspaces, authSvc *service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if workspaces == nil || authSvc == nil {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "mode": "operational-only"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func exportMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetExportSnapshot())
	}
}
