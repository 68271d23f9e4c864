package handler

import (
	"net/http"

	"github.com/boddenberg/facture-btp-bfa/internal/domain"
	"github.com/boddenberg/facture-btp-bfa/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Dashboard
// ============================================================

// getDashboardHandler reloads the three stat windows and returns them. The
// weekly and monthly windows are recomputed from today on every call.
func getDashboardHandler(workspaces *service.Workspaces, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard")
		defer span.End()

		ws, ok := openWorkspace(w, r.WithContext(ctx), workspaces, logger)
		if !ok {
			return
		}
		ws.Dashboard.Start(ctx)

		writeJSON(w, http.StatusOK, ws.Dashboard.View())
	}
}

type customBoundRequest struct {
	Bound string `json:"bound"`
	Value string `json:"value"`
}

// setCustomBoundHandler edits one bound of the custom window. An empty value
// clears the bound.
func setCustomBoundHandler(workspaces *service.Workspaces, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/dashboard/custom-range")
		defer span.End()

		var req customBoundRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		bound, err := domain.ParseBound(req.Bound)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		value, err := domain.ParseDate(req.Value)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		ws, ok := openWorkspace(w, r.WithContext(ctx), workspaces, logger)
		if !ok {
			return
		}
		ws.Dashboard.SetBound(ctx, bound, value)

		writeJSON(w, http.StatusOK, ws.Dashboard.View())
	}
}
