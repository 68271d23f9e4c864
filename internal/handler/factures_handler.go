package handler

import (
	"net/http"

	"github.com/boddenberg/facture-btp-bfa/internal/domain"
	"github.com/boddenberg/facture-btp-bfa/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Facture list
// ============================================================

func getFacturesHandler(workspaces *service.Workspaces, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/factures")
		defer span.End()

		ws, ok := openWorkspace(w, r.WithContext(ctx), workspaces, logger)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, ws.Factures.View())
	}
}

type filtersRequest struct {
	Imported  domain.ImportedFilter `json:"imported"`
	StartDate domain.Date           `json:"startDate"`
	EndDate   domain.Date           `json:"endDate"`
}

// setFiltersHandler replaces the import status and date filters and reloads once.
func setFiltersHandler(workspaces *service.Workspaces, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/factures/filters")
		defer span.End()

		var req filtersRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		ws, ok := openWorkspace(w, r.WithContext(ctx), workspaces, logger)
		if !ok {
			return
		}
		filter := domain.FilterState{
			Imported: req.Imported,
			Range:    domain.DateRange{Start: req.StartDate, End: req.EndDate},
		}
		if err := ws.Factures.SetFilters(ctx, filter); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, ws.Factures.View())
	}
}

func resetFiltersHandler(workspaces *service.Workspaces, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/factures/filters/reset")
		defer span.End()

		ws, ok := openWorkspace(w, r.WithContext(ctx), workspaces, logger)
		if !ok {
			return
		}
		if err := ws.Factures.ResetFilters(ctx); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, ws.Factures.View())
	}
}

func reloadFacturesHandler(workspaces *service.Workspaces, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/factures/reload")
		defer span.End()

		ws, ok := openWorkspace(w, r.WithContext(ctx), workspaces, logger)
		if !ok {
			return
		}
		if err := ws.Factures.LoadFactures(ctx); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, ws.Factures.View())
	}
}

func toggleSelectionHandler(workspaces *service.Workspaces, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/factures/selection/{id}/toggle")
		defer span.End()

		id, err := int64Param(r, "id")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int64("facture.id", id))

		ws, ok := openWorkspace(w, r.WithContext(ctx), workspaces, logger)
		if !ok {
			return
		}
		ws.Factures.ToggleSelection(id)
		writeJSON(w, http.StatusOK, ws.Factures.View())
	}
}

func toggleSelectAllHandler(workspaces *service.Workspaces, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/factures/selection/toggle-all")
		defer span.End()

		ws, ok := openWorkspace(w, r.WithContext(ctx), workspaces, logger)
		if !ok {
			return
		}
		ws.Factures.ToggleSelectAll()
		writeJSON(w, http.StatusOK, ws.Factures.View())
	}
}
