package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/boddenberg/facture-btp-bfa/internal/domain"
	"github.com/boddenberg/facture-btp-bfa/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Export workflow
// ============================================================

func downloadURL(exportID string) string {
	return "/v1/exports/" + exportID + "/download"
}

// writeExportResult answers an export or confirm call. An update failure
// still carries the produced file, so the result is sent with a 502.
func writeExportResult(w http.ResponseWriter, result *domain.ExportResult, err error, status int, logger *zap.Logger) {
	var updateErr *domain.ErrUpdate
	if err != nil && (result == nil || !errors.As(err, &updateErr)) {
		handleServiceError(w, err, logger)
		return
	}
	result.DownloadURL = downloadURL(result.ExportID)
	if err != nil {
		logger.Warn("export left pending",
			zap.String("export_id", updateErr.ExportID),
			zap.Int("count", len(updateErr.IDs)),
			zap.Error(err),
		)
		writeJSON(w, http.StatusBadGateway, result)
		return
	}
	writeJSON(w, status, result)
}

func exportHandler(workspaces *service.Workspaces, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/factures/export")
		defer span.End()

		ws, ok := openWorkspace(w, r.WithContext(ctx), workspaces, logger)
		if !ok {
			return
		}
		result, err := ws.Factures.ExportSelected(ctx)
		if result != nil {
			span.SetAttributes(attribute.String("export.id", result.ExportID))
		}
		writeExportResult(w, result, err, http.StatusCreated, logger)
	}
}

func confirmImportHandler(workspaces *service.Workspaces, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/exports/{exportId}/confirm")
		defer span.End()

		exportID := chi.URLParam(r, "exportId")
		span.SetAttributes(attribute.String("export.id", exportID))

		ws, ok := openWorkspace(w, r.WithContext(ctx), workspaces, logger)
		if !ok {
			return
		}
		result, err := ws.Factures.ConfirmImport(ctx, exportID)
		writeExportResult(w, result, err, http.StatusOK, logger)
	}
}

func pendingExportsHandler(workspaces *service.Workspaces, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/exports/pending")
		defer span.End()

		ws, ok := openWorkspace(w, r.WithContext(ctx), workspaces, logger)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"pending": ws.Factures.PendingExports()})
	}
}

func downloadHandler(workspaces *service.Workspaces, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/exports/{exportId}/download")
		defer span.End()

		exportID := chi.URLParam(r, "exportId")
		span.SetAttributes(attribute.String("export.id", exportID))

		ws, ok := openWorkspace(w, r.WithContext(ctx), workspaces, logger)
		if !ok {
			return
		}
		artifact, err := ws.Factures.Download(ctx, exportID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", artifact.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.FileName))
		w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Data)))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(artifact.Data); err != nil {
			logger.Warn("download interrupted", zap.String("export_id", exportID), zap.Error(err))
		}
	}
}
