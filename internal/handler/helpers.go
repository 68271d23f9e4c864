package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/boddenberg/facture-btp-bfa/internal/domain"
	"github.com/boddenberg/facture-btp-bfa/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON reads the request body into v and writes a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var validation *domain.ErrValidation
		if errors.As(err, &validation) {
			writeError(w, http.StatusBadRequest, validation.Error())
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// int64Param parses a numeric chi URL parameter.
func int64Param(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &domain.ErrValidation{Field: name, Message: "must be an integer"}
	}
	return id, nil
}

// openWorkspace returns the caller's workspace, mounting it on first use.
func openWorkspace(w http.ResponseWriter, r *http.Request, workspaces *service.Workspaces, logger *zap.Logger) (*service.Workspace, bool) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	ws, err := workspaces.Open(r.Context(), identity)
	if err != nil {
		handleServiceError(w, err, logger)
		return nil, false
	}
	return ws, true
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var validation *domain.ErrValidation
	var unauthorized *domain.ErrUnauthorized
	var conflict *domain.ErrConflict
	var authErr *domain.ErrAuth
	var queryErr *domain.ErrQuery
	var updateErr *domain.ErrUpdate
	var exportErr *domain.ErrExport
	var external *domain.ErrExternalService

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &conflict):
		logger.Debug("conflict", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &authErr):
		logger.Info("auth rejected", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, authErr.Error())
	case errors.Is(err, domain.ErrEmptySelection):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrExportInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &updateErr):
		logger.Error("mark imported failed", zap.String("export_id", updateErr.ExportID), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &queryErr):
		logger.Error("facture query failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &exportErr):
		logger.Error("spreadsheet export failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	case errors.As(err, &external):
		logger.Error("external service error", zap.String("service", external.Service), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
