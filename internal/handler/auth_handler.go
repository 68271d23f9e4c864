package handler

import (
	"net/http"

	"github.com/boddenberg/facture-btp-bfa/internal/domain"
	"github.com/boddenberg/facture-btp-bfa/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Authentication
// ============================================================

func signUpHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/signup")
		defer span.End()

		var req domain.Credentials
		if !decodeJSON(w, r, &req) {
			return
		}

		resp, err := authSvc.SignUp(ctx, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

func signInHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/signin")
		defer span.End()

		var req domain.Credentials
		if !decodeJSON(w, r, &req) {
			return
		}

		session, err := authSvc.SignIn(ctx, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, session)
	}
}

func signOutHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/signout")
		defer span.End()

		identity, ok := IdentityFromContext(ctx)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		if err := authSvc.SignOut(ctx, identity); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "signed out"})
	}
}
