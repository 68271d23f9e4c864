// Package service holds the facture workflow: dashboard statistics, the
// invoice table with its export, per-user workspaces and authentication.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/boddenberg/facture-btp-bfa/internal/domain"
	"github.com/boddenberg/facture-btp-bfa/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var authTracer = otel.Tracer("service/auth")

// AuthService fronts the identity backend. It performs no validation of
// its own: whatever the backend rejects is surfaced as *domain.ErrAuth.
type AuthService struct {
	provider   port.AuthProvider
	workspaces *Workspaces
	logger     *zap.Logger
}

// NewAuthService creates a new auth service. workspaces may be nil.
func NewAuthService(provider port.AuthProvider, workspaces *Workspaces, logger *zap.Logger) *AuthService {
	return &AuthService{provider: provider, workspaces: workspaces, logger: logger}
}

// SignIn exchanges credentials for a session.
func (s *AuthService) SignIn(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.SignIn")
	defer span.End()

	email := strings.TrimSpace(creds.Email)
	session, err := s.provider.SignIn(ctx, email, creds.Password)
	if err != nil {
		s.logger.Warn("sign in failed", zap.String("email", email), zap.Error(err))
		return nil, asAuthError(err)
	}

	s.logger.Info("user signed in", zap.String("user_id", session.UserID))
	return session, nil
}

// SignUp registers a new account and returns the confirmation message.
func (s *AuthService) SignUp(ctx context.Context, creds domain.Credentials) (*domain.SuccessResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.SignUp")
	defer span.End()

	email := strings.TrimSpace(creds.Email)
	if err := s.provider.SignUp(ctx, email, creds.Password); err != nil {
		s.logger.Warn("sign up failed", zap.String("email", email), zap.Error(err))
		return nil, asAuthError(err)
	}

	s.logger.Info("user signed up", zap.String("email", email))
	return &domain.SuccessResponse{Message: domain.SignUpSucceededMessage}, nil
}

// SignOut revokes the session and drops the user's workspace. The
// workspace is dropped even when the backend call fails.
func (s *AuthService) SignOut(ctx context.Context, identity domain.Identity) error {
	ctx, span := authTracer.Start(ctx, "AuthService.SignOut")
	defer span.End()

	if s.workspaces != nil {
		s.workspaces.Drop(identity.UserID)
	}
	if err := s.provider.SignOut(ctx, identity.Token); err != nil {
		s.logger.Error("sign out failed", zap.String("user_id", identity.UserID), zap.Error(err))
		return err
	}
	return nil
}

// Authenticate resolves a bearer token into an identity.
func (s *AuthService) Authenticate(token string) (*domain.Identity, error) {
	id, err := s.provider.VerifyToken(token)
	if err != nil {
		var unauth *domain.ErrUnauthorized
		if errors.As(err, &unauth) {
			return nil, err
		}
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	return id, nil
}

// asAuthError keeps backend auth messages and wraps anything else.
func asAuthError(err error) error {
	var authErr *domain.ErrAuth
	if errors.As(err, &authErr) {
		return authErr
	}
	var circuit *domain.ErrCircuitOpen
	var ext *domain.ErrExternalService
	if errors.As(err, &circuit) || errors.As(err, &ext) {
		return err
	}
	return &domain.ErrAuth{Err: err}
}
