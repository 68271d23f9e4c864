package memstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/boddenberg/facture-btp-bfa/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTTL         = time.Hour
	bcryptCost        = 10
	minPasswordLength = 6
)

// Messages mirror what GoTrue answers, so dev mode surfaces the same text.
const (
	msgInvalidCredentials = "Invalid login credentials"
	msgAlreadyRegistered  = "User already registered"
	msgWeakPassword       = "Password should be at least 6 characters."
	msgMissingEmail       = "Anonymous sign-ins are disabled"
)

type user struct {
	id           string
	email        string
	passwordHash []byte
}

type authConfig struct {
	secret []byte
	now    func() time.Time
}

func newAuthConfig(secret string) authConfig {
	return authConfig{secret: []byte(secret), now: time.Now}
}

type claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// SignUp registers email with a bcrypt-hashed password.
func (s *Store) SignUp(ctx context.Context, email, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return &domain.ErrAuth{Message: msgMissingEmail}
	}
	if len(password) < minPasswordLength {
		return &domain.ErrAuth{Message: msgWeakPassword}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.users[email]; exists {
		s.mu.Unlock()
		return &domain.ErrAuth{Message: msgAlreadyRegistered}
	}
	u := &user{id: uuid.NewString(), email: email, passwordHash: hash}
	s.users[email] = u
	s.mu.Unlock()

	s.logger.Info("memstore: user registered", zap.String("user_id", u.id))
	if s.seed {
		s.Insert(demoFactures(u.id, s.auth.now())...)
	}
	return nil
}

// SignIn checks the password and issues an access token.
func (s *Store) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	email = strings.ToLower(strings.TrimSpace(email))

	s.mu.RLock()
	u, ok := s.users[email]
	s.mu.RUnlock()
	if !ok {
		return nil, &domain.ErrAuth{Message: msgInvalidCredentials}
	}
	if err := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)); err != nil {
		s.logger.Warn("memstore: failed password attempt", zap.String("user_id", u.id))
		return nil, &domain.ErrAuth{Message: msgInvalidCredentials}
	}

	token, err := s.signAccessToken(u)
	if err != nil {
		return nil, err
	}
	return &domain.Session{
		AccessToken: token,
		ExpiresIn:   int(accessTTL.Seconds()),
		UserID:      u.id,
		Email:       u.email,
	}, nil
}

// SignOut revokes accessToken.
func (s *Store) SignOut(ctx context.Context, accessToken string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.revoked[accessToken] = struct{}{}
	s.mu.Unlock()
	return nil
}

// VerifyToken validates a token issued by SignIn.
func (s *Store) VerifyToken(accessToken string) (*domain.Identity, error) {
	s.mu.RLock()
	_, revoked := s.revoked[accessToken]
	s.mu.RUnlock()
	if revoked {
		return nil, &domain.ErrUnauthorized{Message: "session revoked"}
	}

	c := &claims{}
	_, err := jwt.ParseWithClaims(accessToken, c, func(t *jwt.Token) (any, error) {
		return s.auth.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.auth.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &domain.ErrUnauthorized{Message: "token expired"}
		}
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	if c.Subject == "" {
		return nil, &domain.ErrUnauthorized{Message: "token has no subject"}
	}
	return &domain.Identity{UserID: c.Subject, Email: c.Email, Token: accessToken}, nil
}

func (s *Store) signAccessToken(u *user) (string, error) {
	now := s.auth.now()
	c := claims{
		Email: u.email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.id,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(accessTTL)),
			Issuer:    "memstore",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.auth.secret)
}
