package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/boddenberg/facture-btp-bfa/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel/attribute"
)

// Auth implements port.AuthProvider over Supabase GoTrue. Access tokens
// are verified locally with the project's JWT secret.
type Auth struct {
	client    *Client
	jwtSecret []byte
}

// NewAuth creates the GoTrue adapter.
func NewAuth(client *Client, jwtSecret string) *Auth {
	return &Auth{client: client, jwtSecret: []byte(jwtSecret)}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// gotrueError covers the error shapes GoTrue has used over time.
type gotrueError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e gotrueError) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func rejected(resp authResponse) error {
	var ge gotrueError
	_ = json.Unmarshal(resp.body, &ge)
	return &domain.ErrAuth{
		Message: ge.text(),
		Err:     fmt.Errorf("gotrue returned %d", resp.status),
	}
}

// SignIn uses the password grant.
func (a *Auth) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SignIn")
	defer span.End()

	var resp authResponse
	err := a.client.call(ctx, "supabase/auth", func() error {
		var err error
		resp, err = a.client.doAuth(ctx, "token?grant_type=password", map[string]string{
			"email":    email,
			"password": password,
		}, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, rejected(resp)
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.body, &tr); err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/auth", Err: fmt.Errorf("decode token: %w", err)}
	}
	span.SetAttributes(attribute.String("user.id", tr.User.ID))

	return &domain.Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    tr.ExpiresIn,
		UserID:       tr.User.ID,
		Email:        tr.User.Email,
	}, nil
}

// SignUp registers a new email/password account.
func (a *Auth) SignUp(ctx context.Context, email, password string) error {
	ctx, span := tracer.Start(ctx, "Supabase.SignUp")
	defer span.End()

	var resp authResponse
	err := a.client.call(ctx, "supabase/auth", func() error {
		var err error
		resp, err = a.client.doAuth(ctx, "signup", map[string]string{
			"email":    email,
			"password": password,
		}, "")
		return err
	})
	if err != nil {
		return err
	}
	if !resp.ok() {
		return rejected(resp)
	}
	return nil
}

// SignOut revokes the session behind accessToken.
func (a *Auth) SignOut(ctx context.Context, accessToken string) error {
	ctx, span := tracer.Start(ctx, "Supabase.SignOut")
	defer span.End()

	var resp authResponse
	err := a.client.call(ctx, "supabase/auth", func() error {
		var err error
		resp, err = a.client.doAuth(ctx, "logout", nil, accessToken)
		return err
	})
	if err != nil {
		return err
	}
	if !resp.ok() {
		return rejected(resp)
	}
	return nil
}

// VerifyToken validates a GoTrue access token (HS256) and returns its subject.
func (a *Auth) VerifyToken(accessToken string) (*domain.Identity, error) {
	if len(a.jwtSecret) == 0 {
		return nil, &domain.ErrUnauthorized{Message: "token verification is not configured"}
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(accessToken, claims, func(t *jwt.Token) (any, error) {
		return a.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &domain.ErrUnauthorized{Message: "token expired"}
		}
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil, &domain.ErrUnauthorized{Message: "token has no subject"}
	}
	email, _ := claims["email"].(string)

	return &domain.Identity{UserID: sub, Email: email, Token: accessToken}, nil
}
