// Package supabase provides a client for Supabase (PostgREST + GoTrue).
// It is the production backend for factures and authentication.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/boddenberg/facture-btp-bfa/internal/domain"
	"github.com/boddenberg/facture-btp-bfa/internal/infra/resilience"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to the Supabase REST and auth APIs.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	guard          *resilience.Guard
	logger         *zap.Logger
}

// NewClient creates a Supabase client. serviceRoleKey authorizes PostgREST
// calls; when empty the anon key is used.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, guard *resilience.Guard, logger *zap.Logger) *Client {
	if serviceRoleKey == "" {
		serviceRoleKey = apiKey
	}
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		guard:          guard,
		logger:         logger,
	}
}

// call runs fn once through the guard and maps failures to domain errors.
func (c *Client) call(ctx context.Context, service string, fn func() error) error {
	err := c.guard.Do(ctx, fn)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, resilience.ErrOpen):
		return &domain.ErrCircuitOpen{Service: service}
	default:
		return &domain.ErrExternalService{Service: service, Err: err}
	}
}

// doRequest executes an authenticated GET against Supabase PostgREST.
func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("supabase: failed to read response body",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil // no data
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, fmt.Errorf("supabase returned status %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	return body, nil
}

// Ping checks that the REST endpoint answers. Used by /readyz.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Ping")
	defer span.End()

	start := time.Now()
	err := c.call(ctx, "supabase", func() error {
		_, err := c.doRequest(ctx, http.MethodGet, "")
		return err
	})
	return time.Since(start), err
}
