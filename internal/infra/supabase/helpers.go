package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// ============================================================
// HTTP helpers for PATCH and the auth API
// ============================================================

func (c *Client) doPatch(ctx context.Context, path string, data map[string]any) error {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	jsonBody, err := json.Marshal(data)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(jsonBody))
	if err != nil {
		return err
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: PATCH request failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := readBody(resp)
		c.logger.Warn("supabase: PATCH non-2xx",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return fmt.Errorf("supabase PATCH returned %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Debug("supabase: PATCH OK", zap.String("path", path))
	return nil
}

// authResponse is a raw GoTrue answer. Non-2xx answers are returned, not
// turned into errors, so callers can tell rejections from outages.
type authResponse struct {
	status int
	body   []byte
}

func (r authResponse) ok() bool { return r.status >= 200 && r.status < 300 }

// doAuth calls the GoTrue API at /auth/v1/<path>. bearer overrides the
// anon key in the Authorization header when set.
func (c *Client) doAuth(ctx context.Context, path string, payload any, bearer string) (authResponse, error) {
	url := fmt.Sprintf("%s/auth/v1/%s", c.baseURL, path)

	var body io.Reader = http.NoBody
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return authResponse{}, err
		}
		body = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return authResponse{}, err
	}
	if bearer == "" {
		bearer = c.apiKey
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", bearer))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: auth request failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return authResponse{}, err
	}
	defer resp.Body.Close()

	raw, err := readBody(resp)
	if err != nil {
		return authResponse{}, err
	}
	if resp.StatusCode >= 500 {
		c.logger.Warn("supabase: auth 5xx",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(raw)),
		)
		return authResponse{}, fmt.Errorf("supabase auth returned %d: %s", resp.StatusCode, string(raw))
	}

	c.logger.Debug("supabase: auth response", zap.String("path", path), zap.Int("status", resp.StatusCode))
	return authResponse{status: resp.StatusCode, body: raw}, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
