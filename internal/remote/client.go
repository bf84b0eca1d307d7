// Package remote holds the HTTP clients for the platform's metadata catalog
// and publish/registration services. The session engine consumes both through
// interfaces so tests can substitute fakes.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cascade-studio/internal/config"
	"cascade-studio/internal/trace"
)

// Client is a thin JSON-over-HTTP client for the platform services.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg config.RemoteConfig) *Client {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// statusError is returned for non-2xx responses so callers can branch on the
// response code.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("remote returned HTTP %d: %s", e.Code, e.Body)
}

// doJSON performs a request with an optional JSON body and decodes the JSON
// response into out (when out is non-nil). Each call records a span under the
// tracer carried by the context, so platform round-trips show up beneath the
// engine operation that issued them.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) (err error) {
	ctx, span := trace.GetTracer(ctx).StartSpan(ctx, "remote", method+" "+path)
	defer func() {
		if err != nil {
			span.SetStatus("error")
		}
		span.End()
	}()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{Code: resp.StatusCode, Body: string(data)}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response from %s: %w", path, err)
		}
	}
	return nil
}

func isNotFound(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.Code == http.StatusNotFound
}
