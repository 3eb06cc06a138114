// Package vmixapi contains minimal helpers to drive the vMix HTTP API:
// reachability checks, title text updates, and transition triggers. All calls
// are best-effort from the caller's point of view; the feed keeps working when
// vMix is down.
package vmixapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Client drives a single vMix instance over its HTTP API (default port 8088).
type Client struct {
	BaseURL    string // e.g. http://127.0.0.1:8088
	Timeout    time.Duration
	HTTPClient *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 5 * time.Second
}

// Ping reports whether the vMix API endpoint answers.
func (c *Client) Ping(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api", nil)
	if err != nil {
		return false, err
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return false, err
	}
	defer closeBody(resp)
	return resp.StatusCode == http.StatusOK, nil
}

// SetFields updates named text fields on the given input title, one SetText
// call per field. The first failing call aborts the rest.
func (c *Client) SetFields(ctx context.Context, input string, fields map[string]string) error {
	for name, value := range fields {
		q := url.Values{}
		q.Set("Function", "SetText")
		q.Set("Input", input)
		q.Set("SelectedName", name)
		q.Set("Value", value)
		if err := c.call(ctx, q); err != nil {
			return fmt.Errorf("set field %q: %w", name, err)
		}
	}
	return nil
}

// TriggerTransition fires a named transition function (e.g. Fade,
// OverlayInput1In) against the given input to animate the update.
func (c *Client) TriggerTransition(ctx context.Context, input, name string) error {
	q := url.Values{}
	q.Set("Function", name)
	q.Set("Input", input)
	if err := c.call(ctx, q); err != nil {
		return fmt.Errorf("transition %q: %w", name, err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, q url.Values) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("vmix api status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		slog.Warn("failed to close response body", slog.Any("err", err))
	}
}
