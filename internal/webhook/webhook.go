// Package webhook wraps a single reused resty client for the Webhook
// automation action (§4.5.5).
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client issues webhook requests on behalf of the automation engine.
type Client struct {
	http *resty.Client
}

// New builds a Client with a bounded per-request timeout.
func New() *Client {
	c := resty.New().SetTimeout(10 * time.Second)
	return &Client{http: c}
}

// Call performs an HTTP request against url with method (default POST)
// and an optional JSON body. Any non-2xx status raises an error, per
// §4.5.5's "2xx is success; non-2xx raises an action error."
func (c *Client) Call(ctx context.Context, url, method string, body json.RawMessage) error {
	if method == "" {
		method = "POST"
	}
	req := c.http.R().SetContext(ctx)
	if len(body) > 0 {
		req = req.SetHeader("Content-Type", "application/json").SetBody([]byte(body))
	}
	resp, err := req.Execute(method, url)
	if err != nil {
		return fmt.Errorf("webhook: request to %s: %w", url, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("webhook: %s returned status %d", url, resp.StatusCode())
	}
	return nil
}
