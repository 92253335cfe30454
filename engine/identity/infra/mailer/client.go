package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client dispatches templated email through an HTTP delivery service. It
// implements uc.Mailer.
type Client struct {
	http *resty.Client
	from string
}

// Config holds delivery service settings.
type Config struct {
	BaseURL string
	APIKey  string
	From    string
}

// NewClient builds the mailer client.
func NewClient(cfg *Config) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(10 * time.Second).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json")
	return &Client{http: httpClient, from: cfg.From}
}

type sendResponse struct {
	MessageID string `json:"message_id"`
}

// Send dispatches one templated message and returns the service's message
// id.
func (c *Client) Send(ctx context.Context, to, kind string, vars map[string]any) (string, error) {
	var result sendResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"from":      c.from,
			"to":        to,
			"template":  kind,
			"variables": vars,
		}).
		SetResult(&result).
		Post("/messages")
	if err != nil {
		return "", fmt.Errorf("dispatching %s email: %w", kind, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("dispatching %s email: service returned %s: %s", kind, resp.Status(), resp.String())
	}
	return result.MessageID, nil
}
