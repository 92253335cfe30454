package gotrue

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/atriumhq/atrium/engine/identity/uc"
	"github.com/go-resty/resty/v2"
)

// Client talks to a GoTrue-compatible identity provider's admin API using a
// service-role key. It implements uc.IdentityProvider.
type Client struct {
	http *resty.Client
}

// Config holds provider connection settings.
type Config struct {
	BaseURL    string
	ServiceKey string
	Timeout    time.Duration
}

// NewClient builds the provider client.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetAuthToken(cfg.ServiceKey).
		SetHeader("apikey", cfg.ServiceKey).
		SetHeader("Content-Type", "application/json")
	return &Client{http: httpClient}
}

type adminUser struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	LastSignInAt     *time.Time     `json:"last_sign_in_at,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
}

func (u *adminUser) toIdentity() *uc.Identity {
	return &uc.Identity{
		ID:               u.ID,
		Email:            u.Email,
		EmailConfirmedAt: u.EmailConfirmedAt,
		LastSignInAt:     u.LastSignInAt,
		Metadata:         u.UserMetadata,
	}
}

// Create provisions a new identity.
func (c *Client) Create(ctx context.Context, email, password string, metadata map[string]any) (*uc.Identity, error) {
	var created adminUser
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"email":         email,
			"password":      password,
			"user_metadata": metadata,
		}).
		SetResult(&created).
		Post("/admin/users")
	if err != nil {
		return nil, fmt.Errorf("creating identity: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("creating identity: provider returned %s: %s", resp.Status(), resp.String())
	}
	return created.toIdentity(), nil
}

// GetByID fetches one identity.
func (c *Client) GetByID(ctx context.Context, id string) (*uc.Identity, error) {
	var user adminUser
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&user).
		SetPathParam("id", id).
		Get("/admin/users/{id}")
	if err != nil {
		return nil, fmt.Errorf("fetching identity: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, uc.ErrIdentityNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetching identity: provider returned %s", resp.Status())
	}
	return user.toIdentity(), nil
}

type listResponse struct {
	Users []adminUser `json:"users"`
}

// ListAll pages through the provider's user set.
func (c *Client) ListAll(ctx context.Context) ([]*uc.Identity, error) {
	const perPage = 100
	var identities []*uc.Identity
	for page := 1; ; page++ {
		var body listResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetResult(&body).
			SetQueryParams(map[string]string{
				"page":     fmt.Sprintf("%d", page),
				"per_page": fmt.Sprintf("%d", perPage),
			}).
			Get("/admin/users")
		if err != nil {
			return nil, fmt.Errorf("listing identities: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("listing identities: provider returned %s", resp.Status())
		}
		for i := range body.Users {
			identities = append(identities, body.Users[i].toIdentity())
		}
		if len(body.Users) < perPage {
			return identities, nil
		}
	}
}

// Delete removes an identity. Deleting an already-absent identity is not an
// error: the compensating-action caller only cares that it is gone.
func (c *Client) Delete(ctx context.Context, id string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		Delete("/admin/users/{id}")
	if err != nil {
		return fmt.Errorf("deleting identity: %w", err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return fmt.Errorf("deleting identity: provider returned %s", resp.Status())
	}
	return nil
}

// ConfirmEmail marks the identity's address verified.
func (c *Client) ConfirmEmail(ctx context.Context, id string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"email_confirm": true}).
		SetPathParam("id", id).
		Put("/admin/users/{id}")
	if err != nil {
		return fmt.Errorf("confirming email: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return uc.ErrIdentityNotFound
	}
	if resp.IsError() {
		return fmt.Errorf("confirming email: provider returned %s", resp.Status())
	}
	return nil
}
