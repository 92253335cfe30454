package uc

import (
	"context"
	"time"
)

// Identity is the provider's view of an authenticated account.
type Identity struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	LastSignInAt     *time.Time     `json:"last_sign_in_at,omitempty"`
	Metadata         map[string]any `json:"user_metadata,omitempty"`
}

// IdentityProvider abstracts the external identity provider's admin API.
// The provider is the source of truth for authentication events; the local
// store mirrors it.
type IdentityProvider interface {
	// Create provisions an identity. Invited users are created confirmed
	// since possession of the invite token proves control of the address.
	Create(ctx context.Context, email, password string, metadata map[string]any) (*Identity, error)
	// GetByID returns the identity or ErrIdentityNotFound.
	GetByID(ctx context.Context, id string) (*Identity, error)
	// ListAll returns every identity known to the provider.
	ListAll(ctx context.Context) ([]*Identity, error)
	// Delete removes an identity. Used as the compensating action when
	// local user creation fails after provider-side creation succeeded.
	Delete(ctx context.Context, id string) error
	// ConfirmEmail marks the identity's email address as verified.
	ConfirmEmail(ctx context.Context, id string) error
}

// Mail template kinds understood by the dispatch service.
const (
	MailInvitation = "invitation"
)

// Mailer abstracts the email dispatch collaborator.
type Mailer interface {
	// Send dispatches a templated message and returns the provider's
	// message id.
	Send(ctx context.Context, to, kind string, vars map[string]any) (string, error)
}
