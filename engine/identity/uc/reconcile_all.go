package uc

import (
	"context"
	"fmt"
	"time"

	"github.com/atriumhq/atrium/pkg/logger"
	"github.com/sethvargo/go-retry"
)

// ReconcileResult summarizes a full reconciliation pass.
type ReconcileResult struct {
	Created int              `json:"created"`
	Updated int              `json:"updated"`
	Skipped int              `json:"skipped"`
	Errors  []ReconcileError `json:"errors,omitempty"`
}

// ReconcileError records one identity that failed to sync.
type ReconcileError struct {
	ExternalID string `json:"external_id"`
	Error      string `json:"error"`
}

// ReconcileAll walks the provider's user set and syncs every identity that
// has no local mirror. Per-identity failures are collected, never fatal to
// the batch.
type ReconcileAll struct {
	provider IdentityProvider
	users    UserRepository
	syncOne  *SyncOne
}

// NewReconcileAll creates the batch reconciliation use case.
func NewReconcileAll(provider IdentityProvider, users UserRepository, syncOne *SyncOne) *ReconcileAll {
	return &ReconcileAll{provider: provider, users: users, syncOne: syncOne}
}

// Execute runs one reconciliation pass.
func (r *ReconcileAll) Execute(ctx context.Context) (*ReconcileResult, error) {
	log := logger.FromContext(ctx)
	identities, err := listIdentities(ctx, r.provider)
	if err != nil {
		return nil, fmt.Errorf("listing provider identities: %w", err)
	}
	local, err := r.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing local users: %w", err)
	}
	known := make(map[string]struct{}, len(local))
	for _, u := range local {
		known[u.ExternalID] = struct{}{}
	}
	result := &ReconcileResult{}
	for _, id := range identities {
		if _, ok := known[id.ID]; ok {
			result.Skipped++
			continue
		}
		out, syncErr := r.syncOne.Execute(ctx, &SyncOneInput{
			ExternalID:    id.ID,
			Email:         id.Email,
			EmailVerified: id.EmailConfirmedAt != nil,
			LastSignInAt:  id.LastSignInAt,
			Metadata:      id.Metadata,
		})
		if syncErr != nil {
			result.Errors = append(result.Errors, ReconcileError{ExternalID: id.ID, Error: syncErr.Error()})
			continue
		}
		if out.Created {
			result.Created++
		} else {
			result.Updated++
		}
	}
	log.Info("Reconciliation pass finished",
		"created", result.Created,
		"updated", result.Updated,
		"skipped", result.Skipped,
		"failed", len(result.Errors),
	)
	return result, nil
}

// listIdentities fetches the provider's user set with bounded backoff. The
// call is read-only and admin-triggered, so retrying is safe.
func listIdentities(ctx context.Context, provider IdentityProvider) ([]*Identity, error) {
	var identities []*Identity
	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var listErr error
		identities, listErr = provider.ListAll(ctx)
		if listErr != nil {
			return retry.RetryableError(listErr)
		}
		return nil
	})
	return identities, err
}
