package uc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atriumhq/atrium/engine/core"
	"github.com/atriumhq/atrium/engine/identity/model"
	"github.com/atriumhq/atrium/pkg/logger"
)

// AcceptInvitationInput carries the invitee's signup details.
type AcceptInvitationInput struct {
	Token     string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// AcceptInvitation redeems a pending invitation: it creates the external
// identity first, then the local user row, then marks the invitation
// accepted. The two stores share no transaction, so a local failure after
// provider-side creation triggers a compensating delete of the identity.
type AcceptInvitation struct {
	invitations InvitationRepository
	users       UserRepository
	provider    IdentityProvider
	now         func() time.Time
}

// NewAcceptInvitation creates the acceptance use case.
func NewAcceptInvitation(invitations InvitationRepository, users UserRepository, provider IdentityProvider) *AcceptInvitation {
	return &AcceptInvitation{invitations: invitations, users: users, provider: provider, now: time.Now}
}

// Execute redeems the token and returns the new local user.
func (a *AcceptInvitation) Execute(ctx context.Context, in *AcceptInvitationInput) (*model.User, error) {
	log := logger.FromContext(ctx)
	inv, err := a.loadPending(ctx, in)
	if err != nil {
		return nil, err
	}
	identity, err := a.provider.Create(ctx, in.Email, in.Password, map[string]any{
		"first_name": in.FirstName,
		"last_name":  in.LastName,
		"invited":    true,
	})
	if err != nil {
		return nil, core.NewError(fmt.Errorf("creating external identity: %w", err), core.CodeUpstream, nil)
	}
	// Token possession proves control of the address.
	if confirmErr := a.provider.ConfirmEmail(ctx, identity.ID); confirmErr != nil {
		log.Warn("Failed to confirm email at provider", "external_id", identity.ID, "error", confirmErr)
	}
	user := &model.User{
		ExternalID:    identity.ID,
		Email:         in.Email,
		RoleID:        inv.RoleID,
		Active:        true,
		EmailVerified: true,
		Metadata: map[string]any{
			"first_name": in.FirstName,
			"last_name":  in.LastName,
		},
	}
	if err := a.users.Create(ctx, user); err != nil {
		// Compensating action: do not leave an auth-only account behind.
		// A failed delete is only logged; the dangling identity is a cheap,
		// cleanable artifact and there is no further recovery step.
		if delErr := a.provider.Delete(ctx, identity.ID); delErr != nil {
			log.Error("Compensating identity delete failed", "external_id", identity.ID, "error", delErr)
		}
		if errors.Is(err, ErrConflict) {
			return nil, core.NewError(ErrDuplicateUser, core.CodeConflict, map[string]any{"email": in.Email})
		}
		return nil, core.NewError(fmt.Errorf("creating local user: %w", err), core.CodePersistence, nil)
	}
	flipped, err := a.invitations.MarkAccepted(ctx, inv.ID, a.now())
	if err != nil {
		return nil, core.NewError(fmt.Errorf("marking invitation accepted: %w", err), core.CodePersistence, nil)
	}
	if !flipped {
		// Somebody else transitioned the row between our read and the
		// write. The user exists; report the state conflict.
		return nil, core.NewError(ErrInvalidState, core.CodeState, map[string]any{"invitation_id": inv.ID})
	}
	log.Info("Invitation accepted", "invitation_id", inv.ID, "user_id", user.ID, "role", user.RoleID.Name())
	return user, nil
}

// loadPending re-validates the token against the store: the row must be
// pending, unexpired, and addressed to the accepting email, and no local
// user may already own that address.
func (a *AcceptInvitation) loadPending(ctx context.Context, in *AcceptInvitationInput) (*model.Invitation, error) {
	inv, err := a.invitations.GetByToken(ctx, in.Token)
	if err != nil {
		if errors.Is(err, ErrInvitationNotFound) {
			return nil, core.NewError(ErrInvitationNotFound, core.CodeNotFound, nil)
		}
		return nil, core.NewError(fmt.Errorf("looking up invitation: %w", err), core.CodePersistence, nil)
	}
	if inv.Status != model.InvitationPending {
		return nil, core.NewError(ErrInvalidState, core.CodeState, map[string]any{"status": inv.Status})
	}
	if inv.ExpiredAt(a.now()) {
		if _, expireErr := a.invitations.MarkExpired(ctx, inv.ID); expireErr != nil {
			logger.FromContext(ctx).Warn("Failed to lazily expire invitation", "invitation_id", inv.ID, "error", expireErr)
		}
		return nil, core.NewError(ErrInvitationExpired, core.CodeState, map[string]any{"invitation_id": inv.ID})
	}
	if !strings.EqualFold(inv.Email, in.Email) {
		return nil, core.NewError(ErrEmailMismatch, core.CodeValidation, nil)
	}
	_, err = a.users.GetByEmail(ctx, in.Email)
	if err == nil {
		return nil, core.NewError(ErrDuplicateUser, core.CodeConflict, map[string]any{"email": in.Email})
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, core.NewError(fmt.Errorf("checking existing user: %w", err), core.CodePersistence, nil)
	}
	return inv, nil
}
