package uc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atriumhq/atrium/engine/core"
	"github.com/atriumhq/atrium/engine/identity/model"
	"github.com/atriumhq/atrium/engine/identity/security"
	"github.com/atriumhq/atrium/pkg/logger"
)

// ValidateInvitationOutput reports whether a token is redeemable and, when a
// row exists at all, its current state.
type ValidateInvitationOutput struct {
	Valid      bool
	Reason     string
	Invitation *model.Invitation
}

// ValidateInvitation looks an invitation up by token. Expiry is lazy: a
// pending row whose deadline has passed is flipped to expired here, as a
// side effect of the read, so no background sweeper is needed. The flip is
// a conditional update, so concurrent validates write the transition once.
type ValidateInvitation struct {
	invitations InvitationRepository
	validator   *security.Validator
	now         func() time.Time
}

// NewValidateInvitation creates the token validation use case.
func NewValidateInvitation(invitations InvitationRepository, validator *security.Validator) *ValidateInvitation {
	return &ValidateInvitation{invitations: invitations, validator: validator, now: time.Now}
}

// Execute resolves a token to its invitation, expiring it when overdue.
func (v *ValidateInvitation) Execute(ctx context.Context, token string) (*ValidateInvitationOutput, error) {
	// Structural rejection first: malformed or implausibly old tokens do
	// not earn a store round-trip.
	if ok, reason := v.validator.ValidateToken(token); !ok {
		return &ValidateInvitationOutput{Valid: false, Reason: reason}, nil
	}
	inv, err := v.invitations.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrInvitationNotFound) {
			return &ValidateInvitationOutput{Valid: false, Reason: "Invitation not found"}, nil
		}
		return nil, core.NewError(fmt.Errorf("looking up invitation: %w", err), core.CodePersistence, nil)
	}
	if inv.Status == model.InvitationPending && inv.ExpiredAt(v.now()) {
		flipped, expireErr := v.invitations.MarkExpired(ctx, inv.ID)
		if expireErr != nil {
			// The row is unreadable as valid either way; surface the state,
			// not the write failure.
			logger.FromContext(ctx).Warn("Failed to lazily expire invitation", "invitation_id", inv.ID, "error", expireErr)
		} else if !flipped {
			logger.FromContext(ctx).Debug("Invitation already expired by concurrent validate", "invitation_id", inv.ID)
		}
		inv.Status = model.InvitationExpired
	}
	if inv.Status != model.InvitationPending {
		return &ValidateInvitationOutput{
			Valid:      false,
			Reason:     fmt.Sprintf("Invitation is %s", inv.Status),
			Invitation: inv,
		}, nil
	}
	return &ValidateInvitationOutput{Valid: true, Invitation: inv}, nil
}
