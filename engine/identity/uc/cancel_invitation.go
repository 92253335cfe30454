package uc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atriumhq/atrium/engine/core"
	"github.com/atriumhq/atrium/engine/identity/model"
	"github.com/atriumhq/atrium/pkg/logger"
)

// CancelInvitation withdraws a pending invitation. Cancellation is a status
// transition, never a row deletion, so the audit trail survives. A second
// cancel finds no pending row and reports the state conflict instead of
// mutating anything.
type CancelInvitation struct {
	invitations InvitationRepository
	now         func() time.Time
}

// NewCancelInvitation creates the cancellation use case.
func NewCancelInvitation(invitations InvitationRepository) *CancelInvitation {
	return &CancelInvitation{invitations: invitations, now: time.Now}
}

// Execute transitions the invitation pending -> cancelled.
func (c *CancelInvitation) Execute(ctx context.Context, invitationID int64) (*model.Invitation, error) {
	flipped, err := c.invitations.MarkCancelled(ctx, invitationID, c.now())
	if err != nil {
		return nil, core.NewError(fmt.Errorf("cancelling invitation: %w", err), core.CodePersistence, nil)
	}
	if !flipped {
		// Either the id does not exist or the row already left pending.
		inv, getErr := c.invitations.GetByID(ctx, invitationID)
		if getErr != nil {
			if errors.Is(getErr, ErrInvitationNotFound) {
				return nil, core.NewError(ErrInvitationNotFound, core.CodeNotFound, nil)
			}
			return nil, core.NewError(fmt.Errorf("looking up invitation: %w", getErr), core.CodePersistence, nil)
		}
		return nil, core.NewError(ErrInvalidState, core.CodeState, map[string]any{"status": inv.Status})
	}
	inv, err := c.invitations.GetByID(ctx, invitationID)
	if err != nil {
		return nil, core.NewError(fmt.Errorf("re-reading invitation: %w", err), core.CodePersistence, nil)
	}
	logger.FromContext(ctx).Info("Invitation cancelled", "invitation_id", invitationID)
	return inv, nil
}
