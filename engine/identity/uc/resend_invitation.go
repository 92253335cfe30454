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

// ResendInvitationOutput reports the dispatch result.
type ResendInvitationOutput struct {
	MessageID string
	Email     string
}

// ResendInvitation re-sends a pending, unexpired invitation. It reuses the
// original token rather than minting a new one, so the resend shortens, not
// extends, the invitation's effective life.
type ResendInvitation struct {
	invitations InvitationRepository
	mailer      Mailer
	now         func() time.Time
}

// NewResendInvitation creates the resend use case.
func NewResendInvitation(invitations InvitationRepository, mailer Mailer) *ResendInvitation {
	return &ResendInvitation{invitations: invitations, mailer: mailer, now: time.Now}
}

// Execute dispatches the invitation email again.
func (r *ResendInvitation) Execute(ctx context.Context, invitationID int64) (*ResendInvitationOutput, error) {
	inv, err := r.invitations.GetByID(ctx, invitationID)
	if err != nil {
		if errors.Is(err, ErrInvitationNotFound) {
			return nil, core.NewError(ErrInvitationNotFound, core.CodeNotFound, nil)
		}
		return nil, core.NewError(fmt.Errorf("looking up invitation: %w", err), core.CodePersistence, nil)
	}
	if inv.Status != model.InvitationPending {
		return nil, core.NewError(ErrInvalidState, core.CodeState, map[string]any{"status": inv.Status})
	}
	if inv.ExpiredAt(r.now()) {
		return nil, core.NewError(ErrInvitationExpired, core.CodeState, map[string]any{"invitation_id": inv.ID})
	}
	messageID, err := r.mailer.Send(ctx, inv.Email, MailInvitation, map[string]any{
		"token":      inv.Token,
		"role":       inv.RoleID.Name(),
		"message":    inv.Message,
		"expires_at": inv.ExpiresAt,
	})
	if err != nil {
		return nil, core.NewError(fmt.Errorf("dispatching invitation email: %w", err), core.CodeUpstream, nil)
	}
	logger.FromContext(ctx).Info("Invitation resent", "invitation_id", inv.ID, "message_id", messageID)
	return &ResendInvitationOutput{MessageID: messageID, Email: inv.Email}, nil
}
