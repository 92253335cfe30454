package uc

import (
	"context"
	"fmt"
	"time"

	"github.com/atriumhq/atrium/engine/core"
	"github.com/atriumhq/atrium/engine/identity/model"
	"github.com/atriumhq/atrium/engine/identity/security"
	"github.com/atriumhq/atrium/pkg/logger"
)

// CreateInvitationInput carries a superadmin's request to invite an address.
type CreateInvitationInput struct {
	Actor   *model.User
	Email   string
	Role    model.RoleID
	Message string
}

// CreateInvitationOutput reports the persisted invitation and the outcome of
// the email dispatch side effect. A dispatch failure keeps the row: the
// invitation stands and can be resent.
type CreateInvitationOutput struct {
	Invitation *model.Invitation
	EmailSent  bool
	EmailError string
}

// CreateInvitation issues a pending invitation after running the security
// checks in cheap-first order: email pattern, then permission, then the
// store-backed anomaly heuristics.
type CreateInvitation struct {
	invitations InvitationRepository
	validator   *security.Validator
	mailer      Mailer
	policy      *Policy
	now         func() time.Time
}

// NewCreateInvitation creates the invitation issuance use case.
func NewCreateInvitation(
	invitations InvitationRepository,
	validator *security.Validator,
	mailer Mailer,
	policy *Policy,
) *CreateInvitation {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &CreateInvitation{
		invitations: invitations,
		validator:   validator,
		mailer:      mailer,
		policy:      policy,
		now:         time.Now,
	}
}

// Execute validates, persists and dispatches one invitation.
func (c *CreateInvitation) Execute(ctx context.Context, in *CreateInvitationInput) (*CreateInvitationOutput, error) {
	log := logger.FromContext(ctx)
	if ok, reason := c.validator.ValidateEmailPattern(in.Email); !ok {
		return nil, core.NewError(fmt.Errorf("%s", reason), core.CodeValidation, map[string]any{
			"email": in.Email,
		})
	}
	if ok, reason := c.validator.AuthorizeCreation(in.Actor, in.Role, in.Email); !ok {
		return nil, core.NewError(fmt.Errorf("%s", reason), core.CodePermission, nil)
	}
	report, err := c.validator.DetectAnomalies(ctx, in.Actor, in.Email)
	if err != nil {
		return nil, core.NewError(fmt.Errorf("anomaly detection: %w", err), core.CodePersistence, nil)
	}
	if report.Suspicious {
		log.Warn("Suspicious invitation attempt rejected",
			"inviter_id", in.Actor.ID,
			"invitee", in.Email,
			"reasons", report.Reasons,
		)
		return nil, core.NewError(fmt.Errorf("invitation rejected as suspicious"), core.CodePermission, map[string]any{
			"reasons": report.Reasons,
		})
	}
	now := c.now()
	inv := &model.Invitation{
		Email:     in.Email,
		RoleID:    in.Role,
		Token:     model.NewInviteToken(now),
		Status:    model.InvitationPending,
		Message:   in.Message,
		InvitedBy: in.Actor.ID,
		ExpiresAt: now.Add(c.policy.InvitationTTL),
	}
	if err := c.invitations.Create(ctx, inv); err != nil {
		return nil, core.NewError(fmt.Errorf("persisting invitation: %w", err), core.CodePersistence, nil)
	}
	out := &CreateInvitationOutput{Invitation: inv}
	messageID, mailErr := c.mailer.Send(ctx, in.Email, MailInvitation, map[string]any{
		"token":      inv.Token,
		"role":       in.Role.Name(),
		"message":    in.Message,
		"expires_at": inv.ExpiresAt,
	})
	if mailErr != nil {
		// The row stays: the admin can resend once dispatch recovers.
		log.Warn("Invitation email dispatch failed", "invitation_id", inv.ID, "error", mailErr)
		out.EmailError = mailErr.Error()
		return out, nil
	}
	out.EmailSent = true
	log.Info("Invitation created", "invitation_id", inv.ID, "role", in.Role.Name(), "message_id", messageID)
	return out, nil
}
