package uc

import (
	"context"
	"fmt"

	"github.com/atriumhq/atrium/engine/identity/model"
)

// ListInvitations is a thin read path for the admin surface.
type ListInvitations struct {
	invitations InvitationRepository
}

// NewListInvitations creates the listing use case.
func NewListInvitations(invitations InvitationRepository) *ListInvitations {
	return &ListInvitations{invitations: invitations}
}

// ByStatus returns invitations in the given state.
func (l *ListInvitations) ByStatus(ctx context.Context, status model.InvitationStatus) ([]*model.Invitation, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown invitation status %q", status)
	}
	return l.invitations.ListByStatus(ctx, status)
}

// ByInviter returns invitations issued by one user.
func (l *ListInvitations) ByInviter(ctx context.Context, inviterID int64) ([]*model.Invitation, error) {
	return l.invitations.ListByInviter(ctx, inviterID)
}
