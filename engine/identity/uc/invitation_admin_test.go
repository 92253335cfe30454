package uc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atriumhq/atrium/engine/core"
	"github.com/atriumhq/atrium/engine/identity/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelInvitation_Execute(t *testing.T) {
	t.Run("Should transition a pending invitation to cancelled", func(t *testing.T) {
		invitations := newFakeInvitationRepo()
		inv := seedPendingInvitation(invitations, "invitee@example.com")
		cancel := NewCancelInvitation(invitations)
		out, err := cancel.Execute(context.Background(), inv.ID)
		require.NoError(t, err)
		assert.Equal(t, model.InvitationCancelled, out.Status)
		require.NotNil(t, out.CancelledAt)
		// Still present: cancellation keeps the audit trail.
		assert.NotNil(t, invitations.get(inv.ID))
	})

	t.Run("Should report not found for an unknown id", func(t *testing.T) {
		cancel := NewCancelInvitation(newFakeInvitationRepo())
		_, err := cancel.Execute(context.Background(), 404)
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.CodeNotFound))
	})

	t.Run("Should report a state conflict on a second cancel", func(t *testing.T) {
		invitations := newFakeInvitationRepo()
		inv := seedPendingInvitation(invitations, "invitee@example.com")
		cancel := NewCancelInvitation(invitations)
		_, err := cancel.Execute(context.Background(), inv.ID)
		require.NoError(t, err)
		_, err = cancel.Execute(context.Background(), inv.ID)
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.CodeState))
	})

	t.Run("Should not cancel an accepted invitation", func(t *testing.T) {
		invitations := newFakeInvitationRepo()
		inv := seedPendingInvitation(invitations, "invitee@example.com")
		_, err := invitations.MarkAccepted(context.Background(), inv.ID, time.Now())
		require.NoError(t, err)
		cancel := NewCancelInvitation(invitations)
		_, err = cancel.Execute(context.Background(), inv.ID)
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.CodeState))
		assert.Equal(t, model.InvitationAccepted, invitations.get(inv.ID).Status)
	})
}

func TestResendInvitation_Execute(t *testing.T) {
	t.Run("Should dispatch the original token again", func(t *testing.T) {
		invitations := newFakeInvitationRepo()
		inv := seedPendingInvitation(invitations, "invitee@example.com")
		mailer := &fakeMailer{}
		resend := NewResendInvitation(invitations, mailer)
		out, err := resend.Execute(context.Background(), inv.ID)
		require.NoError(t, err)
		assert.Equal(t, "invitee@example.com", out.Email)
		assert.NotEmpty(t, out.MessageID)
		require.Equal(t, 1, mailer.sentCount())
		assert.Equal(t, inv.Token, mailer.sent[0].Vars["token"])
	})

	t.Run("Should refuse to resend a cancelled invitation", func(t *testing.T) {
		invitations := newFakeInvitationRepo()
		inv := seedPendingInvitation(invitations, "invitee@example.com")
		_, err := invitations.MarkCancelled(context.Background(), inv.ID, time.Now())
		require.NoError(t, err)
		resend := NewResendInvitation(invitations, &fakeMailer{})
		_, err = resend.Execute(context.Background(), inv.ID)
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.CodeState))
	})

	t.Run("Should refuse to resend an overdue invitation", func(t *testing.T) {
		invitations := newFakeInvitationRepo()
		inv := invitations.seed(&model.Invitation{
			Email:     "late@example.com",
			RoleID:    model.RoleAdmin,
			Token:     model.NewInviteToken(time.Now().Add(-time.Hour)),
			Status:    model.InvitationPending,
			InvitedBy: 1,
			ExpiresAt: time.Now().Add(-time.Minute),
		})
		resend := NewResendInvitation(invitations, &fakeMailer{})
		_, err := resend.Execute(context.Background(), inv.ID)
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.CodeState))
		assert.True(t, errors.Is(err, ErrInvitationExpired))
	})

	t.Run("Should surface mailer failures as upstream errors", func(t *testing.T) {
		invitations := newFakeInvitationRepo()
		inv := seedPendingInvitation(invitations, "invitee@example.com")
		resend := NewResendInvitation(invitations, &fakeMailer{sendErr: errors.New("relay down")})
		_, err := resend.Execute(context.Background(), inv.ID)
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.CodeUpstream))
	})
}

func TestBulkInvitations_Execute(t *testing.T) {
	t.Run("Should apply the action per id and never abort the batch", func(t *testing.T) {
		invitations := newFakeInvitationRepo()
		a := seedPendingInvitation(invitations, "a@example.com")
		b := seedPendingInvitation(invitations, "b@example.com")
		_, err := invitations.MarkAccepted(context.Background(), b.ID, time.Now())
		require.NoError(t, err)

		bulk := NewBulkInvitations(invitations)
		result, err := bulk.Execute(context.Background(), []int64{a.ID, b.ID, 404}, BulkCancel)
		require.NoError(t, err)
		assert.Equal(t, 3, result.Total)
		assert.Equal(t, 1, result.Succeeded)
		assert.Equal(t, 2, result.Failed)
		assert.Len(t, result.Errors, 2)
		assert.Equal(t, model.InvitationCancelled, invitations.get(a.ID).Status)
		assert.Equal(t, model.InvitationAccepted, invitations.get(b.ID).Status)
	})

	t.Run("Should delete rows with the delete action", func(t *testing.T) {
		invitations := newFakeInvitationRepo()
		a := seedPendingInvitation(invitations, "a@example.com")
		bulk := NewBulkInvitations(invitations)
		result, err := bulk.Execute(context.Background(), []int64{a.ID}, BulkDelete)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Succeeded)
		assert.Nil(t, invitations.get(a.ID))
	})

	t.Run("Should mark pending rows expired with the markExpired action", func(t *testing.T) {
		invitations := newFakeInvitationRepo()
		a := seedPendingInvitation(invitations, "a@example.com")
		bulk := NewBulkInvitations(invitations)
		result, err := bulk.Execute(context.Background(), []int64{a.ID}, BulkMarkExpired)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Succeeded)
		assert.Equal(t, model.InvitationExpired, invitations.get(a.ID).Status)
	})

	t.Run("Should reject an unknown action up front", func(t *testing.T) {
		bulk := NewBulkInvitations(newFakeInvitationRepo())
		_, err := bulk.Execute(context.Background(), []int64{1}, BulkAction("purge"))
		require.Error(t, err)
	})
}

func TestListInvitations(t *testing.T) {
	t.Run("Should list by status", func(t *testing.T) {
		invitations := newFakeInvitationRepo()
		seedPendingInvitation(invitations, "a@example.com")
		b := seedPendingInvitation(invitations, "b@example.com")
		_, err := invitations.MarkCancelled(context.Background(), b.ID, time.Now())
		require.NoError(t, err)

		list := NewListInvitations(invitations)
		pending, err := list.ByStatus(context.Background(), model.InvitationPending)
		require.NoError(t, err)
		assert.Len(t, pending, 1)
	})

	t.Run("Should reject an unknown status", func(t *testing.T) {
		list := NewListInvitations(newFakeInvitationRepo())
		_, err := list.ByStatus(context.Background(), model.InvitationStatus("limbo"))
		require.Error(t, err)
	})

	t.Run("Should list by inviter", func(t *testing.T) {
		invitations := newFakeInvitationRepo()
		seedPendingInvitation(invitations, "a@example.com")
		invitations.seed(&model.Invitation{
			Email:     "other@example.com",
			RoleID:    model.RoleAdmin,
			Token:     model.NewInviteToken(time.Now()),
			Status:    model.InvitationPending,
			InvitedBy: 2,
			ExpiresAt: time.Now().Add(time.Hour),
		})
		list := NewListInvitations(invitations)
		mine, err := list.ByInviter(context.Background(), 1)
		require.NoError(t, err)
		assert.Len(t, mine, 1)
	})
}
