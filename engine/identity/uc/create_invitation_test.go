package uc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atriumhq/atrium/engine/core"
	"github.com/atriumhq/atrium/engine/identity/model"
	"github.com/atriumhq/atrium/engine/identity/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSuperadmin() *model.User {
	return &model.User{ID: 1, Email: "boss@example.com", RoleID: model.RoleSuperadmin, Active: true}
}

func newCreateFixture(invitations *fakeInvitationRepo, mailer *fakeMailer) *CreateInvitation {
	validator := security.NewValidator(invitations, security.DefaultThresholds(), 7*24*time.Hour, time.Hour)
	return NewCreateInvitation(invitations, validator, mailer, DefaultPolicy())
}

func TestCreateInvitation_Execute(t *testing.T) {
	t.Run("Should persist a pending invitation and dispatch the email", func(t *testing.T) {
		invitations := newFakeInvitationRepo()
		mailer := &fakeMailer{}
		create := newCreateFixture(invitations, mailer)
		out, err := create.Execute(context.Background(), &CreateInvitationInput{
			Actor:   testSuperadmin(),
			Email:   "invitee@example.com",
			Role:    model.RoleAdmin,
			Message: "welcome aboard",
		})
		require.NoError(t, err)
		assert.True(t, out.EmailSent)
		assert.Empty(t, out.EmailError)
		assert.Equal(t, model.InvitationPending, out.Invitation.Status)
		assert.NotEmpty(t, out.Invitation.Token)
		assert.Equal(t, int64(1), out.Invitation.InvitedBy)
		assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), out.Invitation.ExpiresAt, time.Minute)
		require.Equal(t, 1, mailer.sentCount())
		assert.Equal(t, "invitee@example.com", mailer.sent[0].To)
		assert.Equal(t, MailInvitation, mailer.sent[0].Kind)
	})

	t.Run("Should keep the row when email dispatch fails", func(t *testing.T) {
		invitations := newFakeInvitationRepo()
		mailer := &fakeMailer{sendErr: errors.New("smtp relay down")}
		create := newCreateFixture(invitations, mailer)
		out, err := create.Execute(context.Background(), &CreateInvitationInput{
			Actor: testSuperadmin(),
			Email: "invitee@example.com",
			Role:  model.RoleAdmin,
		})
		require.NoError(t, err)
		assert.False(t, out.EmailSent)
		assert.Contains(t, out.EmailError, "smtp relay down")
		stored := invitations.get(out.Invitation.ID)
		require.NotNil(t, stored)
		assert.Equal(t, model.InvitationPending, stored.Status)
	})

	t.Run("Should reject an invalid email before any persistence", func(t *testing.T) {
		invitations := newFakeInvitationRepo()
		create := newCreateFixture(invitations, &fakeMailer{})
		_, err := create.Execute(context.Background(), &CreateInvitationInput{
			Actor: testSuperadmin(),
			Email: "not-an-address",
			Role:  model.RoleAdmin,
		})
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.CodeValidation))
	})

	t.Run("Should refuse a non-superadmin actor", func(t *testing.T) {
		invitations := newFakeInvitationRepo()
		create := newCreateFixture(invitations, &fakeMailer{})
		actor := &model.User{ID: 2, Email: "admin@example.com", RoleID: model.RoleAdmin, Active: true}
		_, err := create.Execute(context.Background(), &CreateInvitationInput{
			Actor: actor,
			Email: "invitee@example.com",
			Role:  model.RoleAdmin,
		})
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.CodePermission))
	})

	t.Run("Should refuse a self-invitation", func(t *testing.T) {
		invitations := newFakeInvitationRepo()
		create := newCreateFixture(invitations, &fakeMailer{})
		actor := testSuperadmin()
		_, err := create.Execute(context.Background(), &CreateInvitationInput{
			Actor: actor,
			Email: "Boss@Example.com",
			Role:  model.RoleAdmin,
		})
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.CodePermission))
	})

	t.Run("Should reject repeated invitations to the same address as suspicious", func(t *testing.T) {
		invitations := newFakeInvitationRepo()
		for i := 0; i < 3; i++ {
			invitations.seed(&model.Invitation{
				Email:     "target@example.com",
				RoleID:    model.RoleUser,
				Token:     model.NewInviteToken(time.Now()),
				Status:    model.InvitationPending,
				InvitedBy: 1,
				ExpiresAt: time.Now().Add(time.Hour),
			})
		}
		create := newCreateFixture(invitations, &fakeMailer{})
		_, err := create.Execute(context.Background(), &CreateInvitationInput{
			Actor: testSuperadmin(),
			Email: "target@example.com",
			Role:  model.RoleAdmin,
		})
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.CodePermission))
		var coded *core.Error
		require.True(t, errors.As(err, &coded))
		reasons, ok := coded.Details["reasons"].([]string)
		require.True(t, ok)
		assert.Contains(t, reasons, security.ReasonSameEmailRepeated)
	})

	t.Run("Should report every matched heuristic at once", func(t *testing.T) {
		invitations := newFakeInvitationRepo()
		// 6 invitations in the last hour, 4 of them to the same address.
		for i := 0; i < 6; i++ {
			email := "spread@example.com"
			if i < 4 {
				email = "target@example.com"
			}
			invitations.seed(&model.Invitation{
				Email:     email,
				RoleID:    model.RoleUser,
				Token:     model.NewInviteToken(time.Now()),
				Status:    model.InvitationPending,
				InvitedBy: 1,
				ExpiresAt: time.Now().Add(time.Hour),
			})
		}
		create := newCreateFixture(invitations, &fakeMailer{})
		_, err := create.Execute(context.Background(), &CreateInvitationInput{
			Actor: testSuperadmin(),
			Email: "target@example.com",
			Role:  model.RoleAdmin,
		})
		require.Error(t, err)
		var coded *core.Error
		require.True(t, errors.As(err, &coded))
		reasons, ok := coded.Details["reasons"].([]string)
		require.True(t, ok)
		assert.Contains(t, reasons, security.ReasonTooManyPerHour)
		assert.Contains(t, reasons, security.ReasonSameEmailRepeated)
	})

	t.Run("Should surface persistence failures with the persistence code", func(t *testing.T) {
		invitations := newFakeInvitationRepo()
		invitations.createErr = errors.New("insert failed")
		create := newCreateFixture(invitations, &fakeMailer{})
		_, err := create.Execute(context.Background(), &CreateInvitationInput{
			Actor: testSuperadmin(),
			Email: "invitee@example.com",
			Role:  model.RoleAdmin,
		})
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.CodePersistence))
	})
}
