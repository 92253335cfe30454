package uc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atriumhq/atrium/engine/core"
	"github.com/atriumhq/atrium/engine/identity/model"
	"github.com/atriumhq/atrium/pkg/logger"
	"github.com/google/uuid"
)

// SyncOneInput carries one authentication event from the provider.
type SyncOneInput struct {
	ExternalID    string
	Email         string
	EmailVerified bool
	LastSignInAt  *time.Time
	Metadata      map[string]any
	IsNewSignup   bool
}

// SyncOneOutput reports the converged local row.
type SyncOneOutput struct {
	User    *model.User
	Created bool
}

// SyncOne mirrors a single external identity into the local store. It is
// safe to call concurrently for the same identity: the store's unique index
// arbitrates the race, and the loser of an insert race falls back to an
// update against the same external id.
type SyncOne struct {
	users  UserRepository
	logs   SyncLogRepository
	policy *Policy
}

// NewSyncOne creates the sync use case.
func NewSyncOne(users UserRepository, logs SyncLogRepository, policy *Policy) *SyncOne {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &SyncOne{users: users, logs: logs, policy: policy}
}

// Execute converges the local mirror for one identity.
func (s *SyncOne) Execute(ctx context.Context, in *SyncOneInput) (*SyncOneOutput, error) {
	if _, err := uuid.Parse(in.ExternalID); err != nil {
		return nil, core.NewError(ErrInvalidExternalID, core.CodeValidation, map[string]any{
			"external_id": in.ExternalID,
		})
	}
	out, err := s.sync(ctx, in)
	s.appendLog(ctx, in, err)
	return out, err
}

func (s *SyncOne) sync(ctx context.Context, in *SyncOneInput) (*SyncOneOutput, error) {
	log := logger.FromContext(ctx)
	existing, err := s.users.GetByExternalID(ctx, in.ExternalID)
	switch {
	case err == nil:
		return s.update(ctx, existing, in)
	case errors.Is(err, ErrUserNotFound):
		// fall through to insert
	default:
		return nil, core.NewError(fmt.Errorf("looking up user: %w", err), core.CodePersistence, nil)
	}
	user := &model.User{
		ExternalID:    in.ExternalID,
		Email:         in.Email,
		RoleID:        s.policy.RoleFor(in.Email),
		Active:        true,
		EmailVerified: in.EmailVerified,
		LastSignInAt:  in.LastSignInAt,
		Metadata:      in.Metadata,
	}
	createErr := s.users.Create(ctx, user)
	if createErr == nil {
		log.Debug("Created local user", "external_id", in.ExternalID, "role", user.RoleID.Name())
		return &SyncOneOutput{User: user, Created: true}, nil
	}
	if !errors.Is(createErr, ErrConflict) {
		return nil, core.NewError(fmt.Errorf("inserting user: %w", createErr), core.CodePersistence, nil)
	}
	// A concurrent request inserted the row between our lookup and insert.
	// Re-read the winner and converge via update instead of surfacing the
	// conflict.
	log.Debug("Insert lost creation race, falling back to update", "external_id", in.ExternalID)
	winner, err := s.users.GetByExternalID(ctx, in.ExternalID)
	if err != nil {
		return nil, core.NewError(
			fmt.Errorf("conflict fallback lookup: %w", err),
			core.CodePersistence,
			map[string]any{"external_id": in.ExternalID},
		)
	}
	return s.update(ctx, winner, in)
}

func (s *SyncOne) update(ctx context.Context, user *model.User, in *SyncOneInput) (*SyncOneOutput, error) {
	if in.Email != "" {
		user.Email = in.Email
	}
	user.EmailVerified = in.EmailVerified
	if in.LastSignInAt != nil {
		user.LastSignInAt = in.LastSignInAt
	}
	if len(in.Metadata) > 0 {
		user.Metadata = in.Metadata
	}
	// Role only moves on a fresh signup or when the computed role is the
	// highest authority: an ordinary login sync must never demote an
	// existing admin or superadmin.
	computed := s.policy.RoleFor(user.Email)
	if in.IsNewSignup || computed == model.RoleSuperadmin {
		user.RoleID = computed
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, core.NewError(fmt.Errorf("updating user: %w", err), core.CodePersistence, nil)
	}
	return &SyncOneOutput{User: user, Created: false}, nil
}

// appendLog writes the audit record. Log write failures never fail the sync.
func (s *SyncOne) appendLog(ctx context.Context, in *SyncOneInput, syncErr error) {
	if s.logs == nil {
		return
	}
	eventType := model.SyncEventSignIn
	if in.IsNewSignup {
		eventType = model.SyncEventSignUp
	}
	entry := &model.SyncLog{
		EventType:  eventType,
		ExternalID: in.ExternalID,
		Success:    syncErr == nil,
		Payload:    map[string]any{"email": in.Email, "new_signup": in.IsNewSignup},
	}
	if syncErr != nil {
		entry.Error = syncErr.Error()
	}
	if err := s.logs.Append(ctx, entry); err != nil {
		logger.FromContext(ctx).Warn("Failed to append sync log", "external_id", in.ExternalID, "error", err)
	}
}
