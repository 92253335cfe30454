package uc

import (
	"context"
	"time"

	"github.com/atriumhq/atrium/engine/identity/model"
)

// UserRepository is the data access contract for the local user mirror.
type UserRepository interface {
	// Create inserts a new user. It returns ErrConflict when the external
	// id or email collides with an existing row.
	Create(ctx context.Context, user *model.User) error
	// GetByExternalID retrieves a user by external identity id.
	GetByExternalID(ctx context.Context, externalID string) (*model.User, error)
	// GetByEmail retrieves a user by email, case-insensitively.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// GetByID retrieves a user by internal id.
	GetByID(ctx context.Context, id int64) (*model.User, error)
	// Update persists mutable fields of an existing user, matching on
	// external id so the insert-conflict fallback converges on the row
	// that won the race.
	Update(ctx context.Context, user *model.User) error
	// List retrieves all users.
	List(ctx context.Context) ([]*model.User, error)
	// Delete hard-deletes a user by internal id. Only the orphan cleanup
	// path uses it.
	Delete(ctx context.Context, id int64) error
}

// InvitationRepository is the data access contract for invitations. State
// transitions are conditional updates carrying the source-state guard in
// their WHERE clause; they report whether a row was written.
type InvitationRepository interface {
	Create(ctx context.Context, inv *model.Invitation) error
	GetByToken(ctx context.Context, token string) (*model.Invitation, error)
	GetByID(ctx context.Context, id int64) (*model.Invitation, error)
	ListByStatus(ctx context.Context, status model.InvitationStatus) ([]*model.Invitation, error)
	ListByInviter(ctx context.Context, inviterID int64) ([]*model.Invitation, error)
	// MarkAccepted transitions pending -> accepted.
	MarkAccepted(ctx context.Context, id int64, at time.Time) (bool, error)
	// MarkCancelled transitions pending -> cancelled.
	MarkCancelled(ctx context.Context, id int64, at time.Time) (bool, error)
	// MarkExpired transitions pending -> expired.
	MarkExpired(ctx context.Context, id int64) (bool, error)
	// Delete removes a row outright. Reserved for the bulk delete action.
	Delete(ctx context.Context, id int64) error

	// Audit-trail projections used by anomaly detection.
	CountByInviterSince(ctx context.Context, inviterID int64, since time.Time) (int, error)
	CountByInviterAndRoleSince(ctx context.Context, inviterID int64, role model.RoleID, since time.Time) (int, error)
	CountByEmailSince(ctx context.Context, email string, since time.Time) (int, error)
}

// SyncLogRepository appends reconciliation audit records. Failures on this
// path are best-effort by contract: callers log and move on.
type SyncLogRepository interface {
	Append(ctx context.Context, entry *model.SyncLog) error
}
