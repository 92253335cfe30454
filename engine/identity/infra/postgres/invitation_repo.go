package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/atriumhq/atrium/engine/identity/model"
	"github.com/atriumhq/atrium/engine/identity/uc"
	"github.com/georgysavva/scany/v2/pgxscan"
)

var invitationColumns = []string{
	"id",
	"email",
	"role_id",
	"token",
	"status",
	"message",
	"invited_by",
	"expires_at",
	"accepted_at",
	"cancelled_at",
	"created_at",
	"updated_at",
}

// InvitationRepo implements uc.InvitationRepository on Postgres. Lifecycle
// transitions are conditional updates whose WHERE clause carries the
// pending-state guard, so a lost race shows up as zero affected rows rather
// than a double write.
type InvitationRepo struct {
	db DBInterface
}

// NewInvitationRepo creates the invitation repository.
func NewInvitationRepo(db DBInterface) *InvitationRepo {
	return &InvitationRepo{db: db}
}

// Create inserts a new pending invitation.
func (r *InvitationRepo) Create(ctx context.Context, inv *model.Invitation) error {
	query, args, err := squirrel.Insert("invitations").
		Columns("email", "role_id", "token", "status", "message", "invited_by", "expires_at").
		Values(inv.Email, inv.RoleID, inv.Token, inv.Status, inv.Message, inv.InvitedBy, inv.ExpiresAt).
		Suffix("RETURNING id, created_at, updated_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	row := r.db.QueryRow(ctx, query, args...)
	if err := row.Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("inserting invitation: %w", uc.ErrConflict)
		}
		return fmt.Errorf("inserting invitation: %w", err)
	}
	return nil
}

// GetByToken retrieves an invitation by its bearer token.
func (r *InvitationRepo) GetByToken(ctx context.Context, token string) (*model.Invitation, error) {
	return r.getOne(ctx, squirrel.Eq{"token": token})
}

// GetByID retrieves an invitation by id.
func (r *InvitationRepo) GetByID(ctx context.Context, id int64) (*model.Invitation, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

func (r *InvitationRepo) getOne(ctx context.Context, pred any) (*model.Invitation, error) {
	query, args, err := squirrel.Select(invitationColumns...).
		From("invitations").
		Where(pred).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var inv model.Invitation
	if err := pgxscan.Get(ctx, r.db, &inv, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, uc.ErrInvitationNotFound
		}
		return nil, fmt.Errorf("scanning invitation: %w", err)
	}
	return &inv, nil
}

// ListByStatus retrieves invitations in a lifecycle state, newest first.
func (r *InvitationRepo) ListByStatus(ctx context.Context, status model.InvitationStatus) ([]*model.Invitation, error) {
	return r.list(ctx, squirrel.Eq{"status": status})
}

// ListByInviter retrieves invitations issued by one user, newest first.
func (r *InvitationRepo) ListByInviter(ctx context.Context, inviterID int64) ([]*model.Invitation, error) {
	return r.list(ctx, squirrel.Eq{"invited_by": inviterID})
}

func (r *InvitationRepo) list(ctx context.Context, pred any) ([]*model.Invitation, error) {
	query, args, err := squirrel.Select(invitationColumns...).
		From("invitations").
		Where(pred).
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var invs []*model.Invitation
	if err := pgxscan.Select(ctx, r.db, &invs, query, args...); err != nil {
		return nil, fmt.Errorf("scanning invitations: %w", err)
	}
	return invs, nil
}

// MarkAccepted transitions pending -> accepted.
func (r *InvitationRepo) MarkAccepted(ctx context.Context, id int64, at time.Time) (bool, error) {
	return r.transition(ctx, id, model.InvitationAccepted, map[string]any{"accepted_at": at})
}

// MarkCancelled transitions pending -> cancelled.
func (r *InvitationRepo) MarkCancelled(ctx context.Context, id int64, at time.Time) (bool, error) {
	return r.transition(ctx, id, model.InvitationCancelled, map[string]any{"cancelled_at": at})
}

// MarkExpired transitions pending -> expired.
func (r *InvitationRepo) MarkExpired(ctx context.Context, id int64) (bool, error) {
	return r.transition(ctx, id, model.InvitationExpired, nil)
}

func (r *InvitationRepo) transition(ctx context.Context, id int64, to model.InvitationStatus, extra map[string]any) (bool, error) {
	qb := squirrel.Update("invitations").
		Set("status", to).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id, "status": model.InvitationPending}).
		PlaceholderFormat(squirrel.Dollar)
	for col, val := range extra {
		qb = qb.Set(col, val)
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return false, fmt.Errorf("building update query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transitioning invitation to %s: %w", to, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes an invitation row outright. Reserved for the bulk delete
// action; single cancellation keeps the row for the audit trail.
func (r *InvitationRepo) Delete(ctx context.Context, id int64) error {
	query, args, err := squirrel.Delete("invitations").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting invitation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return uc.ErrInvitationNotFound
	}
	return nil
}

// CountByInviterSince counts invitations issued by inviterID at or after
// since.
func (r *InvitationRepo) CountByInviterSince(ctx context.Context, inviterID int64, since time.Time) (int, error) {
	return r.count(ctx, squirrel.And{
		squirrel.Eq{"invited_by": inviterID},
		squirrel.GtOrEq{"created_at": since},
	})
}

// CountByInviterAndRoleSince counts role-targeted invitations issued by
// inviterID at or after since.
func (r *InvitationRepo) CountByInviterAndRoleSince(ctx context.Context, inviterID int64, role model.RoleID, since time.Time) (int, error) {
	return r.count(ctx, squirrel.And{
		squirrel.Eq{"invited_by": inviterID, "role_id": role},
		squirrel.GtOrEq{"created_at": since},
	})
}

// CountByEmailSince counts invitations addressed to email at or after since.
func (r *InvitationRepo) CountByEmailSince(ctx context.Context, email string, since time.Time) (int, error) {
	return r.count(ctx, squirrel.And{
		squirrel.Expr("lower(email) = lower(?)", email),
		squirrel.GtOrEq{"created_at": since},
	})
}

func (r *InvitationRepo) count(ctx context.Context, pred squirrel.Sqlizer) (int, error) {
	query, args, err := squirrel.Select("COUNT(*)").
		From("invitations").
		Where(pred).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count query: %w", err)
	}
	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting invitations: %w", err)
	}
	return count, nil
}
