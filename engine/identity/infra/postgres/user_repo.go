package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/atriumhq/atrium/engine/identity/model"
	"github.com/atriumhq/atrium/engine/identity/uc"
	"github.com/georgysavva/scany/v2/pgxscan"
)

var userColumns = []string{
	"id",
	"external_id",
	"email",
	"role_id",
	"active",
	"email_verified",
	"last_sign_in_at",
	"metadata",
	"created_at",
	"updated_at",
}

// UserRepo implements uc.UserRepository on Postgres.
type UserRepo struct {
	db DBInterface
}

// NewUserRepo creates the user repository.
func NewUserRepo(db DBInterface) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts a new user row. Unique-index collisions on external_id or
// email surface as uc.ErrConflict so the sync path can fall back to update.
func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	query, args, err := squirrel.Insert("users").
		Columns("external_id", "email", "role_id", "active", "email_verified", "last_sign_in_at", "metadata").
		Values(user.ExternalID, user.Email, user.RoleID, user.Active, user.EmailVerified, user.LastSignInAt, user.Metadata).
		Suffix("RETURNING id, created_at, updated_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	row := r.db.QueryRow(ctx, query, args...)
	if err := row.Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("inserting user: %w", uc.ErrConflict)
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// GetByExternalID retrieves a user by external identity id.
func (r *UserRepo) GetByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	return r.getOne(ctx, squirrel.Eq{"external_id": externalID})
}

// GetByID retrieves a user by internal id.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, squirrel.Expr("lower(email) = lower(?)", email))
}

func (r *UserRepo) getOne(ctx context.Context, pred any) (*model.User, error) {
	query, args, err := squirrel.Select(userColumns...).
		From("users").
		Where(pred).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var user model.User
	if err := pgxscan.Get(ctx, r.db, &user, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, uc.ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return &user, nil
}

// Update persists the mutable fields, matching on external id so both the
// normal path and the conflict fallback converge on the row that owns the
// identity.
func (r *UserRepo) Update(ctx context.Context, user *model.User) error {
	query, args, err := squirrel.Update("users").
		Set("email", user.Email).
		Set("role_id", user.RoleID).
		Set("active", user.Active).
		Set("email_verified", user.EmailVerified).
		Set("last_sign_in_at", user.LastSignInAt).
		Set("metadata", user.Metadata).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"external_id": user.ExternalID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("updating user: %w", uc.ErrConflict)
		}
		return fmt.Errorf("updating user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return uc.ErrUserNotFound
	}
	return nil
}

// List retrieves all users, newest first.
func (r *UserRepo) List(ctx context.Context) ([]*model.User, error) {
	query, args, err := squirrel.Select(userColumns...).
		From("users").
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var users []*model.User
	if err := pgxscan.Select(ctx, r.db, &users, query, args...); err != nil {
		return nil, fmt.Errorf("scanning users: %w", err)
	}
	return users, nil
}

// Delete hard-deletes a user row. Only the orphan cleanup path calls this.
func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	query, args, err := squirrel.Delete("users").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return uc.ErrUserNotFound
	}
	return nil
}
