package model

import "time"

// User is the local mirror of an external identity. Exactly one row exists
// per external id; email uniqueness is enforced by the store.
type User struct {
	ID            int64          `db:"id"`
	ExternalID    string         `db:"external_id"`
	Email         string         `db:"email"`
	RoleID        RoleID         `db:"role_id"`
	Active        bool           `db:"active"`
	EmailVerified bool           `db:"email_verified"`
	LastSignInAt  *time.Time     `db:"last_sign_in_at"`
	Metadata      map[string]any `db:"metadata"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

// IsSuperadmin reports whether the user holds the highest authority role.
func (u *User) IsSuperadmin() bool {
	return u.RoleID == RoleSuperadmin
}
