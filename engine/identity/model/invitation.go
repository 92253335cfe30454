package model

import "time"

// InvitationStatus is the lifecycle state of an invitation.
type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "pending"
	InvitationAccepted  InvitationStatus = "accepted"
	InvitationCancelled InvitationStatus = "cancelled"
	InvitationExpired   InvitationStatus = "expired"
)

// Valid checks if the status is a known lifecycle state.
func (s InvitationStatus) Valid() bool {
	switch s {
	case InvitationPending, InvitationAccepted, InvitationCancelled, InvitationExpired:
		return true
	default:
		return false
	}
}

// Terminal reports whether the state admits no further transitions.
func (s InvitationStatus) Terminal() bool {
	return s == InvitationAccepted || s == InvitationCancelled || s == InvitationExpired
}

// Invitation is a time-boxed offer of admin or superadmin authority to an
// email address. Rows are never deleted; cancellation and expiry are status
// transitions so the audit trail survives.
type Invitation struct {
	ID          int64            `db:"id"`
	Email       string           `db:"email"`
	RoleID      RoleID           `db:"role_id"`
	Token       string           `db:"token"`
	Status      InvitationStatus `db:"status"`
	Message     string           `db:"message"`
	InvitedBy   int64            `db:"invited_by"`
	ExpiresAt   time.Time        `db:"expires_at"`
	AcceptedAt  *time.Time       `db:"accepted_at"`
	CancelledAt *time.Time       `db:"cancelled_at"`
	CreatedAt   time.Time        `db:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at"`
}

// ExpiredAt reports whether the invitation's expiry has passed at now.
func (i *Invitation) ExpiredAt(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
