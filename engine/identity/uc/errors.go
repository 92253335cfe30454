package uc

import "errors"

// Domain errors surfaced by the identity use cases. Handlers map these onto
// transport codes; the engine wraps them in core.Error to attach the stable
// taxonomy code.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrInvalidExternalID  = errors.New("external id is not a well-formed identifier")
	ErrDuplicateUser      = errors.New("a user already exists for this email")
	ErrEmailMismatch      = errors.New("email does not match the invitation")
	ErrInvitationExpired  = errors.New("invitation has expired")
	ErrInvalidState       = errors.New("invitation is not in a state that allows this transition")
	ErrConflict           = errors.New("unique constraint violation")
	ErrIdentityNotFound   = errors.New("external identity not found")
)
