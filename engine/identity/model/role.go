package model

// RoleID identifies an authority level. Lower id means higher authority.
// The roles table is seeded once at migration time and never grows at
// runtime.
type RoleID int

const (
	RoleSuperadmin RoleID = 1
	RoleAdmin      RoleID = 2
	RoleUser       RoleID = 3
)

// Valid checks if the role id is one of the seeded roles.
func (r RoleID) Valid() bool {
	return r == RoleSuperadmin || r == RoleAdmin || r == RoleUser
}

// Name returns the stable role name used in invitations and audit entries.
func (r RoleID) Name() string {
	switch r {
	case RoleSuperadmin:
		return "superadmin"
	case RoleAdmin:
		return "admin"
	case RoleUser:
		return "user"
	default:
		return "unknown"
	}
}

// ParseRole maps a role name to its id.
func ParseRole(name string) (RoleID, bool) {
	switch name {
	case "superadmin":
		return RoleSuperadmin, true
	case "admin":
		return RoleAdmin, true
	case "user":
		return RoleUser, true
	default:
		return 0, false
	}
}
