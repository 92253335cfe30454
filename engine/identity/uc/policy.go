package uc

import (
	"strings"
	"time"

	"github.com/atriumhq/atrium/engine/identity/model"
)

// Policy carries the injected identity rules: the superadmin allow-list and
// the invitation timing knobs. It is built from configuration at startup so
// no address or window is hard-coded in sync logic.
type Policy struct {
	Superadmins   []string
	InvitationTTL time.Duration
	TokenGrace    time.Duration
	OrphanGrace   time.Duration
}

// DefaultPolicy returns the policy used when configuration provides none.
func DefaultPolicy() *Policy {
	return &Policy{
		InvitationTTL: 7 * 24 * time.Hour,
		TokenGrace:    time.Hour,
	}
}

// RoleFor computes the sync-time role for an address: allow-listed addresses
// map to superadmin, everything else defaults to user. Admin is only
// reachable through invitation acceptance, never through this rule.
func (p *Policy) RoleFor(email string) model.RoleID {
	for _, allowed := range p.Superadmins {
		if strings.EqualFold(allowed, email) {
			return model.RoleSuperadmin
		}
	}
	return model.RoleUser
}
