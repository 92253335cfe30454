package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atriumhq/atrium/engine/identity/model"
	"github.com/go-playground/validator/v10"
)

// Stable reason strings. They are written verbatim into audit entries and
// returned to callers, so changing them is a breaking change.
const (
	ReasonInviterInactive = "Inviter must be an active user"
	ReasonNotSuperadmin   = "Only superadmins can send invitations"
	ReasonSelfInvite      = "Cannot invite your own email address"
	ReasonInvalidRole     = "Invitation role must be admin or superadmin"

	ReasonInvalidEmailFormat = "Invalid email format"
	ReasonDisposableDomain   = "Disposable email domains are not allowed"
	ReasonReservedLocalPart  = "Reserved local parts are not allowed"

	ReasonTooManyPerHour     = "Excessive invitations per hour"
	ReasonTooManyPerDay      = "Excessive invitations per day"
	ReasonSameEmailRepeated  = "Multiple invitations to same email address"
	ReasonTooManySuperadmins = "Excessive superadmin invitations per hour"

	ReasonTokenMalformed = "Token is malformed"
	ReasonTokenTooOld    = "Token is implausibly old"
)

// Domains whose addresses are throwaway by construction. A heuristic
// defense, not a guarantee.
var disposableDomains = map[string]struct{}{
	"mailinator.com":    {},
	"guerrillamail.com": {},
	"10minutemail.com":  {},
	"tempmail.com":      {},
	"throwaway.email":   {},
	"yopmail.com":       {},
}

// Local parts that are never legitimate invitees.
var reservedLocalParts = map[string]struct{}{
	"admin":      {},
	"root":       {},
	"noreply":    {},
	"no-reply":   {},
	"postmaster": {},
}

// AuditCounter is the slice of the invitation audit trail that anomaly
// detection reads.
type AuditCounter interface {
	CountByInviterSince(ctx context.Context, inviterID int64, since time.Time) (int, error)
	CountByInviterAndRoleSince(ctx context.Context, inviterID int64, role model.RoleID, since time.Time) (int, error)
	CountByEmailSince(ctx context.Context, email string, since time.Time) (int, error)
}

// Thresholds are the anomaly limits evaluated over the audit trail.
type Thresholds struct {
	MaxInvitesPerHour    int
	MaxInvitesPerDay     int
	MaxSameEmailPerDay   int
	MaxSuperadminPerHour int
}

// DefaultThresholds mirrors the documented heuristics: 5/hour, 20/day,
// 3 to the same address per day, 2 superadmin invitations per hour.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxInvitesPerHour:    5,
		MaxInvitesPerDay:     20,
		MaxSameEmailPerDay:   3,
		MaxSuperadminPerHour: 2,
	}
}

// AnomalyReport carries every matched heuristic, not just the first: the
// audit log should see the full picture of a suspicious attempt.
type AnomalyReport struct {
	Suspicious bool     `json:"suspicious"`
	Reasons    []string `json:"reasons,omitempty"`
}

// Validator layers permission and anomaly checks in front of invitation
// creation, plus structural token checks in front of token lookups.
type Validator struct {
	counter    AuditCounter
	thresholds Thresholds
	tokenTTL   time.Duration
	tokenGrace time.Duration
	validate   *validator.Validate
	now        func() time.Time
}

// NewValidator builds a validator over the given audit trail.
func NewValidator(counter AuditCounter, thresholds Thresholds, tokenTTL, tokenGrace time.Duration) *Validator {
	return &Validator{
		counter:    counter,
		thresholds: thresholds,
		tokenTTL:   tokenTTL,
		tokenGrace: tokenGrace,
		validate:   validator.New(),
		now:        time.Now,
	}
}

// AuthorizeCreation decides whether actor may issue an invitation for
// targetRole to inviteeEmail. Only an active superadmin may invite at all,
// and never to their own address.
func (v *Validator) AuthorizeCreation(actor *model.User, targetRole model.RoleID, inviteeEmail string) (bool, string) {
	if actor == nil || !actor.Active {
		return false, ReasonInviterInactive
	}
	if actor.RoleID != model.RoleSuperadmin {
		return false, ReasonNotSuperadmin
	}
	if targetRole != model.RoleAdmin && targetRole != model.RoleSuperadmin {
		return false, ReasonInvalidRole
	}
	if strings.EqualFold(actor.Email, inviteeEmail) {
		return false, ReasonSelfInvite
	}
	return true, ""
}

// DetectAnomalies evaluates the four invitation-rate heuristics over a
// sliding window. The attempt under evaluation counts toward each window,
// so a threshold of N rejects once N prior rows exist. All triggered
// reasons are reported together.
func (v *Validator) DetectAnomalies(ctx context.Context, actor *model.User, inviteeEmail string) (*AnomalyReport, error) {
	now := v.now()
	report := &AnomalyReport{}
	hourAgo := now.Add(-time.Hour)
	dayAgo := now.Add(-24 * time.Hour)

	hourly, err := v.counter.CountByInviterSince(ctx, actor.ID, hourAgo)
	if err != nil {
		return nil, fmt.Errorf("counting hourly invitations: %w", err)
	}
	if hourly >= v.thresholds.MaxInvitesPerHour {
		report.Reasons = append(report.Reasons, ReasonTooManyPerHour)
	}

	daily, err := v.counter.CountByInviterSince(ctx, actor.ID, dayAgo)
	if err != nil {
		return nil, fmt.Errorf("counting daily invitations: %w", err)
	}
	if daily >= v.thresholds.MaxInvitesPerDay {
		report.Reasons = append(report.Reasons, ReasonTooManyPerDay)
	}

	sameEmail, err := v.counter.CountByEmailSince(ctx, inviteeEmail, dayAgo)
	if err != nil {
		return nil, fmt.Errorf("counting same-email invitations: %w", err)
	}
	if sameEmail >= v.thresholds.MaxSameEmailPerDay {
		report.Reasons = append(report.Reasons, ReasonSameEmailRepeated)
	}

	superadmin, err := v.counter.CountByInviterAndRoleSince(ctx, actor.ID, model.RoleSuperadmin, hourAgo)
	if err != nil {
		return nil, fmt.Errorf("counting superadmin invitations: %w", err)
	}
	if superadmin >= v.thresholds.MaxSuperadminPerHour {
		report.Reasons = append(report.Reasons, ReasonTooManySuperadmins)
	}

	report.Suspicious = len(report.Reasons) > 0
	return report, nil
}

// ValidateEmailPattern checks the address format plus a denylist of
// structural patterns.
func (v *Validator) ValidateEmailPattern(email string) (bool, string) {
	if v.validate.Var(email, "required,email") != nil {
		return false, ReasonInvalidEmailFormat
	}
	local, domain, _ := strings.Cut(strings.ToLower(email), "@")
	if _, ok := disposableDomains[domain]; ok {
		return false, ReasonDisposableDomain
	}
	if _, ok := reservedLocalParts[local]; ok {
		return false, ReasonReservedLocalPart
	}
	return true, ""
}

// ValidateToken structurally checks an invitation token without touching
// the store: the UUID segment must parse and the embedded timestamp must be
// positive and no older than the invitation TTL plus grace.
func (v *Validator) ValidateToken(token string) (bool, string) {
	_, stamp, err := model.ParseInviteToken(token)
	if err != nil {
		return false, ReasonTokenMalformed
	}
	if v.now().Sub(stamp) > v.tokenTTL+v.tokenGrace {
		return false, ReasonTokenTooOld
	}
	return true, ""
}
