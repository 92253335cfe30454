package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Invitation tokens are an opaque bearer credential shaped as
// "<uuid>.<base36 unix seconds>". The embedded timestamp lets callers make
// coarse age checks without a store lookup.

// NewInviteToken mints a token stamped with now.
func NewInviteToken(now time.Time) string {
	return uuid.NewString() + "." + strconv.FormatInt(now.Unix(), 36)
}

// ParseInviteToken splits a token into its UUID segment and embedded
// creation time. It validates structure only, never consulting the store.
func ParseInviteToken(token string) (uuid.UUID, time.Time, error) {
	part, stamp, found := strings.Cut(token, ".")
	if !found {
		return uuid.UUID{}, time.Time{}, fmt.Errorf("token missing timestamp segment")
	}
	id, err := uuid.Parse(part)
	if err != nil {
		return uuid.UUID{}, time.Time{}, fmt.Errorf("token id segment: %w", err)
	}
	unix, err := strconv.ParseInt(stamp, 36, 64)
	if err != nil {
		return uuid.UUID{}, time.Time{}, fmt.Errorf("token timestamp segment: %w", err)
	}
	if unix <= 0 {
		return uuid.UUID{}, time.Time{}, fmt.Errorf("token timestamp is not positive")
	}
	return id, time.Unix(unix, 0), nil
}
