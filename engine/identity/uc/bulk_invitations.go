package uc

import (
	"context"
	"fmt"
	"time"

	"github.com/atriumhq/atrium/pkg/logger"
)

// BulkAction names an operation applied to many invitations at once.
type BulkAction string

const (
	BulkCancel      BulkAction = "cancel"
	BulkDelete      BulkAction = "delete"
	BulkMarkExpired BulkAction = "markExpired"
)

// Valid checks if the action is supported.
func (a BulkAction) Valid() bool {
	return a == BulkCancel || a == BulkDelete || a == BulkMarkExpired
}

// BulkResult summarizes a bulk invitation operation.
type BulkResult struct {
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Errors    []BulkError `json:"errors,omitempty"`
}

// BulkError records one id that failed.
type BulkError struct {
	InvitationID int64  `json:"invitation_id"`
	Error        string `json:"error"`
}

// BulkInvitations applies one action per id, collecting per-id results. One
// id's failure never aborts the batch.
type BulkInvitations struct {
	invitations InvitationRepository
	now         func() time.Time
}

// NewBulkInvitations creates the bulk operation use case.
func NewBulkInvitations(invitations InvitationRepository) *BulkInvitations {
	return &BulkInvitations{invitations: invitations, now: time.Now}
}

// Execute runs action over ids.
func (b *BulkInvitations) Execute(ctx context.Context, ids []int64, action BulkAction) (*BulkResult, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("unsupported bulk action %q", action)
	}
	log := logger.FromContext(ctx)
	result := &BulkResult{Total: len(ids)}
	for _, id := range ids {
		if err := b.apply(ctx, id, action); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, BulkError{InvitationID: id, Error: err.Error()})
			continue
		}
		result.Succeeded++
	}
	log.Info("Bulk invitation operation finished",
		"action", action,
		"total", result.Total,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)
	return result, nil
}

func (b *BulkInvitations) apply(ctx context.Context, id int64, action BulkAction) error {
	switch action {
	case BulkCancel:
		flipped, err := b.invitations.MarkCancelled(ctx, id, b.now())
		if err != nil {
			return err
		}
		if !flipped {
			return ErrInvalidState
		}
		return nil
	case BulkMarkExpired:
		flipped, err := b.invitations.MarkExpired(ctx, id)
		if err != nil {
			return err
		}
		if !flipped {
			return ErrInvalidState
		}
		return nil
	case BulkDelete:
		return b.invitations.Delete(ctx, id)
	default:
		return fmt.Errorf("unsupported bulk action %q", action)
	}
}
