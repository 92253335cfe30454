package model

import "time"

// Sync log event types.
const (
	SyncEventSignIn        = "sign_in_sync"
	SyncEventSignUp        = "sign_up_sync"
	SyncEventReconcile     = "reconcile"
	SyncEventOrphanCleanup = "orphan_cleanup"
)

// SyncLog is an append-only audit record of a reconciliation attempt.
// Rows are write-once; the application never updates or deletes them.
type SyncLog struct {
	ID         int64          `db:"id"`
	EventType  string         `db:"event_type"`
	ExternalID string         `db:"external_id"`
	Success    bool           `db:"success"`
	Error      string         `db:"error"`
	Payload    map[string]any `db:"payload"`
	CreatedAt  time.Time      `db:"created_at"`
}
