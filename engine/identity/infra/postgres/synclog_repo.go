package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/atriumhq/atrium/engine/identity/model"
)

// SyncLogRepo implements uc.SyncLogRepository on Postgres. Rows are
// write-once; there is no update or delete path.
type SyncLogRepo struct {
	db DBInterface
}

// NewSyncLogRepo creates the sync log repository.
func NewSyncLogRepo(db DBInterface) *SyncLogRepo {
	return &SyncLogRepo{db: db}
}

// Append writes one audit record.
func (r *SyncLogRepo) Append(ctx context.Context, entry *model.SyncLog) error {
	query, args, err := squirrel.Insert("sync_logs").
		Columns("event_type", "external_id", "success", "error", "payload").
		Values(entry.EventType, entry.ExternalID, entry.Success, entry.Error, entry.Payload).
		Suffix("RETURNING id, created_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if err := r.db.QueryRow(ctx, query, args...).Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return fmt.Errorf("inserting sync log: %w", err)
	}
	return nil
}
