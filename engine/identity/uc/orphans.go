package uc

import (
	"context"
	"fmt"
	"time"

	"github.com/atriumhq/atrium/engine/identity/model"
	"github.com/atriumhq/atrium/pkg/logger"
)

// Orphans answers the divergence questions between the provider's user set
// and the local mirror: which local rows lost their external identity, and
// which identities have no local row.
type Orphans struct {
	provider IdentityProvider
	users    UserRepository
	logs     SyncLogRepository
	policy   *Policy
	now      func() time.Time
}

// NewOrphans creates the orphan detection and cleanup use case.
func NewOrphans(provider IdentityProvider, users UserRepository, logs SyncLogRepository, policy *Policy) *Orphans {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Orphans{provider: provider, users: users, logs: logs, policy: policy, now: time.Now}
}

// FindOrphaned returns the external ids of local users whose identity no
// longer exists at the provider. Read-only.
func (o *Orphans) FindOrphaned(ctx context.Context) ([]string, error) {
	orphans, err := o.orphanedUsers(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(orphans))
	for _, u := range orphans {
		ids = append(ids, u.ExternalID)
	}
	return ids, nil
}

// FindMissing returns external ids known to the provider that have no local
// mirror. Read-only.
func (o *Orphans) FindMissing(ctx context.Context) ([]string, error) {
	identities, err := listIdentities(ctx, o.provider)
	if err != nil {
		return nil, fmt.Errorf("listing provider identities: %w", err)
	}
	local, err := o.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing local users: %w", err)
	}
	known := make(map[string]struct{}, len(local))
	for _, u := range local {
		known[u.ExternalID] = struct{}{}
	}
	var missing []string
	for _, id := range identities {
		if _, ok := known[id.ID]; !ok {
			missing = append(missing, id.ID)
		}
	}
	return missing, nil
}

// CleanupOrphaned hard-deletes orphaned local users and returns how many
// rows were removed. A configurable grace window skips rows touched
// recently, so a transient provider outage does not destroy live users.
func (o *Orphans) CleanupOrphaned(ctx context.Context) (int, error) {
	log := logger.FromContext(ctx)
	orphans, err := o.orphanedUsers(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := o.now().Add(-o.policy.OrphanGrace)
	deleted := 0
	for _, u := range orphans {
		if o.policy.OrphanGrace > 0 && u.UpdatedAt.After(cutoff) {
			log.Debug("Skipping orphan inside grace window", "external_id", u.ExternalID)
			continue
		}
		if err := o.users.Delete(ctx, u.ID); err != nil {
			log.Warn("Failed to delete orphaned user", "external_id", u.ExternalID, "error", err)
			continue
		}
		o.appendCleanupLog(ctx, u)
		deleted++
	}
	log.Info("Orphan cleanup finished", "deleted", deleted, "candidates", len(orphans))
	return deleted, nil
}

func (o *Orphans) orphanedUsers(ctx context.Context) ([]*model.User, error) {
	identities, err := listIdentities(ctx, o.provider)
	if err != nil {
		return nil, fmt.Errorf("listing provider identities: %w", err)
	}
	local, err := o.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing local users: %w", err)
	}
	alive := make(map[string]struct{}, len(identities))
	for _, id := range identities {
		alive[id.ID] = struct{}{}
	}
	var orphans []*model.User
	for _, u := range local {
		if _, ok := alive[u.ExternalID]; !ok {
			orphans = append(orphans, u)
		}
	}
	return orphans, nil
}

func (o *Orphans) appendCleanupLog(ctx context.Context, u *model.User) {
	if o.logs == nil {
		return
	}
	entry := &model.SyncLog{
		EventType:  model.SyncEventOrphanCleanup,
		ExternalID: u.ExternalID,
		Success:    true,
		Payload:    map[string]any{"email": u.Email, "user_id": u.ID},
	}
	if err := o.logs.Append(ctx, entry); err != nil {
		logger.FromContext(ctx).Warn("Failed to append cleanup log", "external_id", u.ExternalID, "error", err)
	}
}
