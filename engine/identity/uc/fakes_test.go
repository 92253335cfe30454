package uc

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/atriumhq/atrium/engine/identity/model"
)

// In-memory fakes mirroring the store's unique-index and conditional-update
// semantics, so the use cases can be exercised under real concurrency.

type fakeUserRepo struct {
	mu        sync.Mutex
	nextID    int64
	users     map[int64]*model.User
	createErr error
	updateErr error
	deleteErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*model.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.users {
		if u.ExternalID == user.ExternalID || strings.EqualFold(u.Email, user.Email) {
			return ErrConflict
		}
	}
	f.nextID++
	user.ID = f.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetByExternalID(_ context.Context, externalID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ExternalID == externalID {
			copied := *u
			return &copied, nil
		}
	}
	return nil, ErrUserNotFound
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, ErrUserNotFound
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, ErrUserNotFound
}

func (f *fakeUserRepo) Update(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	for id, u := range f.users {
		if u.ExternalID == user.ExternalID {
			user.ID = id
			user.UpdatedAt = time.Now()
			stored := *user
			f.users[id] = &stored
			return nil
		}
	}
	return ErrUserNotFound
}

func (f *fakeUserRepo) List(_ context.Context) ([]*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.User, 0, len(f.users))
	for _, u := range f.users {
		copied := *u
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUserRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

type fakeInvitationRepo struct {
	mu               sync.Mutex
	nextID           int64
	invitations      map[int64]*model.Invitation
	createErr        error
	markExpiredCalls int
}

func newFakeInvitationRepo() *fakeInvitationRepo {
	return &fakeInvitationRepo{invitations: make(map[int64]*model.Invitation)}
}

func (f *fakeInvitationRepo) seed(inv *model.Invitation) *model.Invitation {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	inv.ID = f.nextID
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}
	inv.UpdatedAt = inv.CreatedAt
	stored := *inv
	f.invitations[inv.ID] = &stored
	return inv
}

func (f *fakeInvitationRepo) Create(_ context.Context, inv *model.Invitation) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.seed(inv)
	return nil
}

func (f *fakeInvitationRepo) GetByToken(_ context.Context, token string) (*model.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.invitations {
		if inv.Token == token {
			copied := *inv
			return &copied, nil
		}
	}
	return nil, ErrInvitationNotFound
}

func (f *fakeInvitationRepo) GetByID(_ context.Context, id int64) (*model.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if inv, ok := f.invitations[id]; ok {
		copied := *inv
		return &copied, nil
	}
	return nil, ErrInvitationNotFound
}

func (f *fakeInvitationRepo) ListByStatus(_ context.Context, status model.InvitationStatus) ([]*model.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Invitation
	for _, inv := range f.invitations {
		if inv.Status == status {
			copied := *inv
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeInvitationRepo) ListByInviter(_ context.Context, inviterID int64) ([]*model.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Invitation
	for _, inv := range f.invitations {
		if inv.InvitedBy == inviterID {
			copied := *inv
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeInvitationRepo) transition(id int64, to model.InvitationStatus, at *time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invitations[id]
	if !ok || inv.Status != model.InvitationPending {
		return false
	}
	inv.Status = to
	inv.UpdatedAt = time.Now()
	switch to {
	case model.InvitationAccepted:
		inv.AcceptedAt = at
	case model.InvitationCancelled:
		inv.CancelledAt = at
	}
	return true
}

func (f *fakeInvitationRepo) MarkAccepted(_ context.Context, id int64, at time.Time) (bool, error) {
	return f.transition(id, model.InvitationAccepted, &at), nil
}

func (f *fakeInvitationRepo) MarkCancelled(_ context.Context, id int64, at time.Time) (bool, error) {
	return f.transition(id, model.InvitationCancelled, &at), nil
}

func (f *fakeInvitationRepo) MarkExpired(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	f.markExpiredCalls++
	f.mu.Unlock()
	return f.transition(id, model.InvitationExpired, nil), nil
}

func (f *fakeInvitationRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.invitations[id]; !ok {
		return ErrInvitationNotFound
	}
	delete(f.invitations, id)
	return nil
}

func (f *fakeInvitationRepo) CountByInviterSince(_ context.Context, inviterID int64, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, inv := range f.invitations {
		if inv.InvitedBy == inviterID && !inv.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (f *fakeInvitationRepo) CountByInviterAndRoleSince(_ context.Context, inviterID int64, role model.RoleID, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, inv := range f.invitations {
		if inv.InvitedBy == inviterID && inv.RoleID == role && !inv.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (f *fakeInvitationRepo) CountByEmailSince(_ context.Context, email string, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, inv := range f.invitations {
		if strings.EqualFold(inv.Email, email) && !inv.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (f *fakeInvitationRepo) get(id int64) *model.Invitation {
	f.mu.Lock()
	defer f.mu.Unlock()
	if inv, ok := f.invitations[id]; ok {
		copied := *inv
		return &copied
	}
	return nil
}

type fakeSyncLogRepo struct {
	mu        sync.Mutex
	entries   []*model.SyncLog
	appendErr error
}

func (f *fakeSyncLogRepo) Append(_ context.Context, entry *model.SyncLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeSyncLogRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type fakeProvider struct {
	mu         sync.Mutex
	nextID     int
	identities []*Identity
	created    []string
	deleted    []string
	confirmed  []string
	createErr  error
	listErr    error
}

func (f *fakeProvider) Create(_ context.Context, email, _ string, metadata map[string]any) (*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	id := &Identity{
		ID:       testUUID(f.nextID),
		Email:    email,
		Metadata: metadata,
	}
	f.identities = append(f.identities, id)
	f.created = append(f.created, id.ID)
	return id, nil
}

func (f *fakeProvider) GetByID(_ context.Context, id string) (*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, identity := range f.identities {
		if identity.ID == id {
			return identity, nil
		}
	}
	return nil, ErrIdentityNotFound
}

func (f *fakeProvider) ListAll(_ context.Context) ([]*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*Identity, len(f.identities))
	copy(out, f.identities)
	return out, nil
}

func (f *fakeProvider) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	for i, identity := range f.identities {
		if identity.ID == id {
			f.identities = append(f.identities[:i], f.identities[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeProvider) ConfirmEmail(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, id)
	return nil
}

type sentMail struct {
	To   string
	Kind string
	Vars map[string]any
}

type fakeMailer struct {
	mu      sync.Mutex
	sent    []sentMail
	sendErr error
}

func (f *fakeMailer) Send(_ context.Context, to, kind string, vars map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, sentMail{To: to, Kind: kind, Vars: vars})
	return "msg-1", nil
}

func (f *fakeMailer) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// testUUID builds a deterministic well-formed UUID for fixtures.
func testUUID(n int) string {
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", n)
}
