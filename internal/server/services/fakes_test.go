package services

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"framevault/internal/common"
	"framevault/internal/dbx"
	"framevault/internal/logging"
	"framevault/internal/server/models"
	"framevault/internal/server/purge"
	assetsrepo "framevault/internal/server/repositories/assets"
	invitesrepo "framevault/internal/server/repositories/invites"
	membersrepo "framevault/internal/server/repositories/members"
	usersrepo "framevault/internal/server/repositories/users"
	workspacesrepo "framevault/internal/server/repositories/workspaces"
)

// --- shared helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.DiscardHandler))
}

// memStore is an in-memory backing store shared by the fake repositories.
// It models the repository contracts (sentinel errors, idempotency,
// guarded counter updates) without a database; transactional atomicity is
// the real repositories' concern and is tested there.
type memStore struct {
	mu         sync.Mutex
	users      map[string]*models.User
	workspaces map[string]*models.Workspace
	members    map[string]map[string]bool
	assets     map[string]*models.Asset
	assetOrder []string
	invites    map[string]*models.Invite

	// Optional concurrency harness; see holdRowLocks and gateCapCheck.
	rowLock   chan struct{}
	countGate chan struct{}
}

func newMemStore() *memStore {
	return &memStore{
		users:      map[string]*models.User{},
		workspaces: map[string]*models.Workspace{},
		members:    map[string]map[string]bool{},
		assets:     map[string]*models.Asset{},
		invites:    map[string]*models.Invite{},
	}
}

func (s *memStore) addUser(u *models.User) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return u
}

func (s *memStore) addWorkspace(ws *models.Workspace, memberIDs ...string) *models.Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspaces[ws.ID] = ws
	set := map[string]bool{}
	for _, id := range memberIDs {
		set[id] = true
	}
	s.members[ws.ID] = set
	return ws
}

func (s *memStore) addAsset(a *models.Asset) *models.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[a.ID] = a
	s.assetOrder = append(s.assetOrder, a.ID)
	return a
}

func (s *memStore) addInvite(inv *models.Invite) *models.Invite {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invites[inv.Code] = inv
	return inv
}

func (s *memStore) memberCount(workspaceID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members[workspaceID])
}

func (s *memStore) isMember(workspaceID, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[workspaceID][userID]
}

func (s *memStore) storageUsed(workspaceID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workspaces[workspaceID].StorageUsed
}

// holdRowLocks makes fakeWorkspacesRepo.Lock take a store-level lock that
// stays held until releaseRowLock. The real repository's row lock is held
// to the end of the enclosing transaction; a concurrent test calls
// releaseRowLock right after the service call returns, which strictly
// contains the commit.
func (s *memStore) holdRowLocks() { s.rowLock = make(chan struct{}, 1) }

func (s *memStore) releaseRowLock() {
	if s.rowLock == nil {
		return
	}
	select {
	case <-s.rowLock:
	default:
	}
}

// gateCapCheck holds every member-count read until a second concurrent
// reader arrives or the window expires. Two unserialized cap checks are
// forced to overlap, so a test fails if the row lock stops keeping them
// apart, rather than passing by scheduling luck.
func (s *memStore) gateCapCheck() { s.countGate = make(chan struct{}) }

func (s *memStore) waitAtCapCheck() {
	if s.countGate == nil {
		return
	}
	select {
	case s.countGate <- struct{}{}:
	case <-s.countGate:
	case <-time.After(50 * time.Millisecond):
	}
}

// --- fake repositories ---

type fakeUsersRepo struct{ s *memStore }

func (r *fakeUsersRepo) Create(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return common.ErrorAlreadyExists
		}
	}
	r.s.users[user.ID] = user
	return nil
}

func (r *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (r *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

type fakeWorkspacesRepo struct{ s *memStore }

func (r *fakeWorkspacesRepo) Create(ctx context.Context, ws *models.Workspace) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.workspaces[ws.ID] = ws
	if r.s.members[ws.ID] == nil {
		r.s.members[ws.ID] = map[string]bool{}
	}
	return nil
}

func (r *fakeWorkspacesRepo) Get(ctx context.Context, id string) (*models.Workspace, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ws, ok := r.s.workspaces[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *ws
	return &cp, nil
}

func (r *fakeWorkspacesRepo) ListByOwner(ctx context.Context, ownerID string) ([]*models.Workspace, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Workspace
	for _, ws := range r.s.workspaces {
		if ws.OwnerID == ownerID {
			cp := *ws
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeWorkspacesRepo) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, ws := range r.s.workspaces {
		if ws.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (r *fakeWorkspacesRepo) Lock(ctx context.Context, id string) error {
	r.s.mu.Lock()
	_, ok := r.s.workspaces[id]
	r.s.mu.Unlock()
	if !ok {
		return common.ErrorNotFound
	}
	if r.s.rowLock != nil {
		select {
		case r.s.rowLock <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *fakeWorkspacesRepo) AddStorageUsedWithin(ctx context.Context, id string, delta, limit int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ws, ok := r.s.workspaces[id]
	if !ok || ws.StorageUsed+delta > limit {
		return common.ErrorQuotaExceeded
	}
	ws.StorageUsed += delta
	return nil
}

func (r *fakeWorkspacesRepo) ReleaseStorageUsed(ctx context.Context, id string, delta int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ws, ok := r.s.workspaces[id]
	if !ok {
		return false, common.ErrorNotFound
	}
	if ws.StorageUsed >= delta {
		ws.StorageUsed -= delta
		return false, nil
	}
	ws.StorageUsed = 0
	return true, nil
}

func (r *fakeWorkspacesRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.workspaces, id)
	return nil
}

type fakeMembersRepo struct{ s *memStore }

func (r *fakeMembersRepo) Add(ctx context.Context, workspaceID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	set := r.s.members[workspaceID]
	if set == nil {
		set = map[string]bool{}
		r.s.members[workspaceID] = set
	}
	if set[userID] {
		return common.ErrorAlreadyExists
	}
	set[userID] = true
	return nil
}

func (r *fakeMembersRepo) Remove(ctx context.Context, workspaceID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.members[workspaceID], userID)
	return nil
}

func (r *fakeMembersRepo) RemoveAll(ctx context.Context, workspaceID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.members[workspaceID] = map[string]bool{}
	return nil
}

func (r *fakeMembersRepo) Count(ctx context.Context, workspaceID string) (int, error) {
	r.s.waitAtCapCheck()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.members[workspaceID]), nil
}

func (r *fakeMembersRepo) IsMember(ctx context.Context, workspaceID, userID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.members[workspaceID][userID], nil
}

func (r *fakeMembersRepo) List(ctx context.Context, workspaceID string) ([]*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.User
	for id := range r.s.members[workspaceID] {
		if u, ok := r.s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakeAssetsRepo struct{ s *memStore }

func (r *fakeAssetsRepo) Create(ctx context.Context, asset *models.Asset) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.assets[asset.ID] = asset
	r.s.assetOrder = append(r.s.assetOrder, asset.ID)
	return nil
}

func (r *fakeAssetsRepo) Get(ctx context.Context, id string) (*models.Asset, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.assets[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAssetsRepo) ListActive(ctx context.Context, workspaceID string) ([]*models.Asset, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Asset
	for _, id := range r.s.assetOrder {
		a := r.s.assets[id]
		if a != nil && a.WorkspaceID == workspaceID && !a.Deleted {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeAssetsRepo) MarkDeleted(ctx context.Context, id, taggedTitle string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.assets[id]
	if !ok || a.Deleted {
		return common.ErrorNotFound
	}
	a.Deleted = true
	a.Title = taggedTitle
	return nil
}

func (r *fakeAssetsRepo) HardDelete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.assets, id)
	return nil
}

type fakeInvitesRepo struct{ s *memStore }

func (r *fakeInvitesRepo) Create(ctx context.Context, invite *models.Invite) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.invites[invite.Code]; ok {
		return common.ErrorAlreadyExists
	}
	r.s.invites[invite.Code] = invite
	return nil
}

func (r *fakeInvitesRepo) Consume(ctx context.Context, code string) (*models.Invite, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invites[code]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(r.s.invites, code)
	return inv, nil
}

func (r *fakeInvitesRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for code, inv := range r.s.invites {
		if inv.ExpiresAt.Before(now) {
			delete(r.s.invites, code)
			n++
		}
	}
	return n, nil
}

// fakeRepoManager vends the fake repositories regardless of the DBTX
// handle it is given.
type fakeRepoManager struct{ s *memStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository      { return &fakeUsersRepo{m.s} }
func (m *fakeRepoManager) Workspaces(db dbx.DBTX) workspacesrepo.Repository {
	return &fakeWorkspacesRepo{m.s}
}
func (m *fakeRepoManager) Members(db dbx.DBTX) membersrepo.Repository { return &fakeMembersRepo{m.s} }
func (m *fakeRepoManager) Assets(db dbx.DBTX) assetsrepo.Repository   { return &fakeAssetsRepo{m.s} }
func (m *fakeRepoManager) Invites(db dbx.DBTX) invitesrepo.Repository { return &fakeInvitesRepo{m.s} }

// fakeBlobStore records puts and deletes.
type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	delErr  error
	deleted []string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}}
}

func (f *fakeBlobStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return "", f.putErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", err
	}
	f.objects[key] = buf.Bytes()
	return "http://blobs/" + key, nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delErr != nil {
		return f.delErr
	}
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeBlobStore) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

// fakeEnqueuer records purge tasks instead of running them.
type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []purge.Task
}

func (f *fakeEnqueuer) Enqueue(task purge.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
}

func (f *fakeEnqueuer) all() []purge.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]purge.Task(nil), f.tasks...)
}
