package purge

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"framevault/internal/common"
	"framevault/internal/dbx"
	"framevault/internal/logging"
	"framevault/internal/server/models"
	assetsrepo "framevault/internal/server/repositories/assets"
	invitesrepo "framevault/internal/server/repositories/invites"
	membersrepo "framevault/internal/server/repositories/members"
	usersrepo "framevault/internal/server/repositories/users"
	workspacesrepo "framevault/internal/server/repositories/workspaces"
)

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.DiscardHandler))
}

// recorder tracks which records and blobs the workers removed.
type recorder struct {
	mu                sync.Mutex
	assetDeletes      []string
	workspaceDeletes  []string
	blobDeletes       []string
	blobErr           error
	assetDeleteErr    error
	blobDeleteCalls   int
	failBlobFirstOnly bool
}

func (r *recorder) deleteBlob(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blobDeleteCalls++
	if r.blobErr != nil {
		if !r.failBlobFirstOnly || r.blobDeleteCalls == 1 {
			return r.blobErr
		}
	}
	r.blobDeletes = append(r.blobDeletes, key)
	return nil
}

type fakeBlobStore struct{ r *recorder }

func (f *fakeBlobStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeBlobStore) Delete(ctx context.Context, key string) error {
	return f.r.deleteBlob(key)
}

type fakeAssetsRepo struct{ r *recorder }

func (f *fakeAssetsRepo) Create(context.Context, *models.Asset) error          { return nil }
func (f *fakeAssetsRepo) Get(context.Context, string) (*models.Asset, error)   { return nil, common.ErrorNotFound }
func (f *fakeAssetsRepo) ListActive(context.Context, string) ([]*models.Asset, error) {
	return nil, nil
}
func (f *fakeAssetsRepo) MarkDeleted(context.Context, string, string) error { return nil }
func (f *fakeAssetsRepo) HardDelete(ctx context.Context, id string) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if f.r.assetDeleteErr != nil {
		return f.r.assetDeleteErr
	}
	f.r.assetDeletes = append(f.r.assetDeletes, id)
	return nil
}

type fakeWorkspacesRepo struct{ r *recorder }

func (f *fakeWorkspacesRepo) Create(context.Context, *models.Workspace) error { return nil }
func (f *fakeWorkspacesRepo) Get(context.Context, string) (*models.Workspace, error) {
	return nil, common.ErrorNotFound
}
func (f *fakeWorkspacesRepo) ListByOwner(context.Context, string) ([]*models.Workspace, error) {
	return nil, nil
}
func (f *fakeWorkspacesRepo) CountByOwner(context.Context, string) (int, error) { return 0, nil }
func (f *fakeWorkspacesRepo) Lock(context.Context, string) error                { return nil }
func (f *fakeWorkspacesRepo) AddStorageUsedWithin(context.Context, string, int64, int64) error {
	return nil
}
func (f *fakeWorkspacesRepo) ReleaseStorageUsed(context.Context, string, int64) (bool, error) {
	return false, nil
}
func (f *fakeWorkspacesRepo) Delete(ctx context.Context, id string) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	f.r.workspaceDeletes = append(f.r.workspaceDeletes, id)
	return nil
}

type fakeRepoManager struct{ r *recorder }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository          { return nil }
func (m *fakeRepoManager) Workspaces(db dbx.DBTX) workspacesrepo.Repository {
	return &fakeWorkspacesRepo{m.r}
}
func (m *fakeRepoManager) Members(dbx.DBTX) membersrepo.Repository    { return nil }
func (m *fakeRepoManager) Assets(db dbx.DBTX) assetsrepo.Repository   { return &fakeAssetsRepo{m.r} }
func (m *fakeRepoManager) Invites(dbx.DBTX) invitesrepo.Repository    { return nil }

func newPurger(r *recorder, opts Options) *Purger {
	p := New(nil, &fakeRepoManager{r}, &fakeBlobStore{r}, discardLogger(), opts)
	p.backoff = time.Millisecond
	return p
}

func TestPurge_AssetTask(t *testing.T) {
	r := &recorder{}
	p := newPurger(r, Options{Workers: 1})
	p.Start()

	p.Enqueue(Task{AssetID: "a-1", StorageKey: "videos/k"})
	p.Close()

	if len(r.blobDeletes) != 1 || r.blobDeletes[0] != "videos/k" {
		t.Fatalf("blob deletes: %+v", r.blobDeletes)
	}
	if len(r.assetDeletes) != 1 || r.assetDeletes[0] != "a-1" {
		t.Fatalf("asset deletes: %+v", r.assetDeletes)
	}
}

func TestPurge_WorkspaceTask(t *testing.T) {
	r := &recorder{}
	p := newPurger(r, Options{Workers: 1})
	p.Start()

	p.Enqueue(Task{WorkspaceID: "ws-1"})
	p.Close()

	if len(r.workspaceDeletes) != 1 || r.workspaceDeletes[0] != "ws-1" {
		t.Fatalf("workspace deletes: %+v", r.workspaceDeletes)
	}
	if len(r.blobDeletes) != 0 || len(r.assetDeletes) != 0 {
		t.Fatalf("workspace task must not touch blobs or assets")
	}
}

func TestPurge_BlobRetry(t *testing.T) {
	// First delete attempt fails, the retry succeeds.
	r := &recorder{blobErr: errors.New("transient"), failBlobFirstOnly: true}
	p := newPurger(r, Options{Workers: 1, BlobAttempts: 2})
	p.Start()

	p.Enqueue(Task{AssetID: "a-1", StorageKey: "videos/k"})
	p.Close()

	if len(r.blobDeletes) != 1 {
		t.Fatalf("retry did not recover the blob delete: %+v", r.blobDeletes)
	}
	if r.blobDeleteCalls < 2 {
		t.Fatalf("expected a retried call, got %d", r.blobDeleteCalls)
	}
	if len(r.assetDeletes) != 1 {
		t.Fatalf("record purge missing: %+v", r.assetDeletes)
	}
}

func TestPurge_BlobFailureStillPurgesRecord(t *testing.T) {
	// Blob delete fails permanently; the record purge proceeds anyway and
	// the orphaned blob is left for the reconciliation sweep.
	r := &recorder{blobErr: errors.New("bucket gone")}
	p := newPurger(r, Options{Workers: 1, BlobAttempts: 1})
	p.Start()

	p.Enqueue(Task{AssetID: "a-1", StorageKey: "videos/k"})
	p.Close()

	if len(r.blobDeletes) != 0 {
		t.Fatalf("blob delete should have failed: %+v", r.blobDeletes)
	}
	if len(r.assetDeletes) != 1 || r.assetDeletes[0] != "a-1" {
		t.Fatalf("record purge must proceed past blob failure: %+v", r.assetDeletes)
	}
}

func TestPurge_DrainsQueueOnClose(t *testing.T) {
	r := &recorder{}
	p := newPurger(r, Options{Workers: 2, QueueDepth: 16})
	p.Start()

	for i := 0; i < 10; i++ {
		p.Enqueue(Task{AssetID: "a", StorageKey: "k"})
	}
	p.Close()

	if len(r.assetDeletes) != 10 {
		t.Fatalf("queued tasks dropped on close: %d of 10", len(r.assetDeletes))
	}
}
