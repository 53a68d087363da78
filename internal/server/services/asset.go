package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"framevault/internal/common"
	"framevault/internal/dbx"
	"framevault/internal/logging"
	"framevault/internal/server/blob"
	"framevault/internal/server/models"
	"framevault/internal/server/purge"
	"framevault/internal/server/quota"
	"framevault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// deletedTitleTag prefixes the title of a soft-deleted asset so stale
// cached references are visibly dead.
const deletedTitleTag = "[deleted] "

// Enqueuer schedules deferred purge work.
type Enqueuer interface {
	Enqueue(task purge.Task)
}

// AssetService orchestrates the asset lifecycle: upload admission,
// two-phase deletion and workspace teardown. Byte transfer goes through
// the blob store; accounting goes through the workspace counter.
type AssetService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	blobs  blob.Store
	purger Enqueuer
	logger logging.Logger
}

// NewAssetService constructs an AssetService.
func NewAssetService(db *sql.DB, m repomanager.RepositoryManager, blobs blob.Store, purger Enqueuer, l logging.Logger) *AssetService {
	return &AssetService{
		db:     db,
		repos:  m,
		blobs:  blobs,
		purger: purger,
		logger: l.With("module", "assets"),
	}
}

// newStorageKey builds the object-store key for an upload.
func newStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("videos/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

// Upload admits size bytes into the workspace, transfers them to the
// object store, and commits the asset record together with the counter
// increment. Quotas follow the workspace owner's plan even when a member
// uploads.
//
// Ordering: the blob transfer happens before any record write, so a failed
// transfer leaves no dangling accounting. If the record commit fails after
// a successful transfer the blob is orphaned; that is logged for the
// reconciliation sweep rather than rolled back, because the object store
// offers no transactional coupling with the record store.
func (s *AssetService) Upload(ctx context.Context, workspaceID, uploaderID, originalName, contentType string, body io.Reader, size int64) (*models.Asset, error) {
	ws, err := s.repos.Workspaces(s.db).Get(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrMember(ctx, s.db, s.repos, ws, uploaderID); err != nil {
		return nil, err
	}

	owner, err := s.repos.Users(s.db).GetByID(ctx, ws.OwnerID)
	if err != nil {
		return nil, err
	}
	limits, err := owner.Plan.Limits()
	if err != nil {
		return nil, err
	}
	if err := quota.AdmitUpload(limits, ws.StorageUsed, size); err != nil {
		return nil, err
	}

	key := newStorageKey()
	url, err := s.blobs.Put(ctx, key, body, size, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorExternalStore, err)
	}

	asset := &models.Asset{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		UploaderID:  uploaderID,
		Title:       originalName,
		StorageKey:  key,
		URL:         url,
		SizeBytes:   size,
	}

	// The guarded counter increment and the record insert are one
	// transaction; the guard re-runs the admission against the live
	// counter, so concurrent uploads cannot jointly overshoot the limit.
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Workspaces(tx).AddStorageUsedWithin(ctx, workspaceID, size, limits.StoragePerWorkspace); err != nil {
			return err
		}
		return s.repos.Assets(tx).Create(ctx, asset)
	})
	if err != nil {
		s.logger.Error(ctx, "record commit failed after transfer, blob orphaned",
			"storage_key", key, "workspace_id", workspaceID, "error", err)
		return nil, err
	}

	s.logger.Info(ctx, "asset uploaded", "asset_id", asset.ID, "workspace_id", workspaceID, "size", size)
	return asset, nil
}

// Delete runs phase 1 of deletion synchronously: soft-delete the record,
// tag the title, release the bytes from the counter, and return. The blob
// itself goes away later; phase 2 is queued and its failures never reach
// the caller, never re-inflate the counter and never re-expose the asset.
func (s *AssetService) Delete(ctx context.Context, assetID, callerID string) error {
	asset, err := s.repos.Assets(s.db).Get(ctx, assetID)
	if err != nil {
		return err
	}
	if asset.Deleted {
		return common.ErrorNotFound
	}

	ws, err := s.repos.Workspaces(s.db).Get(ctx, asset.WorkspaceID)
	if err != nil {
		return err
	}
	if err := requireOwnerOrMember(ctx, s.db, s.repos, ws, callerID); err != nil {
		return err
	}

	var clamped bool
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		// MarkDeleted only succeeds for a still-active asset, so a
		// concurrent delete of the same asset releases the bytes once.
		if err := s.repos.Assets(tx).MarkDeleted(ctx, asset.ID, deletedTitleTag+asset.Title); err != nil {
			return err
		}
		clamped, err = s.repos.Workspaces(tx).ReleaseStorageUsed(ctx, ws.ID, asset.SizeBytes)
		return err
	})
	if err != nil {
		return err
	}
	if clamped {
		s.logger.Error(ctx, "storage counter clamped to zero on release",
			"workspace_id", ws.ID, "asset_id", asset.ID, "size", asset.SizeBytes)
	}

	s.purger.Enqueue(purge.Task{AssetID: asset.ID, StorageKey: asset.StorageKey})

	s.logger.Info(ctx, "asset soft-deleted", "asset_id", asset.ID, "workspace_id", ws.ID)
	return nil
}

// DeleteWorkspace tears a workspace down. Owner-only. Every active asset
// goes through phase 1 and the member set is detached synchronously; the
// blob deletes, record purges and the workspace-record purge are deferred.
func (s *AssetService) DeleteWorkspace(ctx context.Context, workspaceID, callerID string) error {
	ws, err := s.repos.Workspaces(s.db).Get(ctx, workspaceID)
	if err != nil {
		return err
	}
	if ws.OwnerID != callerID {
		return fmt.Errorf("%w: only the owner may delete the workspace", common.ErrorUnauthorized)
	}

	var tasks []purge.Task
	var clamps int
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		tasks = tasks[:0]
		clamps = 0

		wsRepo := s.repos.Workspaces(tx)
		if err := wsRepo.Lock(ctx, workspaceID); err != nil {
			return err
		}

		active, err := s.repos.Assets(tx).ListActive(ctx, workspaceID)
		if err != nil {
			return err
		}
		for _, a := range active {
			if err := s.repos.Assets(tx).MarkDeleted(ctx, a.ID, deletedTitleTag+a.Title); err != nil {
				return err
			}
			clamped, err := wsRepo.ReleaseStorageUsed(ctx, workspaceID, a.SizeBytes)
			if err != nil {
				return err
			}
			if clamped {
				clamps++
			}
			tasks = append(tasks, purge.Task{AssetID: a.ID, StorageKey: a.StorageKey})
		}

		return s.repos.Members(tx).RemoveAll(ctx, workspaceID)
	})
	if err != nil {
		return err
	}
	if clamps > 0 {
		s.logger.Error(ctx, "storage counter clamped during teardown",
			"workspace_id", workspaceID, "clamps", clamps)
	}

	for _, task := range tasks {
		s.purger.Enqueue(task)
	}
	s.purger.Enqueue(purge.Task{WorkspaceID: workspaceID})

	s.logger.Info(ctx, "workspace torn down", "workspace_id", workspaceID, "assets", len(tasks))
	return nil
}

// List returns the workspace's active assets; soft-deleted assets are
// already detached from the listing.
func (s *AssetService) List(ctx context.Context, workspaceID, callerID string) ([]*models.Asset, error) {
	ws, err := s.repos.Workspaces(s.db).Get(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrMember(ctx, s.db, s.repos, ws, callerID); err != nil {
		return nil, err
	}
	return s.repos.Assets(s.db).ListActive(ctx, workspaceID)
}

// Get returns a single active asset, with the same standing check as List.
func (s *AssetService) Get(ctx context.Context, assetID, callerID string) (*models.Asset, error) {
	asset, err := s.repos.Assets(s.db).Get(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset.Deleted {
		return nil, common.ErrorNotFound
	}

	ws, err := s.repos.Workspaces(s.db).Get(ctx, asset.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrMember(ctx, s.db, s.repos, ws, callerID); err != nil {
		return nil, err
	}
	return asset, nil
}
