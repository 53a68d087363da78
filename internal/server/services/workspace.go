package services

import (
	"context"
	"database/sql"
	"fmt"

	"framevault/internal/common"
	"framevault/internal/dbx"
	"framevault/internal/server/models"
	"framevault/internal/server/quota"
	"framevault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// WorkspaceService handles workspace creation and reads. Teardown lives on
// AssetService, which owns the asset lifecycle the cascade runs through.
type WorkspaceService struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
}

// NewWorkspaceService constructs a WorkspaceService.
func NewWorkspaceService(db *sql.DB, m repomanager.RepositoryManager) *WorkspaceService {
	return &WorkspaceService{db: db, repos: m}
}

// Create makes a new workspace owned by ownerID, bounded by the owner's
// workspace-count quota. The owner starts in the member set.
func (s *WorkspaceService) Create(ctx context.Context, ownerID, name string) (*models.Workspace, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: workspace name is required", common.ErrorInvalid)
	}

	owner, err := s.repos.Users(s.db).GetByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	limits, err := owner.Plan.Limits()
	if err != nil {
		return nil, err
	}

	count, err := s.repos.Workspaces(s.db).CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if err := quota.AdmitWorkspace(limits, count); err != nil {
		return nil, err
	}

	ws := &models.Workspace{
		ID:      uuid.NewString(),
		Name:    name,
		OwnerID: ownerID,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Workspaces(tx).Create(ctx, ws); err != nil {
			return err
		}
		return s.repos.Members(tx).Add(ctx, ws.ID, ownerID)
	})
	if err != nil {
		return nil, fmt.Errorf("error creating workspace: %v", err)
	}

	return ws, nil
}

// Get returns a workspace to its owner or a member; everyone else gets
// ErrorUnauthorized.
func (s *WorkspaceService) Get(ctx context.Context, id, callerID string) (*models.Workspace, error) {
	ws, err := s.repos.Workspaces(s.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeMember(ctx, ws, callerID); err != nil {
		return nil, err
	}
	return ws, nil
}

// List returns the workspaces the caller owns.
func (s *WorkspaceService) List(ctx context.Context, ownerID string) ([]*models.Workspace, error) {
	return s.repos.Workspaces(s.db).ListByOwner(ctx, ownerID)
}

// Members returns the member users of a workspace, to its owner or members.
func (s *WorkspaceService) Members(ctx context.Context, workspaceID, callerID string) ([]*models.User, error) {
	ws, err := s.repos.Workspaces(s.db).Get(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeMember(ctx, ws, callerID); err != nil {
		return nil, err
	}
	return s.repos.Members(s.db).List(ctx, workspaceID)
}

func (s *WorkspaceService) authorizeMember(ctx context.Context, ws *models.Workspace, userID string) error {
	return requireOwnerOrMember(ctx, s.db, s.repos, ws, userID)
}

// requireOwnerOrMember is the standing check shared by workspace reads and
// the asset lifecycle: the owner is always privileged, whether or not an
// explicit membership row exists.
func requireOwnerOrMember(ctx context.Context, db dbx.DBTX, repos repomanager.RepositoryManager, ws *models.Workspace, userID string) error {
	if ws.OwnerID == userID {
		return nil
	}
	ok, err := repos.Members(db).IsMember(ctx, ws.ID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: only workspace members or the owner may do this", common.ErrorUnauthorized)
	}
	return nil
}
