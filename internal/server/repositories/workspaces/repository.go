package workspaces

import (
	"context"

	"framevault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, ws *models.Workspace) error
	Get(ctx context.Context, id string) (*models.Workspace, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Workspace, error)
	CountByOwner(ctx context.Context, ownerID string) (int, error)
	Lock(ctx context.Context, id string) error
	AddStorageUsedWithin(ctx context.Context, id string, delta, limit int64) error
	ReleaseStorageUsed(ctx context.Context, id string, delta int64) (bool, error)
	Delete(ctx context.Context, id string) error
}
