package assets

import (
	"context"

	"framevault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, asset *models.Asset) error
	Get(ctx context.Context, id string) (*models.Asset, error)
	ListActive(ctx context.Context, workspaceID string) ([]*models.Asset, error)
	MarkDeleted(ctx context.Context, id, taggedTitle string) error
	HardDelete(ctx context.Context, id string) error
}
