package members

import (
	"context"

	"framevault/internal/server/models"
)

type Repository interface {
	Add(ctx context.Context, workspaceID, userID string) error
	Remove(ctx context.Context, workspaceID, userID string) error
	RemoveAll(ctx context.Context, workspaceID string) error
	Count(ctx context.Context, workspaceID string) (int, error)
	IsMember(ctx context.Context, workspaceID, userID string) (bool, error)
	List(ctx context.Context, workspaceID string) ([]*models.User, error)
}
