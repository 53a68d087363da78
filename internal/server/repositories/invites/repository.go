package invites

import (
	"context"
	"time"

	"framevault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, invite *models.Invite) error
	Consume(ctx context.Context, code string) (*models.Invite, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
