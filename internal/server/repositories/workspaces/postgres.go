// Package workspaces provides a PostgreSQL-backed repository for workspace
// records, including the atomic storage-counter primitives the accounting
// invariant depends on.
package workspaces

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"framevault/internal/common"
	"framevault/internal/dbx"
	"framevault/internal/server/models"
)

// PostgresRepository implements workspace storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a workspace with a zeroed storage counter.
func (r *PostgresRepository) Create(ctx context.Context, ws *models.Workspace) error {
	query := `
		INSERT INTO workspaces (id, name, owner_id, storage_used)
		VALUES ($1, $2, $3, 0)
	`
	if _, err := r.db.ExecContext(ctx, query, ws.ID, ws.Name, ws.OwnerID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get returns the workspace with the given id or ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Workspace, error) {
	query := `
		SELECT id, name, owner_id, storage_used, created_at FROM workspaces
		WHERE id = $1
	`
	ws := &models.Workspace{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&ws.ID, &ws.Name, &ws.OwnerID, &ws.StorageUsed, &ws.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ws, nil
}

// ListByOwner returns all workspaces created by ownerID.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Workspace, error) {
	query := `
		SELECT id, name, owner_id, storage_used, created_at FROM workspaces
		WHERE owner_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Workspace
	for rows.Next() {
		ws := &models.Workspace{}
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.OwnerID, &ws.StorageUsed, &ws.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CountByOwner returns how many workspaces ownerID has created.
func (r *PostgresRepository) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	query := `SELECT count(*) FROM workspaces WHERE owner_id = $1`

	var n int
	if err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// Lock takes a row lock on the workspace, serializing concurrent member
// mutations per workspace. Only meaningful inside a transaction.
func (r *PostgresRepository) Lock(ctx context.Context, id string) error {
	query := `SELECT id FROM workspaces WHERE id = $1 FOR UPDATE`

	var got string
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&got); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// AddStorageUsedWithin increments the storage counter by delta only if the
// result stays within limit; the condition and the increment are one
// statement, so concurrent uploads cannot jointly overshoot. A failed
// condition maps to ErrorQuotaExceeded.
func (r *PostgresRepository) AddStorageUsedWithin(ctx context.Context, id string, delta, limit int64) error {
	query := `
		UPDATE workspaces SET storage_used = storage_used + $2
		WHERE id = $1 AND storage_used + $2 <= $3
	`
	res, err := r.db.ExecContext(ctx, query, id, delta, limit)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: storage limit reached", common.ErrorQuotaExceeded)
	}
	return nil
}

// ReleaseStorageUsed decrements the storage counter by delta. If the
// decrement would drive the counter negative it clamps to zero instead;
// the returned bool reports that inconsistency for logging.
func (r *PostgresRepository) ReleaseStorageUsed(ctx context.Context, id string, delta int64) (bool, error) {
	query := `
		UPDATE workspaces SET storage_used = storage_used - $2
		WHERE id = $1 AND storage_used >= $2
	`
	res, err := r.db.ExecContext(ctx, query, id, delta)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	if n == 1 {
		return false, nil
	}

	clamp := `UPDATE workspaces SET storage_used = 0 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, clamp, id); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

// Delete purges the workspace record. Idempotent: deleting an absent
// workspace is a no-op.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM workspaces WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
