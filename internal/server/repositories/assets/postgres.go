// Package assets provides a PostgreSQL-backed repository for asset records
// and their soft/hard delete transitions.
package assets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"framevault/internal/common"
	"framevault/internal/dbx"
	"framevault/internal/server/models"
)

// PostgresRepository implements asset storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts an active asset record.
func (r *PostgresRepository) Create(ctx context.Context, asset *models.Asset) error {
	query := `
		INSERT INTO assets (id, workspace_id, uploader_id, title, storage_key, url, size_bytes, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false)
	`
	_, err := r.db.ExecContext(ctx, query,
		asset.ID, asset.WorkspaceID, asset.UploaderID, asset.Title, asset.StorageKey, asset.URL, asset.SizeBytes)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get returns the asset with the given id, soft-deleted or not, or
// ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Asset, error) {
	query := `
		SELECT id, workspace_id, uploader_id, title, storage_key, url, size_bytes, deleted, created_at
		FROM assets
		WHERE id = $1
	`
	a := &models.Asset{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&a.ID, &a.WorkspaceID, &a.UploaderID, &a.Title, &a.StorageKey, &a.URL, &a.SizeBytes, &a.Deleted, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// ListActive returns the workspace's assets that are not soft-deleted.
func (r *PostgresRepository) ListActive(ctx context.Context, workspaceID string) ([]*models.Asset, error) {
	query := `
		SELECT id, workspace_id, uploader_id, title, storage_key, url, size_bytes, deleted, created_at
		FROM assets
		WHERE workspace_id = $1 AND NOT deleted
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Asset
	for rows.Next() {
		a := &models.Asset{}
		if err := rows.Scan(&a.ID, &a.WorkspaceID, &a.UploaderID, &a.Title, &a.StorageKey, &a.URL, &a.SizeBytes, &a.Deleted, &a.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkDeleted flips the soft-delete flag and rewrites the title with the
// deletion tag, but only if the asset is still active — so two concurrent
// deletes cannot both win and release the counter twice. Losing the
// condition maps to ErrorNotFound.
func (r *PostgresRepository) MarkDeleted(ctx context.Context, id, taggedTitle string) error {
	query := `
		UPDATE assets SET deleted = true, title = $2
		WHERE id = $1 AND NOT deleted
	`
	res, err := r.db.ExecContext(ctx, query, id, taggedTitle)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// HardDelete purges the asset record. Idempotent: purging an
// already-purged asset is a no-op.
func (r *PostgresRepository) HardDelete(ctx context.Context, id string) error {
	query := `DELETE FROM assets WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
