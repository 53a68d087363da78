// Package members provides a PostgreSQL-backed repository for workspace
// member sets. Cap enforcement happens in the service layer under a
// workspace row lock; this package only applies the mutations.
package members

import (
	"context"
	"fmt"

	"framevault/internal/common"
	"framevault/internal/dbx"
	"framevault/internal/server/models"
	"framevault/internal/server/plan"
)

// PostgresRepository implements member-set storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Add inserts a membership row. Adding an existing member maps to
// ErrorAlreadyExists.
func (r *PostgresRepository) Add(ctx context.Context, workspaceID, userID string) error {
	query := `
		INSERT INTO workspace_members (workspace_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (workspace_id, user_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, workspaceID, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorAlreadyExists
	}
	return nil
}

// Remove detaches userID from the workspace. Idempotent: removing an
// absent member is a no-op.
func (r *PostgresRepository) Remove(ctx context.Context, workspaceID, userID string) error {
	query := `
		DELETE FROM workspace_members
		WHERE workspace_id = $1 AND user_id = $2
	`
	if _, err := r.db.ExecContext(ctx, query, workspaceID, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// RemoveAll detaches every member (the owner's row included) from the
// workspace, as part of teardown.
func (r *PostgresRepository) RemoveAll(ctx context.Context, workspaceID string) error {
	query := `DELETE FROM workspace_members WHERE workspace_id = $1`

	if _, err := r.db.ExecContext(ctx, query, workspaceID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Count returns the current member-set size.
func (r *PostgresRepository) Count(ctx context.Context, workspaceID string) (int, error) {
	query := `SELECT count(*) FROM workspace_members WHERE workspace_id = $1`

	var n int
	if err := r.db.QueryRowContext(ctx, query, workspaceID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// IsMember reports whether userID is in the workspace's member set.
func (r *PostgresRepository) IsMember(ctx context.Context, workspaceID, userID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM workspace_members
			WHERE workspace_id = $1 AND user_id = $2
		)
	`
	var ok bool
	if err := r.db.QueryRowContext(ctx, query, workspaceID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

// List returns the member users of a workspace, joined with their account
// details for display.
func (r *PostgresRepository) List(ctx context.Context, workspaceID string) ([]*models.User, error) {
	query := `
		SELECT u.id, u.name, u.email, u.plan
		FROM workspace_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.workspace_id = $1
		ORDER BY m.added_at
	`
	rows, err := r.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		u := &models.User{}
		var tier string
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &tier); err != nil {
			return nil, err
		}
		if u.Plan, err = plan.ParseTier(tier); err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
