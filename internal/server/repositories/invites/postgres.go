// Package invites provides a PostgreSQL-backed repository for single-use
// invite codes.
package invites

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"framevault/internal/common"
	"framevault/internal/dbx"
	"framevault/internal/server/models"
)

// PostgresRepository implements invite-code storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists a freshly issued code. A colliding code maps to
// ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, invite *models.Invite) error {
	query := `
		INSERT INTO invite_codes (code, token, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (code) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, invite.Code, invite.Token, invite.ExpiresAt)
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

// Consume deletes the code row and returns it. Delete-and-return is the
// single-use guarantee: of two concurrent redemptions only one removes
// the row; the other sees ErrorNotFound. Run inside a transaction so a
// failed redemption (expired token, email mismatch, full workspace)
// rolls the consume back.
func (r *PostgresRepository) Consume(ctx context.Context, code string) (*models.Invite, error) {
	query := `
		DELETE FROM invite_codes
		WHERE code = $1
		RETURNING code, token, expires_at
	`
	invite := &models.Invite{}
	err := r.db.QueryRowContext(ctx, query, code).Scan(&invite.Code, &invite.Token, &invite.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return invite, nil
}

// DeleteExpired removes every code whose expires_at has passed and
// returns how many rows went away.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM invite_codes WHERE expires_at < $1`

	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
