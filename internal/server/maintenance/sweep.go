// Package maintenance holds out-of-band cleanup jobs: the expired-invite
// sweep and the storage reconciliation pass that repairs the logged-only
// inconsistencies (counter clamps, orphaned blobs).
package maintenance

import (
	"context"
	"database/sql"
	"time"

	"framevault/internal/logging"
	"framevault/internal/server/repositories/repomanager"
)

// Sweeper runs periodic maintenance. It is invoked from a scheduler or an
// operator command, never from a request path.
type Sweeper struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	logger logging.Logger
}

// NewSweeper constructs a Sweeper.
func NewSweeper(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger) *Sweeper {
	return &Sweeper{db: db, repos: m, logger: l.With("module", "maintenance")}
}

// SweepExpiredInvites deletes invite codes whose expires_at has passed and
// returns how many were removed.
func (s *Sweeper) SweepExpiredInvites(ctx context.Context) (int64, error) {
	n, err := s.repos.Invites(s.db).DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info(ctx, "expired invites swept", "count", n)
	}
	return n, nil
}

// Reconcile recomputes each workspace's storage counter from its active
// assets and removes blobs with no matching record.
//
// TODO: implement once the object store grows a listing credential for the
// sweep role; today inconsistencies are only logged by the request paths.
func (s *Sweeper) Reconcile(ctx context.Context) error {
	s.logger.Info(ctx, "reconciliation sweep not implemented, skipping")
	return nil
}
