package services

import (
	"context"
	"database/sql"
	"fmt"

	"framevault/internal/common"
	"framevault/internal/dbx"
	"framevault/internal/logging"
	"framevault/internal/server/quota"
	"framevault/internal/server/repositories/repomanager"
)

// MembershipService applies member-set mutations under the plan's member
// cap. The cap check and the insert run inside one transaction holding the
// workspace row lock, so two concurrent adds against a workspace at
// cap - 1 resolve to exactly one success.
type MembershipService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	logger logging.Logger
}

// NewMembershipService constructs a MembershipService.
func NewMembershipService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger) *MembershipService {
	return &MembershipService{db: db, repos: m, logger: l.With("module", "membership")}
}

// AddMember adds userID to the workspace's member set. Owner-only; the cap
// comes from the owner's plan.
func (s *MembershipService) AddMember(ctx context.Context, workspaceID, callerID, userID string) error {
	ws, err := s.repos.Workspaces(s.db).Get(ctx, workspaceID)
	if err != nil {
		return err
	}
	if ws.OwnerID != callerID {
		return fmt.Errorf("%w: only the owner may add members", common.ErrorUnauthorized)
	}

	if _, err := s.repos.Users(s.db).GetByID(ctx, userID); err != nil {
		return err
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.enroll(ctx, tx, workspaceID, userID)
	})
}

// RemoveMember detaches userID from the workspace. Owner-only; removing
// the owner itself is rejected; removing an absent member is a no-op.
func (s *MembershipService) RemoveMember(ctx context.Context, workspaceID, callerID, userID string) error {
	ws, err := s.repos.Workspaces(s.db).Get(ctx, workspaceID)
	if err != nil {
		return err
	}
	if ws.OwnerID != callerID {
		return fmt.Errorf("%w: only the owner may remove members", common.ErrorUnauthorized)
	}
	if userID == ws.OwnerID {
		return fmt.Errorf("%w: the owner cannot be removed from the workspace", common.ErrorInvalid)
	}

	return s.repos.Members(s.db).Remove(ctx, workspaceID, userID)
}

// enroll performs the capacity-checked add inside the caller's transaction.
// It locks the workspace row first, so the count it reads cannot be
// overtaken by a concurrent enroll on the same workspace. Shared with
// invite redemption, which must add the member in the same transaction
// that consumes the code.
func (s *MembershipService) enroll(ctx context.Context, tx dbx.DBTX, workspaceID, userID string) error {
	wsRepo := s.repos.Workspaces(tx)
	if err := wsRepo.Lock(ctx, workspaceID); err != nil {
		return err
	}
	ws, err := wsRepo.Get(ctx, workspaceID)
	if err != nil {
		return err
	}

	owner, err := s.repos.Users(tx).GetByID(ctx, ws.OwnerID)
	if err != nil {
		return err
	}
	limits, err := owner.Plan.Limits()
	if err != nil {
		return err
	}

	count, err := s.repos.Members(tx).Count(ctx, workspaceID)
	if err != nil {
		return err
	}
	if err := quota.AdmitMember(limits, count); err != nil {
		return err
	}

	return s.repos.Members(tx).Add(ctx, workspaceID, userID)
}
