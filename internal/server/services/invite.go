package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"framevault/internal/common"
	"framevault/internal/dbx"
	"framevault/internal/logging"
	"framevault/internal/server/auth"
	"framevault/internal/server/config"
	"framevault/internal/server/models"
	"framevault/internal/server/quota"
	"framevault/internal/server/repositories/repomanager"
)

// InviteService issues and redeems single-use, email-bound invite codes.
// The shareable code is a one-way transform of a signed token; the token
// embeds the workspace and invitee email, so the stored row carries no
// authority of its own.
type InviteService struct {
	db         *sql.DB
	repos      repomanager.RepositoryManager
	membership *MembershipService
	jwtSecret  []byte
	validity   time.Duration
	logger     logging.Logger
}

// NewInviteService constructs an InviteService. Redemption delegates the
// capacity-checked member add to the MembershipService.
func NewInviteService(db *sql.DB, m repomanager.RepositoryManager, ms *MembershipService, cfg *config.Config, l logging.Logger) *InviteService {
	return &InviteService{
		db:         db,
		repos:      m,
		membership: ms,
		jwtSecret:  []byte(cfg.SecretKey),
		validity:   cfg.InviteValidity,
		logger:     l.With("module", "invite"),
	}
}

// Issue creates an invite code for inviteeEmail to join the workspace.
// Owner-only. Capacity is pre-checked so a full workspace rejects
// issuance outright; redemption re-checks, since the set can fill in the
// meantime.
func (s *InviteService) Issue(ctx context.Context, workspaceID, callerID, inviteeEmail string) (string, error) {
	if inviteeEmail == "" || !strings.Contains(inviteeEmail, "@") {
		return "", fmt.Errorf("%w: a valid invitee email is required", common.ErrorInvalid)
	}

	ws, err := s.repos.Workspaces(s.db).Get(ctx, workspaceID)
	if err != nil {
		return "", err
	}
	if ws.OwnerID != callerID {
		return "", fmt.Errorf("%w: only the owner may issue invites", common.ErrorUnauthorized)
	}

	owner, err := s.repos.Users(s.db).GetByID(ctx, ws.OwnerID)
	if err != nil {
		return "", err
	}
	limits, err := owner.Plan.Limits()
	if err != nil {
		return "", err
	}
	count, err := s.repos.Members(s.db).Count(ctx, workspaceID)
	if err != nil {
		return "", err
	}
	if err := quota.AdmitMember(limits, count); err != nil {
		return "", err
	}

	token, err := auth.GenerateInviteToken(workspaceID, inviteeEmail, s.jwtSecret, s.validity)
	if err != nil {
		return "", fmt.Errorf("error signing invite token: %v", err)
	}
	code := auth.InviteCode(token)

	invite := &models.Invite{
		Code:      code,
		Token:     token,
		ExpiresAt: time.Now().Add(s.validity),
	}
	if err := s.repos.Invites(s.db).Create(ctx, invite); err != nil {
		return "", fmt.Errorf("error persisting invite: %v", err)
	}

	// The code is a redeemable credential; it never goes to the log.
	s.logger.Info(ctx, "invite issued", "workspace_id", workspaceID, "invitee", inviteeEmail)
	return code, nil
}

// Redeem consumes a code and adds the redeemer to the embedded workspace.
// The consume, the checks, and the member add share one transaction:
// of two concurrent redemptions only one deletes the row and proceeds,
// the loser sees ErrorNotFound; and any failed check rolls the consume
// back, so a mismatched redeemer does not burn the invitee's code.
func (s *InviteService) Redeem(ctx context.Context, code, userID, userEmail string) (string, error) {
	var workspaceID string

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		invite, err := s.repos.Invites(tx).Consume(ctx, code)
		if err != nil {
			return err
		}
		if time.Now().After(invite.ExpiresAt) {
			return fmt.Errorf("%w: invite code has expired", common.ErrorExpired)
		}

		claims, err := auth.ParseInviteToken(invite.Token, s.jwtSecret)
		if err != nil {
			return err
		}
		if claims.InviteeEmail != userEmail {
			return fmt.Errorf("%w: invite was issued for a different email", common.ErrorEmailMismatch)
		}

		workspaceID = claims.WorkspaceID
		return s.membership.enroll(ctx, tx, claims.WorkspaceID, userID)
	})
	if err != nil {
		return "", err
	}

	s.logger.Info(ctx, "invite redeemed", "workspace_id", workspaceID, "user_id", userID)
	return workspaceID, nil
}
