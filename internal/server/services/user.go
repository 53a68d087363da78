// Package services contains the server-side business logic: accounts,
// workspaces, asset lifecycle, membership and invites. Services own the
// transactional boundaries; repositories own the SQL.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"framevault/internal/common"
	"framevault/internal/server/auth"
	"framevault/internal/server/config"
	"framevault/internal/server/models"
	"framevault/internal/server/plan"
	"framevault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserService handles signup, login and account lookup.
type UserService struct {
	db                  *sql.DB
	repos               repomanager.RepositoryManager
	jwtSecret           []byte
	accessTokenValidity time.Duration
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		db:                  db,
		repos:               m,
		jwtSecret:           []byte(cfg.SecretKey),
		accessTokenValidity: cfg.AccessTokenValidity,
	}
}

// Register creates an account on the free tier and returns it together
// with a fresh access token. A taken email is ErrorAlreadyExists.
func (s *UserService) Register(ctx context.Context, name, email, password string) (*models.User, string, error) {
	if name == "" || email == "" || password == "" {
		return nil, "", fmt.Errorf("%w: name, email and password are required", common.ErrorInvalid)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("error hashing password: %v", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Plan:         plan.Free,
	}

	if err := s.repos.Users(s.db).Create(ctx, user); err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, "", common.ErrorAlreadyExists
		}
		return nil, "", fmt.Errorf("error creating user: %v", err)
	}

	token, err := auth.GenerateAccessToken(user.ID, s.jwtSecret, s.accessTokenValidity)
	if err != nil {
		return nil, "", fmt.Errorf("error generating token: %v", err)
	}

	return user, token, nil
}

// Login verifies the credentials and returns the user with a fresh access
// token. An unknown email and a wrong password both map to
// ErrorUnauthorized so responses do not leak account existence.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.repos.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, "", common.ErrorUnauthorized
		}
		return nil, "", common.ErrorInternal
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, "", common.ErrorUnauthorized
	}

	token, err := auth.GenerateAccessToken(user.ID, s.jwtSecret, s.accessTokenValidity)
	if err != nil {
		return nil, "", fmt.Errorf("error generating token: %v", err)
	}

	return user, token, nil
}

// Get returns the account with the given id.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	return s.repos.Users(s.db).GetByID(ctx, id)
}
