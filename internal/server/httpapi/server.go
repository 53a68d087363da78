// Package httpapi is the thin JSON adapter in front of the services. It
// owns routing, authentication middleware and error-to-status mapping,
// and no business logic.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"framevault/internal/logging"
	"framevault/internal/server/services"
)

// Server serves the public JSON API.
type Server struct {
	address     string
	users       *services.UserService
	workspaces  *services.WorkspaceService
	assets      *services.AssetService
	memberships *services.MembershipService
	invites     *services.InviteService
	logger      logging.Logger
	jwtSecret   []byte
}

// NewServer wires the handlers to the services.
func NewServer(address string, l logging.Logger, us *services.UserService, ws *services.WorkspaceService,
	as *services.AssetService, ms *services.MembershipService, is *services.InviteService, secretKey string) *Server {
	return &Server{
		address:     address,
		users:       us,
		workspaces:  ws,
		assets:      as,
		memberships: ms,
		invites:     is,
		logger:      l.With("module", "httpapi"),
		jwtSecret:   []byte(secretKey),
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/signup", s.handleSignup)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	mux.HandleFunc("GET /api/workspaces", s.authenticated(s.handleListWorkspaces))
	mux.HandleFunc("POST /api/workspaces", s.authenticated(s.handleCreateWorkspace))
	mux.HandleFunc("GET /api/workspaces/{id}", s.authenticated(s.handleGetWorkspace))
	mux.HandleFunc("DELETE /api/workspaces/{id}", s.authenticated(s.handleDeleteWorkspace))

	mux.HandleFunc("GET /api/workspaces/{id}/assets", s.authenticated(s.handleListAssets))
	mux.HandleFunc("POST /api/workspaces/{id}/assets", s.authenticated(s.handleUpload))
	mux.HandleFunc("GET /api/assets/{id}", s.authenticated(s.handleGetAsset))
	mux.HandleFunc("DELETE /api/assets/{id}", s.authenticated(s.handleDeleteAsset))

	mux.HandleFunc("GET /api/workspaces/{id}/members", s.authenticated(s.handleListMembers))
	mux.HandleFunc("POST /api/workspaces/{id}/members", s.authenticated(s.handleAddMember))
	mux.HandleFunc("DELETE /api/workspaces/{id}/members/{userID}", s.authenticated(s.handleRemoveMember))

	mux.HandleFunc("POST /api/workspaces/{id}/invites", s.authenticated(s.handleIssueInvite))
	mux.HandleFunc("POST /api/invites/redeem", s.authenticated(s.handleRedeemInvite))

	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.address,
		Handler: s.routes(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
