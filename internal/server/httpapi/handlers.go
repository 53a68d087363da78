package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"framevault/internal/common"
	"framevault/internal/server/models"
)

// maxUploadMemory bounds how much of a multipart upload is buffered in
// memory; the rest spills to temp files.
const maxUploadMemory = 32 << 20

type errorResponse struct {
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Message: msg})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrorInvalid):
		s.writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrorUnauthorized):
		s.writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, common.ErrorQuotaExceeded):
		s.writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		s.writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, common.ErrorAlreadyExists):
		s.writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, common.ErrorExpired):
		s.writeError(w, r, http.StatusGone, err.Error())
	case errors.Is(err, common.ErrorEmailMismatch):
		s.writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, common.ErrorInvalidToken):
		s.writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, common.ErrorExternalStore):
		s.writeError(w, r, http.StatusBadGateway, "storage backend unavailable")
	default:
		s.logger.Error(r.Context(), "internal error", "error", err)
		s.writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return common.ErrorInvalid
	}
	return nil
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Plan  string `json:"plan"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email, Plan: u.Plan.String()}
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	user, token, err := s.users.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, struct {
		Token string       `json:"token"`
		User  userResponse `json:"user"`
	}{Token: token, User: toUserResponse(user)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	user, token, err := s.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, struct {
		Token string       `json:"token"`
		User  userResponse `json:"user"`
	}{Token: token, User: toUserResponse(user)})
}

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decode(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	ws, err := s.workspaces.Create(r.Context(), callerID(r), req.Name)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, ws)
}

func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	list, err := s.workspaces.List(r.Context(), callerID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspaces.Get(r.Context(), r.PathValue("id"), callerID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ws)
}

func (s *Server) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	if err := s.assets.DeleteWorkspace(r.Context(), r.PathValue("id"), callerID(r)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
	}{Message: "workspace deleted"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("video")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "no video file uploaded")
		return
	}
	defer file.Close()

	asset, err := s.assets.Upload(r.Context(), r.PathValue("id"), callerID(r),
		header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, asset)
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	list, err := s.assets.List(r.Context(), r.PathValue("id"), callerID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := s.assets.Get(r.Context(), r.PathValue("id"), callerID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, asset)
}

func (s *Server) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	if err := s.assets.Delete(r.Context(), r.PathValue("id"), callerID(r)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
	}{Message: "asset deleted"})
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	users, err := s.workspaces.Members(r.Context(), r.PathValue("id"), callerID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toUserResponse(u))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := decode(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if err := s.memberships.AddMember(r.Context(), r.PathValue("id"), callerID(r), req.UserID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
	}{Message: "member added"})
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	if err := s.memberships.RemoveMember(r.Context(), r.PathValue("id"), callerID(r), r.PathValue("userID")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
	}{Message: "member removed"})
}

func (s *Server) handleIssueInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decode(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	code, err := s.invites.Issue(r.Context(), r.PathValue("id"), callerID(r), req.Email)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, struct {
		Code string `json:"code"`
	}{Code: code})
}

func (s *Server) handleRedeemInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decode(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	// The embedded invitee email is checked against the redeemer's stored
	// account email, not a client-supplied value.
	user, err := s.users.Get(r.Context(), callerID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	workspaceID, err := s.invites.Redeem(r.Context(), req.Code, user.ID, user.Email)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		WorkspaceID string `json:"workspace_id"`
	}{WorkspaceID: workspaceID})
}
