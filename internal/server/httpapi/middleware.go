package httpapi

import (
	"context"
	"net/http"
	"strings"

	"framevault/internal/server/auth"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// authenticated verifies the bearer token and stores the caller's user id
// in the request context.
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.writeError(w, r, http.StatusUnauthorized, "missing token")
			return
		}

		userID, err := auth.UserIDFromToken(token, s.jwtSecret)
		if err != nil {
			s.writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next(w, r.WithContext(ctx))
	}
}

// callerID returns the authenticated user id stored by the middleware.
func callerID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}
