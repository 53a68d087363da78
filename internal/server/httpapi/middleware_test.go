package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"framevault/internal/server/auth"
)

func TestAuthenticated_MissingToken(t *testing.T) {
	s := testServer()
	handler := s.authenticated(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run without a token")
	})

	for _, header := range []string{"", "Bearer ", "Basic abc"} {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/workspaces", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		handler(w, r)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status %d, want 401", header, w.Code)
		}
	}
}

func TestAuthenticated_InvalidToken(t *testing.T) {
	s := testServer()
	handler := s.authenticated(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run with a bad token")
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/workspaces", nil)
	r.Header.Set("Authorization", "Bearer not-a-jwt")
	handler(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", w.Code)
	}
}

func TestAuthenticated_PassesCallerID(t *testing.T) {
	s := testServer()

	token, err := auth.GenerateAccessToken("u-1", []byte("test-secret"), time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	var got string
	handler := s.authenticated(func(w http.ResponseWriter, r *http.Request) {
		got = callerID(r)
		w.WriteHeader(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/workspaces", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	handler(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status %d, want 204", w.Code)
	}
	if got != "u-1" {
		t.Fatalf("callerID = %q, want u-1", got)
	}
}
