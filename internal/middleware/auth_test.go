package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/marketly/marketly-api/internal/pkg/jwt"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddlewareAllowsValidAccessToken(t *testing.T) {
	jwtSvc := jwt.NewService("secret", time.Minute)
	sellerID := uuid.New()
	token, err := jwtSvc.GenerateAccessToken(sellerID, jwt.RoleSeller, false)
	if err != nil {
		t.Fatalf("token gen failed: %v", err)
	}

	var seen uuid.UUID
	protected := Auth(jwtSvc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	protected.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if seen != sellerID {
		t.Fatalf("expected user id %s in context, got %s", sellerID, seen)
	}
}

func TestAuthMiddlewareRejects(t *testing.T) {
	jwtSvc := jwt.NewService("secret", time.Minute)
	banned, _ := jwtSvc.GenerateAccessToken(uuid.New(), jwt.RoleSeller, true)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not-a-jwt", want: http.StatusUnauthorized},
		{name: "banned", header: "Bearer " + banned, want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			Auth(jwtSvc)(okHandler()).ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		role string
		want int
	}{
		{role: jwt.RoleAdmin, want: http.StatusOK},
		{role: jwt.RoleSeller, want: http.StatusForbidden},
		{role: "", want: http.StatusForbidden},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/admin", nil)
		req = req.WithContext(context.WithValue(req.Context(), RoleKey, tt.role))
		w := httptest.NewRecorder()
		RequireAdmin()(okHandler()).ServeHTTP(w, req)

		if w.Code != tt.want {
			t.Fatalf("role %q: expected %d, got %d", tt.role, tt.want, w.Code)
		}
	}
}
