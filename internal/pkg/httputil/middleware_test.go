package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rolewarden/rolewarden/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestGetUserID(t *testing.T) {
	ctx := context.WithValue(context.Background(), UserIDKey, "user-1")
	assert.Equal(t, "user-1", GetUserID(ctx))

	assert.Empty(t, GetUserID(context.Background()))
}

func TestGetRole(t *testing.T) {
	ctx := context.WithValue(context.Background(), RoleKey, domain.RoleManager)
	assert.Equal(t, domain.RoleManager, GetRole(ctx))

	assert.Empty(t, GetRole(context.Background()))
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	guarded := RequireRole(domain.RoleAdmin)(next)

	tests := []struct {
		name       string
		role       domain.Role
		wantStatus int
	}{
		{name: "admin passes", role: domain.RoleAdmin, wantStatus: http.StatusOK},
		{name: "manager is rejected", role: domain.RoleManager, wantStatus: http.StatusForbidden},
		{name: "missing role is unauthorized", role: "", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.role != "" {
				req = req.WithContext(context.WithValue(req.Context(), RoleKey, tt.role))
			}

			rec := httptest.NewRecorder()
			guarded.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
