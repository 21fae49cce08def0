package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fleurease/fleurease-api/internal/auth"
	"github.com/fleurease/fleurease-api/internal/handlers"
	"github.com/fleurease/fleurease-api/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type accountsByID map[string]*models.Account

func (a accountsByID) GetByID(_ context.Context, id string) (*models.Account, error) {
	if acc, ok := a[id]; ok {
		return acc, nil
	}
	return nil, models.ErrNotFound
}

func newRouter(t *testing.T, accounts accountsByID) (http.Handler, *auth.TokenManager) {
	t.Helper()
	tm := auth.NewTokenManager("routes-test-secret-0123456789abcdef", time.Hour, accounts)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		RegisterRoutes(r,
			handlers.NewAccountHandler(&handlers.MockAccountService{}, "https://shop.example.com"),
			handlers.NewUserHandler(&handlers.MockUserService{}),
			handlers.NewAdminHandler(&handlers.MockDashboardService{}),
			tm,
			accounts,
			DefaultLimits(),
		)
	})
	return r, tm
}

func TestAdminRoutes_AccessControl(t *testing.T) {
	accounts := accountsByID{
		"admin-1": {ID: "admin-1", Role: models.RoleAdmin, TokenKey: "k1"},
		"user-1":  {ID: "user-1", Role: models.RoleUser, TokenKey: "k2"},
	}
	router, tm := newRouter(t, accounts)

	adminToken, _, err := tm.GenerateAccessToken(accounts["admin-1"])
	require.NoError(t, err)
	userToken, _, err := tm.GenerateAccessToken(accounts["user-1"])
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{name: "no session", token: "", status: http.StatusUnauthorized},
		{name: "garbage session", token: "not.a.jwt", status: http.StatusUnauthorized},
		{name: "customer", token: userToken, status: http.StatusForbidden},
		{name: "admin", token: adminToken, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/dashboard", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestPublicRoutes(t *testing.T) {
	router, _ := newRouter(t, accountsByID{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/verify-email/whatever", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
