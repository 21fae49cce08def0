package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fleurease/fleurease-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAccounts struct {
	accounts map[string]*models.Account
	err      error
}

func (s *stubAccounts) GetByID(_ context.Context, id string) (*models.Account, error) {
	if s.err != nil {
		return nil, s.err
	}
	a, ok := s.accounts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return a, nil
}

func newStub(accounts ...*models.Account) *stubAccounts {
	s := &stubAccounts{accounts: map[string]*models.Account{}}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return s
}

const testSecret = "middleware-test-secret-value"

func TestTokenManager_RoundTrip(t *testing.T) {
	acc := &models.Account{ID: "acc-1", Email: "rose@example.com", Role: models.RoleUser, TokenKey: "k1"}
	tm := NewTokenManager(testSecret, time.Hour, newStub(acc))

	token, expiresAt, err := tm.GenerateAccessToken(acc)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := tm.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.UserID)
	assert.Equal(t, "rose@example.com", claims.Email)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_RotatedKeyRevokesSession(t *testing.T) {
	acc := &models.Account{ID: "acc-1", TokenKey: "before"}
	stub := newStub(acc)
	tm := NewTokenManager(testSecret, time.Hour, stub)

	token, _, err := tm.GenerateAccessToken(acc)
	require.NoError(t, err)

	stub.accounts["acc-1"] = &models.Account{ID: "acc-1", TokenKey: "after"}

	_, err = tm.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestTokenManager_Expired(t *testing.T) {
	acc := &models.Account{ID: "acc-1", TokenKey: "k"}
	tm := NewTokenManager(testSecret, time.Minute, newStub(acc))
	issued := time.Now()
	tm.now = func() time.Time { return issued }

	token, _, err := tm.GenerateAccessToken(acc)
	require.NoError(t, err)

	tm.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = tm.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestTokenManager_DeletedAccount(t *testing.T) {
	acc := &models.Account{ID: "acc-1", TokenKey: "k"}
	stub := newStub(acc)
	tm := NewTokenManager(testSecret, time.Hour, stub)

	token, _, err := tm.GenerateAccessToken(acc)
	require.NoError(t, err)
	delete(stub.accounts, "acc-1")

	_, err = tm.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuthMiddleware(t *testing.T) {
	acc := &models.Account{ID: "acc-1", TokenKey: "k"}
	tm := NewTokenManager(testSecret, time.Hour, newStub(acc))
	token, _, err := tm.GenerateAccessToken(acc)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
		{"lowercase scheme", "bearer " + token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			AuthMiddleware(tm)(okHandler()).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, false, decodeEnvelope(t, rec)["success"])
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	admin := &models.Account{ID: "admin", Role: models.RoleAdmin}
	user := &models.Account{ID: "user", Role: models.RoleUser}
	suspended := &models.Account{ID: "sus", Role: models.RoleAdmin, IsSuspended: true}
	stub := newStub(admin, user, suspended)

	tests := []struct {
		name   string
		claims *models.TokenClaims
		want   int
	}{
		{"no session", nil, http.StatusUnauthorized},
		{"unknown account", &models.TokenClaims{UserID: "ghost"}, http.StatusUnauthorized},
		{"wrong role", &models.TokenClaims{UserID: "user"}, http.StatusForbidden},
		{"suspended admin", &models.TokenClaims{UserID: "sus"}, http.StatusForbidden},
		{"admin", &models.TokenClaims{UserID: "admin"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil)
			if tt.claims != nil {
				req = req.WithContext(WithClaims(req.Context(), tt.claims))
			}
			rec := httptest.NewRecorder()
			RequireRole(stub, models.RoleAdmin)(okHandler()).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireRole_RepositoryFailure(t *testing.T) {
	stub := &stubAccounts{err: assert.AnError}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithClaims(req.Context(), &models.TokenClaims{UserID: "x"}))
	rec := httptest.NewRecorder()

	RequireRole(stub, models.RoleAdmin)(okHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
