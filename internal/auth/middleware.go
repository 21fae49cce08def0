package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/fleurease/fleurease-api/internal/models"
	pkghttp "github.com/fleurease/fleurease-api/pkg/http"
)

type contextKey string

// UserContextKey holds the *models.TokenClaims of the caller
const UserContextKey contextKey = "user"

// AccountFetcher loads the caller's current account state
type AccountFetcher interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
}

// AuthMiddleware requires a valid bearer token and puts its claims in the context.
func AuthMiddleware(tm *TokenManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "Login first to access this resource")
				return
			}

			claims, err := tm.ValidateToken(r.Context(), tokenString)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "Session is invalid or has expired")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole admits callers whose stored role matches. A missing session is
// 401; a present session with the wrong role, or a suspended account, is 403.
func RequireRole(accounts AccountFetcher, role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetUserFromContext(r)
			if claims == nil {
				pkghttp.WriteUnauthorized(w, "Login first to access this resource")
				return
			}

			account, err := accounts.GetByID(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					pkghttp.WriteUnauthorized(w, "Account no longer exists")
					return
				}
				pkghttp.WriteInternalError(w, "Internal server error")
				return
			}

			if account.IsSuspended {
				pkghttp.WriteForbidden(w, "Account is suspended")
				return
			}
			if account.Role != role {
				pkghttp.WriteForbidden(w, "Role ("+account.Role+") is not allowed to access this resource")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WithClaims returns a context carrying claims.
func WithClaims(ctx context.Context, claims *models.TokenClaims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}

func GetUserFromContext(r *http.Request) *models.TokenClaims {
	claims, ok := r.Context().Value(UserContextKey).(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
