package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fleurease/fleurease-api/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccountKeyFetcher loads the account whose TokenKey co-signs its sessions
type AccountKeyFetcher interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
}

// TokenManager issues and validates session JWTs. Each token is signed with
// the global secret concatenated with the account's TokenKey, so rotating the
// key on password change revokes every earlier session.
type TokenManager struct {
	secret    string
	accessTTL time.Duration
	accounts  AccountKeyFetcher
	now       func() time.Time
}

func NewTokenManager(secret string, accessTTL time.Duration, accounts AccountKeyFetcher) *TokenManager {
	return &TokenManager{
		secret:    secret,
		accessTTL: accessTTL,
		accounts:  accounts,
		now:       time.Now,
	}
}

func (tm *TokenManager) signingKey(tokenKey string) []byte {
	return []byte(tm.secret + tokenKey)
}

// GenerateAccessToken signs a session for the account.
func (tm *TokenManager) GenerateAccessToken(account *models.Account) (string, time.Time, error) {
	now := tm.now()
	expiresAt := now.Add(tm.accessTTL)

	claims := &models.TokenClaims{
		Type:   "access",
		UserID: account.ID,
		Email:  account.Email,
		Role:   account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.signingKey(account.TokenKey))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken verifies the signature against the account's current key and
// returns the claims. Any failure is reported as models.ErrUnauthorized.
func (tm *TokenManager) ValidateToken(ctx context.Context, tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		c, ok := token.Claims.(*models.TokenClaims)
		if !ok || c.UserID == "" {
			return nil, errors.New("token carries no subject")
		}
		account, err := tm.accounts.GetByID(ctx, c.UserID)
		if err != nil {
			return nil, fmt.Errorf("load signing key: %w", err)
		}
		return tm.signingKey(account.TokenKey), nil
	}, jwt.WithTimeFunc(tm.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}
	if claims.Type != "access" {
		return nil, fmt.Errorf("%w: unexpected token type %q", models.ErrUnauthorized, claims.Type)
	}
	return claims, nil
}
