package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the JWT claims carried by an access token.
type TokenClaims struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}
