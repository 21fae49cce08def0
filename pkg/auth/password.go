package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost     = 12
	TokenKeyLength = 32 // 256 bits
	MinPasswordLen = 8
	MaxPasswordLen = 72 // bcrypt ignores bytes past 72
)

// PasswordPolicyError lists every rule a candidate password broke.
type PasswordPolicyError struct {
	Violations []string
}

func (e *PasswordPolicyError) Error() string {
	if len(e.Violations) == 0 {
		return "password does not meet policy"
	}
	return "password " + strings.Join(e.Violations, ", ")
}

var weakPasswords = map[string]struct{}{
	"password":    {},
	"password1":   {},
	"password123": {},
	"12345678":    {},
	"123456789":   {},
	"qwerty123":   {},
	"iloveyou1":   {},
	"flowers1":    {},
	"sunflower1":  {},
	"fleurease1":  {},
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// GenerateTokenKey returns the per-account key mixed into session signing.
// Rotating it invalidates every session issued before the rotation.
func GenerateTokenKey() (string, error) {
	buf := make([]byte, TokenKeyLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// RandomPassword produces a password nobody knows, for accounts created
// through a social provider.
func RandomPassword() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ValidatePassword checks length, at least one letter and at least one digit,
// and rejects a short list of guessable choices.
func ValidatePassword(password string) error {
	var violations []string

	if len(password) < MinPasswordLen {
		violations = append(violations, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if len(password) > MaxPasswordLen {
		violations = append(violations, fmt.Sprintf("must be at most %d bytes", MaxPasswordLen))
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter {
		violations = append(violations, "must contain a letter")
	}
	if !hasDigit {
		violations = append(violations, "must contain a digit")
	}

	if _, weak := weakPasswords[strings.ToLower(password)]; weak {
		violations = append(violations, "is too common")
	}

	if len(violations) > 0 {
		return &PasswordPolicyError{Violations: violations}
	}
	return nil
}
