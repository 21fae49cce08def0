package models

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"
)

// Avatar is an image held by the image host, addressed by PublicID for later deletion.
type Avatar struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

// IsHosted reports whether the avatar lives on our image host. Social avatars carry a
// provider-prefixed id and an external URL and must never be destroyed remotely.
func (a Avatar) IsHosted() bool {
	if a.PublicID == "" {
		return false
	}
	for _, p := range []string{ProviderGoogle, ProviderFacebook} {
		if len(a.PublicID) > len(p) && a.PublicID[:len(p)+1] == p+"_" {
			return false
		}
	}
	return true
}

type Account struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string
	Avatar       Avatar

	IsVerified                 bool
	VerificationTokenHash      *string
	VerificationTokenExpiresAt *time.Time

	ResetTokenHash      *string
	ResetTokenExpiresAt *time.Time

	IsSuspended      bool
	SuspensionReason string

	Provider       string // "", "google" or "facebook"
	ProviderUserID string

	TokenKey          string // Per-account secret mixed into session signing
	PasswordChangedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsSocial reports whether the account was created through an external identity provider.
func (a *Account) IsSocial() bool {
	return a.Provider != ""
}

// HasPendingVerification reports whether a verification token is outstanding at now.
func (a *Account) HasPendingVerification(now time.Time) bool {
	return a.VerificationTokenHash != nil && a.VerificationTokenExpiresAt != nil &&
		a.VerificationTokenExpiresAt.After(now)
}

// HasPendingReset reports whether a reset token is outstanding at now.
func (a *Account) HasPendingReset(now time.Time) bool {
	return a.ResetTokenHash != nil && a.ResetTokenExpiresAt != nil && a.ResetTokenExpiresAt.After(now)
}
