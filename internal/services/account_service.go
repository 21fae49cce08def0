package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fleurease/fleurease-api/internal/cache"
	"github.com/fleurease/fleurease-api/internal/metrics"
	"github.com/fleurease/fleurease-api/internal/models"
	"github.com/fleurease/fleurease-api/internal/storage"
	"github.com/fleurease/fleurease-api/pkg/auth"
	pkglogger "github.com/fleurease/fleurease-api/pkg/logger"
)

// AccountRepository defines the account persistence the services need
type AccountRepository interface {
	TokenStore
	Create(ctx context.Context, a *models.Account) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	List(ctx context.Context) ([]*models.Account, error)
	Update(ctx context.Context, a *models.Account) (*models.Account, error)
	Delete(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash, tokenKey string, changedAt time.Time) error
}

// AvatarStore is the image host
type AvatarStore interface {
	Upload(ctx context.Context, dataURL string, opts storage.UploadOptions) (models.Avatar, error)
	Delete(ctx context.Context, publicID string) error
}

// Mailer sends the account notification emails
type Mailer interface {
	SendVerification(ctx context.Context, to, name, token string, expiresAt time.Time) error
	SendPasswordReset(ctx context.Context, to, name, token string, expiresAt time.Time) error
	SendSuspended(ctx context.Context, to, name, reason string) error
	SendUnsuspended(ctx context.Context, to, name string) error
}

// SessionIssuer signs access tokens
type SessionIssuer interface {
	GenerateAccessToken(account *models.Account) (string, time.Time, error)
}

// Session is a signed access token and the account it belongs to
type Session struct {
	Token     string
	ExpiresAt time.Time
	Account   *models.Account
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Avatar   string // data URL, optional
}

type SocialProfile struct {
	Email          string
	Name           string
	ProviderUserID string
	AvatarURL      string
}

type ProfileInput struct {
	Name   string
	Email  string
	Avatar string // data URL; empty keeps the current avatar
}

// AccountServiceDeps groups the collaborators of AccountService.
type AccountServiceDeps struct {
	Accounts AccountRepository
	Tokens   *TokenService
	Avatars  AvatarStore
	Mailer   Mailer
	Sessions SessionIssuer
	Orphans  cache.OrphanQueue
	Audit    *pkglogger.AuditLogger
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	AvatarFolder string
	AvatarWidth  int
}

// AccountService implements registration, verification, password and
// profile flows for storefront accounts.
type AccountService struct {
	accounts AccountRepository
	tokens   *TokenService
	avatars  AvatarStore
	mailer   Mailer
	sessions SessionIssuer
	orphans  cache.OrphanQueue
	audit    *pkglogger.AuditLogger
	metrics  *metrics.Metrics
	logger   *slog.Logger
	upload   storage.UploadOptions
	now      Clock
}

func NewAccountService(d AccountServiceDeps) *AccountService {
	return &AccountService{
		accounts: d.Accounts,
		tokens:   d.Tokens,
		avatars:  d.Avatars,
		mailer:   d.Mailer,
		sessions: d.Sessions,
		orphans:  d.Orphans,
		audit:    d.Audit,
		metrics:  d.Metrics,
		logger:   d.Logger,
		upload: storage.UploadOptions{
			Folder: d.AvatarFolder,
			Width:  d.AvatarWidth,
			Crop:   storage.CropScale,
		},
		now: time.Now,
	}
}

// Register creates an unverified account and emails its verification link.
// If the link cannot be issued or sent the account and its avatar are removed
// again, so no unreachable account is left behind.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.Account, error) {
	email := normalizeEmail(in.Email)
	if err := auth.ValidatePassword(in.Password); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrBadRequest, err)
	}

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return nil, models.ErrConflict
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to look up account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	var avatar models.Avatar
	if in.Avatar != "" {
		uploaded, err := s.avatars.Upload(ctx, in.Avatar, s.upload)
		if err != nil {
			if errors.Is(err, storage.ErrInvalidImage) {
				return nil, fmt.Errorf("%w: %w", models.ErrBadRequest, err)
			}
			return nil, models.ErrImageHost
		}
		avatar = uploaded
	}

	passwordHash, err := auth.HashPassword(in.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		s.rollbackRegistration(ctx, &models.Account{Avatar: avatar}, "hash_failed")
		return nil, models.ErrInternalServer
	}

	account, err := s.accounts.Create(ctx, &models.Account{
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: passwordHash,
		Role:         models.RoleUser,
		Avatar:       avatar,
	})
	if err != nil {
		s.rollbackRegistration(ctx, &models.Account{Avatar: avatar}, "create_failed")
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	token, expiresAt, err := s.tokens.IssueVerificationToken(ctx, account)
	if err != nil {
		s.rollbackRegistration(ctx, account, "token_failed")
		return nil, models.ErrInternalServer
	}

	if err := s.mailer.SendVerification(ctx, account.Email, account.Name, token, expiresAt); err != nil {
		s.logger.Error("verification email failed, reverting registration",
			slog.String("user_id", account.ID), slog.Any("error", err))
		s.rollbackRegistration(ctx, account, "mail_failed")
		return nil, models.ErrMailDelivery
	}

	s.audit.Log(ctx, pkglogger.AuditEvent{
		Action:    pkglogger.ActionRegister,
		AccountID: account.ID,
		Email:     account.Email,
		Success:   true,
	})
	return account, nil
}

// rollbackRegistration deletes the account and its avatar. The cleanup runs
// even if the request context is cancelled. Whatever cannot be deleted now
// is queued for the cleanup job.
func (s *AccountService) rollbackRegistration(ctx context.Context, account *models.Account, reason string) {
	ctx = context.WithoutCancel(ctx)
	orphan := cache.Orphan{QueuedAt: s.now()}

	if account.ID != "" {
		if err := s.accounts.Delete(ctx, account.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("compensating account delete failed",
				slog.String("user_id", account.ID), slog.Any("error", err))
			orphan.AccountID = account.ID
		}
	}
	if account.Avatar.IsHosted() {
		if err := s.avatars.Delete(ctx, account.Avatar.PublicID); err != nil {
			s.logger.Error("compensating avatar delete failed",
				slog.String("avatar_id", account.Avatar.PublicID), slog.Any("error", err))
			orphan.AvatarPublicID = account.Avatar.PublicID
		}
	}

	outcome := metrics.OutcomeOK
	if orphan.AccountID != "" || orphan.AvatarPublicID != "" {
		outcome = metrics.OutcomeError
		if err := s.orphans.Push(ctx, orphan); err != nil {
			// The stale-account sweep still catches the account row.
			s.logger.Error("failed to queue orphan",
				slog.String("user_id", orphan.AccountID),
				slog.String("avatar_id", orphan.AvatarPublicID),
				slog.Any("error", err))
		}
	}
	s.metrics.RegistrationRollback(outcome)

	s.audit.Log(ctx, pkglogger.AuditEvent{
		Action:    pkglogger.ActionRegisterRevert,
		AccountID: account.ID,
		Email:     account.Email,
		Success:   outcome == metrics.OutcomeOK,
		Reason:    reason,
	})
}

// VerifyEmail consumes a verification token.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) (*models.Account, error) {
	account, err := s.tokens.ConsumeVerificationToken(ctx, token)
	if err != nil {
		s.audit.Failure(ctx, pkglogger.ActionVerifyEmail, "", "invalid_token")
		return nil, err
	}
	s.audit.Success(ctx, pkglogger.ActionVerifyEmail, account.ID)
	return account, nil
}

// ResendVerification issues a fresh link for an unverified account. It
// always returns nil so callers cannot probe which emails are registered.
func (s *AccountService) ResendVerification(ctx context.Context, email string) error {
	account, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to look up account", slog.Any("error", err))
		}
		return nil
	}
	if account.IsVerified || account.IsSocial() {
		return nil
	}

	token, expiresAt, err := s.tokens.IssueVerificationToken(ctx, account)
	if err != nil {
		return nil
	}
	if err := s.mailer.SendVerification(ctx, account.Email, account.Name, token, expiresAt); err != nil {
		s.logger.Error("verification resend failed", slog.String("user_id", account.ID), slog.Any("error", err))
		if clearErr := s.tokens.ClearVerificationToken(context.WithoutCancel(ctx), account.ID); clearErr != nil {
			s.audit.Failure(ctx, pkglogger.ActionResendVerify, account.ID, "token_clear_failed")
			return nil
		}
		s.audit.Failure(ctx, pkglogger.ActionResendVerify, account.ID, "mail_failed")
		return nil
	}

	s.audit.Success(ctx, pkglogger.ActionResendVerify, account.ID)
	return nil
}

// ForgotPassword emails a reset link. If the email cannot be sent the
// reset token is cleared again.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	account, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to look up account", slog.Any("error", err))
		return models.ErrInternalServer
	}

	token, expiresAt, err := s.tokens.IssueResetToken(ctx, account)
	if err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, account.Email, account.Name, token, expiresAt); err != nil {
		s.logger.Error("password reset email failed", slog.String("user_id", account.ID), slog.Any("error", err))
		if clearErr := s.tokens.ClearResetToken(context.WithoutCancel(ctx), account.ID); clearErr != nil {
			return clearErr
		}
		s.audit.Failure(ctx, pkglogger.ActionForgotPassword, account.ID, "mail_failed")
		return models.ErrMailDelivery
	}

	s.audit.Success(ctx, pkglogger.ActionForgotPassword, account.ID)
	return nil
}

// ResetPassword consumes a reset token and signs the user in.
func (s *AccountService) ResetPassword(ctx context.Context, token, password, confirm string) (*Session, error) {
	if password != confirm {
		return nil, models.ErrPasswordMismatch
	}

	account, err := s.tokens.ConsumeResetToken(ctx, token, password)
	if err != nil {
		if errors.Is(err, models.ErrInvalidToken) {
			s.audit.Failure(ctx, pkglogger.ActionResetPassword, "", "invalid_token")
		}
		return nil, err
	}

	s.audit.Success(ctx, pkglogger.ActionResetPassword, account.ID)
	return s.newSession(account)
}

// Login checks credentials and account state.
func (s *AccountService) Login(ctx context.Context, email, password string) (*Session, error) {
	if email = normalizeEmail(email); email == "" || password == "" {
		return nil, models.ErrUnauthorized
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.audit.Log(ctx, pkglogger.AuditEvent{Action: pkglogger.ActionLogin, Email: email, Reason: "invalid_credentials"})
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to look up account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		s.audit.Failure(ctx, pkglogger.ActionLogin, account.ID, "invalid_credentials")
		return nil, models.ErrUnauthorized
	}
	if err := validateAccountState(account); err != nil {
		s.audit.Failure(ctx, pkglogger.ActionLogin, account.ID, err.Error())
		return nil, err
	}

	s.audit.Success(ctx, pkglogger.ActionLogin, account.ID)
	return s.newSession(account)
}

// SocialLogin signs in with an external identity, creating a verified
// account on first use.
func (s *AccountService) SocialLogin(ctx context.Context, provider string, profile SocialProfile) (*Session, error) {
	if provider != models.ProviderGoogle && provider != models.ProviderFacebook {
		return nil, models.ErrBadRequest
	}
	email := normalizeEmail(profile.Email)
	if email == "" || profile.ProviderUserID == "" {
		return nil, models.ErrBadRequest
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if account.IsSuspended {
			s.audit.Failure(ctx, pkglogger.ActionSocialLogin, account.ID, "suspended")
			return nil, models.ErrAccountSuspended
		}
	case errors.Is(err, models.ErrNotFound):
		account, err = s.createSocialAccount(ctx, provider, email, profile)
		if err != nil {
			return nil, err
		}
	default:
		s.logger.Error("failed to look up account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.audit.Log(ctx, pkglogger.AuditEvent{
		Action:    pkglogger.ActionSocialLogin,
		AccountID: account.ID,
		Success:   true,
		Metadata:  map[string]string{"provider": provider},
	})
	return s.newSession(account)
}

func (s *AccountService) createSocialAccount(ctx context.Context, provider, email string, profile SocialProfile) (*models.Account, error) {
	// Social accounts cannot sign in with a password.
	unusable, err := auth.RandomPassword()
	if err != nil {
		s.logger.Error("failed to generate password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	passwordHash, err := auth.HashPassword(unusable)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	account, err := s.accounts.Create(ctx, &models.Account{
		Email:          email,
		Name:           strings.TrimSpace(profile.Name),
		PasswordHash:   passwordHash,
		Role:           models.RoleUser,
		IsVerified:     true,
		Provider:       provider,
		ProviderUserID: profile.ProviderUserID,
		Avatar: models.Avatar{
			PublicID: provider + "_" + profile.ProviderUserID,
			URL:      profile.AvatarURL,
		},
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create social account", slog.String("provider", provider), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return account, nil
}

// UpdatePassword changes the password of a signed-in account. The token key
// rotates, so the returned session replaces every earlier one.
func (s *AccountService) UpdatePassword(ctx context.Context, accountID, oldPassword, newPassword string) (*Session, error) {
	if err := auth.ValidatePassword(newPassword); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrBadRequest, err)
	}

	account, err := s.Profile(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := auth.ComparePassword(account.PasswordHash, oldPassword); err != nil {
		s.audit.Failure(ctx, pkglogger.ActionUpdatePassword, accountID, "incorrect_password")
		return nil, models.ErrIncorrectPassword
	}

	passwordHash, err := auth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	tokenKey, err := auth.GenerateTokenKey()
	if err != nil {
		s.logger.Error("failed to generate token key", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	changedAt := s.now()
	if err := s.accounts.UpdatePassword(ctx, accountID, passwordHash, tokenKey, changedAt); err != nil {
		s.logger.Error("failed to update password", slog.String("user_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	account.PasswordHash = passwordHash
	account.TokenKey = tokenKey
	account.PasswordChangedAt = &changedAt

	s.audit.Success(ctx, pkglogger.ActionUpdatePassword, accountID)
	return s.newSession(account)
}

func (s *AccountService) Profile(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get account", slog.String("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return account, nil
}

// UpdateProfile changes name, email and optionally the avatar. A new avatar
// is uploaded before the record is saved; the old one is removed only after
// the save succeeded.
func (s *AccountService) UpdateProfile(ctx context.Context, id string, in ProfileInput) (*models.Account, error) {
	account, err := s.Profile(ctx, id)
	if err != nil {
		return nil, err
	}

	if email := normalizeEmail(in.Email); email != "" && email != account.Email {
		existing, err := s.accounts.GetByEmail(ctx, email)
		switch {
		case err == nil && existing.ID != account.ID:
			return nil, models.ErrConflict
		case err != nil && !errors.Is(err, models.ErrNotFound):
			s.logger.Error("failed to look up account", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		account.Email = email
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		account.Name = name
	}

	oldAvatar := account.Avatar
	if in.Avatar != "" {
		uploaded, err := s.avatars.Upload(ctx, in.Avatar, s.upload)
		if err != nil {
			if errors.Is(err, storage.ErrInvalidImage) {
				return nil, fmt.Errorf("%w: %w", models.ErrBadRequest, err)
			}
			return nil, models.ErrImageHost
		}
		account.Avatar = uploaded
	}

	updated, err := s.accounts.Update(ctx, account)
	if err != nil {
		if in.Avatar != "" {
			if delErr := s.avatars.Delete(context.WithoutCancel(ctx), account.Avatar.PublicID); delErr != nil {
				s.logger.Warn("failed to remove unsaved avatar",
					slog.String("avatar_id", account.Avatar.PublicID), slog.Any("error", delErr))
			}
		}
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to update account", slog.String("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if in.Avatar != "" && oldAvatar.IsHosted() {
		if err := s.avatars.Delete(ctx, oldAvatar.PublicID); err != nil {
			s.logger.Warn("failed to remove replaced avatar",
				slog.String("avatar_id", oldAvatar.PublicID), slog.Any("error", err))
		}
	}
	return updated, nil
}

func (s *AccountService) newSession(account *models.Account) (*Session, error) {
	token, expiresAt, err := s.sessions.GenerateAccessToken(account)
	if err != nil {
		s.logger.Error("failed to sign session", slog.String("user_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return &Session{Token: token, ExpiresAt: expiresAt, Account: account}, nil
}

// validateAccountState rejects suspended accounts and unverified password accounts.
func validateAccountState(account *models.Account) error {
	if account.IsSuspended {
		return models.ErrAccountSuspended
	}
	if !account.IsVerified && !account.IsSocial() {
		return models.ErrEmailNotVerified
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
