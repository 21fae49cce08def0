package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fleurease/fleurease-api/internal/metrics"
	"github.com/fleurease/fleurease-api/internal/models"
	"github.com/fleurease/fleurease-api/pkg/auth"
)

// Clock returns the current time. Tests substitute a fixed one.
type Clock func() time.Time

// TokenStore persists hashed verification and reset tokens on the account record.
// Consume methods match on hash and unexpired-at-now in a single statement and
// return models.ErrNotFound when nothing matches.
type TokenStore interface {
	SetVerificationToken(ctx context.Context, id, hash string, expiresAt time.Time) error
	ClearVerificationToken(ctx context.Context, id string) error
	ConsumeVerificationToken(ctx context.Context, hash string, now time.Time) (*models.Account, error)
	SetResetToken(ctx context.Context, id, hash string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, id string) error
	ConsumeResetToken(ctx context.Context, hash string, now time.Time, passwordHash, tokenKey string) (*models.Account, error)
}

// TokenService issues and consumes single-use account tokens. Only the
// SHA-256 of a token is stored; the plaintext leaves through the email link.
type TokenService struct {
	store           TokenStore
	verificationTTL time.Duration
	resetTTL        time.Duration
	now             Clock
	metrics         *metrics.Metrics
	logger          *slog.Logger
}

func NewTokenService(store TokenStore, verificationTTL, resetTTL time.Duration, m *metrics.Metrics, logger *slog.Logger) *TokenService {
	return &TokenService{
		store:           store,
		verificationTTL: verificationTTL,
		resetTTL:        resetTTL,
		now:             time.Now,
		metrics:         m,
		logger:          logger,
	}
}

// WithClock replaces the time source.
func (s *TokenService) WithClock(c Clock) *TokenService {
	s.now = c
	return s
}

// IssueVerificationToken overwrites any pending verification token.
func (s *TokenService) IssueVerificationToken(ctx context.Context, account *models.Account) (string, time.Time, error) {
	token, expiresAt, err := s.issue(ctx, account.ID, s.verificationTTL, s.store.SetVerificationToken)
	if err != nil {
		return "", time.Time{}, err
	}
	s.metrics.TokenIssued(metrics.PurposeVerification)
	return token, expiresAt, nil
}

// IssueResetToken overwrites any pending reset token. The verification pair is left alone.
func (s *TokenService) IssueResetToken(ctx context.Context, account *models.Account) (string, time.Time, error) {
	token, expiresAt, err := s.issue(ctx, account.ID, s.resetTTL, s.store.SetResetToken)
	if err != nil {
		return "", time.Time{}, err
	}
	s.metrics.TokenIssued(metrics.PurposeReset)
	return token, expiresAt, nil
}

func (s *TokenService) issue(ctx context.Context, accountID string, ttl time.Duration,
	persist func(ctx context.Context, id, hash string, expiresAt time.Time) error) (string, time.Time, error) {
	token, err := auth.GenerateSecret()
	if err != nil {
		s.logger.Error("failed to generate token", slog.Any("error", err))
		return "", time.Time{}, models.ErrInternalServer
	}

	expiresAt := s.now().Add(ttl)
	if err := persist(ctx, accountID, auth.HashSecret(token), expiresAt); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", time.Time{}, models.ErrNotFound
		}
		s.logger.Error("failed to store token", slog.String("user_id", accountID), slog.Any("error", err))
		return "", time.Time{}, models.ErrInternalServer
	}
	return token, expiresAt, nil
}

// ConsumeVerificationToken marks the owning account verified. Unknown, used
// and expired tokens all return models.ErrInvalidToken.
func (s *TokenService) ConsumeVerificationToken(ctx context.Context, token string) (*models.Account, error) {
	if token == "" {
		s.metrics.TokenConsumed(metrics.PurposeVerification, metrics.OutcomeInvalid)
		return nil, models.ErrInvalidToken
	}

	account, err := s.store.ConsumeVerificationToken(ctx, auth.HashSecret(token), s.now())
	if err != nil {
		return nil, s.consumeError(metrics.PurposeVerification, err)
	}
	s.metrics.TokenConsumed(metrics.PurposeVerification, metrics.OutcomeOK)
	return account, nil
}

// ConsumeResetToken sets a new password and rotates the account's token key,
// which invalidates every session issued before the reset.
func (s *TokenService) ConsumeResetToken(ctx context.Context, token, newPassword string) (*models.Account, error) {
	if err := auth.ValidatePassword(newPassword); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrBadRequest, err)
	}
	if token == "" {
		s.metrics.TokenConsumed(metrics.PurposeReset, metrics.OutcomeInvalid)
		return nil, models.ErrInvalidToken
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

	account, err := s.store.ConsumeResetToken(ctx, auth.HashSecret(token), s.now(), passwordHash, tokenKey)
	if err != nil {
		return nil, s.consumeError(metrics.PurposeReset, err)
	}
	s.metrics.TokenConsumed(metrics.PurposeReset, metrics.OutcomeOK)
	return account, nil
}

func (s *TokenService) ClearVerificationToken(ctx context.Context, accountID string) error {
	return s.clear(ctx, accountID, "verification", s.store.ClearVerificationToken)
}

// ClearResetToken is used when the reset email could not be delivered.
func (s *TokenService) ClearResetToken(ctx context.Context, accountID string) error {
	return s.clear(ctx, accountID, "reset", s.store.ClearResetToken)
}

func (s *TokenService) clear(ctx context.Context, accountID, purpose string, fn func(context.Context, string) error) error {
	if err := fn(ctx, accountID); err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to clear token",
			slog.String("purpose", purpose), slog.String("user_id", accountID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

func (s *TokenService) consumeError(purpose string, err error) error {
	if errors.Is(err, models.ErrNotFound) {
		s.metrics.TokenConsumed(purpose, metrics.OutcomeInvalid)
		return models.ErrInvalidToken
	}
	s.metrics.TokenConsumed(purpose, metrics.OutcomeError)
	s.logger.Error("failed to consume token", slog.String("purpose", purpose), slog.Any("error", err))
	return models.ErrInternalServer
}
