package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fleurease/fleurease-api/internal/database"
	"github.com/fleurease/fleurease-api/internal/models"
	"github.com/fleurease/fleurease-api/pkg/auth"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{pool: db.Pool}
}

const accountColumns = `id, email, name, password_hash, role, is_verified,
	verification_token_hash, verification_token_expires_at,
	reset_token_hash, reset_token_expires_at,
	is_suspended, suspension_reason, provider, provider_user_id,
	avatar_public_id, avatar_url, token_key, password_changed_at,
	created_at, updated_at`

// rowScanner is satisfied by both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var a models.Account
	err := scanner.Scan(
		&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.Role, &a.IsVerified,
		&a.VerificationTokenHash, &a.VerificationTokenExpiresAt,
		&a.ResetTokenHash, &a.ResetTokenExpiresAt,
		&a.IsSuspended, &a.SuspensionReason, &a.Provider, &a.ProviderUserID,
		&a.Avatar.PublicID, &a.Avatar.URL, &a.TokenKey, &a.PasswordChangedAt,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &a, nil
}

func scanAccountRows(rows pgx.Rows) ([]*models.Account, error) {
	defer rows.Close()

	accounts := make([]*models.Account, 0)
	for rows.Next() {
		a, err := scanAccountRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return accounts, nil
}

func (r *AccountRepository) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.TokenKey == "" {
		key, err := auth.GenerateTokenKey()
		if err != nil {
			return nil, err
		}
		a.TokenKey = key
	}
	if a.Role == "" {
		a.Role = models.RoleUser
	}

	query := `
		INSERT INTO accounts (id, email, name, password_hash, role, is_verified,
			provider, provider_user_id, avatar_public_id, avatar_url, token_key)
		VALUES ($1, LOWER($2), $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query,
		a.ID, strings.TrimSpace(a.Email), a.Name, a.PasswordHash, a.Role, a.IsVerified,
		a.Provider, a.ProviderUserID, a.Avatar.PublicID, a.Avatar.URL, a.TokenKey,
	))
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccountRow(r.pool.QueryRow(ctx, query, id))
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(email) = LOWER($1)`
	return scanAccountRow(r.pool.QueryRow(ctx, query, strings.TrimSpace(email)))
}

func (r *AccountRepository) List(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	return scanAccountRows(rows)
}

// Update persists profile and administrative fields. Token fields are
// owned by the dedicated token methods below and are not touched here.
func (r *AccountRepository) Update(ctx context.Context, a *models.Account) (*models.Account, error) {
	query := `
		UPDATE accounts SET email = LOWER($1), name = $2, role = $3,
			avatar_public_id = $4, avatar_url = $5,
			is_suspended = $6, suspension_reason = $7, updated_at = NOW()
		WHERE id = $8
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query,
		strings.TrimSpace(a.Email), a.Name, a.Role, a.Avatar.PublicID, a.Avatar.URL,
		a.IsSuspended, a.SuspensionReason, a.ID,
	))
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return models.ErrNotFound
	}
	result, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SetVerificationToken stores the hash and expiry, replacing any pending token.
func (r *AccountRepository) SetVerificationToken(ctx context.Context, id, hash string, expiresAt time.Time) error {
	query := `
		UPDATE accounts SET verification_token_hash = $1, verification_token_expires_at = $2, updated_at = NOW()
		WHERE id = $3`
	return r.execOne(ctx, query, hash, expiresAt, id)
}

// ConsumeVerificationToken marks the owning account verified and clears the
// token in one statement. No row means wrong, used or expired.
func (r *AccountRepository) ConsumeVerificationToken(ctx context.Context, hash string, now time.Time) (*models.Account, error) {
	query := `
		UPDATE accounts SET is_verified = TRUE,
			verification_token_hash = NULL, verification_token_expires_at = NULL, updated_at = NOW()
		WHERE verification_token_hash = $1 AND verification_token_expires_at > $2
		RETURNING ` + accountColumns
	return scanAccountRow(r.pool.QueryRow(ctx, query, hash, now))
}

func (r *AccountRepository) ClearVerificationToken(ctx context.Context, id string) error {
	query := `
		UPDATE accounts SET verification_token_hash = NULL, verification_token_expires_at = NULL, updated_at = NOW()
		WHERE id = $1`
	return r.execOne(ctx, query, id)
}

// SetResetToken stores the hash and expiry, replacing any pending token.
func (r *AccountRepository) SetResetToken(ctx context.Context, id, hash string, expiresAt time.Time) error {
	query := `
		UPDATE accounts SET reset_token_hash = $1, reset_token_expires_at = $2, updated_at = NOW()
		WHERE id = $3`
	return r.execOne(ctx, query, hash, expiresAt, id)
}

func (r *AccountRepository) ClearResetToken(ctx context.Context, id string) error {
	query := `
		UPDATE accounts SET reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = NOW()
		WHERE id = $1`
	return r.execOne(ctx, query, id)
}

// ConsumeResetToken swaps in the new password hash and token key if the
// reset token matches and has not expired.
func (r *AccountRepository) ConsumeResetToken(ctx context.Context, hash string, now time.Time, passwordHash, tokenKey string) (*models.Account, error) {
	query := `
		UPDATE accounts SET password_hash = $1, token_key = $2, password_changed_at = $3,
			reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = NOW()
		WHERE reset_token_hash = $4 AND reset_token_expires_at > $3
		RETURNING ` + accountColumns
	return scanAccountRow(r.pool.QueryRow(ctx, query, passwordHash, tokenKey, now, hash))
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, id, passwordHash, tokenKey string, changedAt time.Time) error {
	query := `
		UPDATE accounts SET password_hash = $1, token_key = $2, password_changed_at = $3, updated_at = NOW()
		WHERE id = $4`
	return r.execOne(ctx, query, passwordHash, tokenKey, changedAt, id)
}

// ListStaleUnverified returns never-verified, non-social accounts whose
// verification window closed before cutoff. Accounts that never received
// a token are judged by creation time.
func (r *AccountRepository) ListStaleUnverified(ctx context.Context, cutoff time.Time, limit int) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE is_verified = FALSE AND provider = ''
			AND COALESCE(verification_token_expires_at, created_at) < $1
		ORDER BY created_at ASC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale accounts: %w", err)
	}
	return scanAccountRows(rows)
}

func (r *AccountRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
