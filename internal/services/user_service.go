package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/fleurease/fleurease-api/internal/models"
	pkglogger "github.com/fleurease/fleurease-api/pkg/logger"
)

// WishlistRepository defines the interface for wishlist data access
type WishlistRepository interface {
	Add(ctx context.Context, accountID, productID string) error
	Remove(ctx context.Context, accountID, productID string) error
	List(ctx context.Context, accountID string) ([]models.Product, error)
}

// ProductLookup finds a single product
type ProductLookup interface {
	GetByID(ctx context.Context, id string) (models.Product, error)
}

// UserUpdate holds admin-editable fields. Empty fields are left unchanged.
type UserUpdate struct {
	Name  string
	Email string
	Role  string
}

// UserService handles account administration and wishlists
type UserService struct {
	accounts AccountRepository
	wishlist WishlistRepository
	products ProductLookup
	avatars  AvatarStore
	mailer   Mailer
	audit    *pkglogger.AuditLogger
	logger   *slog.Logger
}

// NewUserService creates a new UserService
func NewUserService(accounts AccountRepository, wishlist WishlistRepository, products ProductLookup,
	avatars AvatarStore, mailer Mailer, audit *pkglogger.AuditLogger, logger *slog.Logger) *UserService {
	return &UserService{
		accounts: accounts,
		wishlist: wishlist,
		products: products,
		avatars:  avatars,
		mailer:   mailer,
		audit:    audit,
		logger:   logger,
	}
}

func (s *UserService) ListUsers(ctx context.Context) ([]*models.Account, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		s.logger.Error("failed to list accounts", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return accounts, nil
}

// GetUser retrieves an account by ID
func (s *UserService) GetUser(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("account not found", slog.String("user_id", id))
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get account", slog.String("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return account, nil
}

// UpdateUser applies non-empty fields of u
func (s *UserService) UpdateUser(ctx context.Context, id string, u UserUpdate) (*models.Account, error) {
	if u.Role != "" && u.Role != models.RoleUser && u.Role != models.RoleAdmin {
		return nil, models.ErrBadRequest
	}

	account, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(u.Name); name != "" {
		account.Name = name
	}
	if email := normalizeEmail(u.Email); email != "" {
		account.Email = email
	}
	if u.Role != "" {
		account.Role = u.Role
	}

	return s.save(ctx, account)
}

// DeleteUser removes the remote avatar and then the account. If the avatar
// cannot be removed the account is kept so the delete can be retried.
func (s *UserService) DeleteUser(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return models.ErrBadRequest
	}

	account, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}

	if err := s.avatars.Delete(ctx, account.Avatar.PublicID); err != nil {
		s.audit.Failure(ctx, pkglogger.ActionDelete, id, "avatar_delete_failed")
		return models.ErrImageHost
	}
	if err := s.accounts.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to delete account", slog.String("user_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.audit.Log(ctx, pkglogger.AuditEvent{
		Action:    pkglogger.ActionDelete,
		AccountID: id,
		Success:   true,
		Metadata:  map[string]string{"actor_id": actorID},
	})
	return nil
}

// SuspendUser blocks sign-in for the account and notifies its owner. A
// notification failure is logged; the suspension stands.
func (s *UserService) SuspendUser(ctx context.Context, actorID, id, reason string) (*models.Account, error) {
	if actorID == id {
		return nil, models.ErrBadRequest
	}

	account, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	account.IsSuspended = true
	account.SuspensionReason = strings.TrimSpace(reason)

	updated, err := s.save(ctx, account)
	if err != nil {
		return nil, err
	}

	if err := s.mailer.SendSuspended(ctx, updated.Email, updated.Name, updated.SuspensionReason); err != nil {
		s.logger.Warn("suspension notice not sent", slog.String("user_id", id), slog.Any("error", err))
	}
	s.audit.Log(ctx, pkglogger.AuditEvent{
		Action:    pkglogger.ActionSuspend,
		AccountID: id,
		Success:   true,
		Reason:    updated.SuspensionReason,
		Metadata:  map[string]string{"actor_id": actorID},
	})
	return updated, nil
}

func (s *UserService) UnsuspendUser(ctx context.Context, actorID, id string) (*models.Account, error) {
	account, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	account.IsSuspended = false
	account.SuspensionReason = ""

	updated, err := s.save(ctx, account)
	if err != nil {
		return nil, err
	}

	if err := s.mailer.SendUnsuspended(ctx, updated.Email, updated.Name); err != nil {
		s.logger.Warn("unsuspension notice not sent", slog.String("user_id", id), slog.Any("error", err))
	}
	s.audit.Log(ctx, pkglogger.AuditEvent{
		Action:    pkglogger.ActionUnsuspend,
		AccountID: id,
		Success:   true,
		Metadata:  map[string]string{"actor_id": actorID},
	})
	return updated, nil
}

func (s *UserService) save(ctx context.Context, account *models.Account) (*models.Account, error) {
	updated, err := s.accounts.Update(ctx, account)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			return nil, models.ErrNotFound
		case errors.Is(err, models.ErrConflict):
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to update account", slog.String("user_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return updated, nil
}

// AddToWishlist appends a product. Adding it twice is an error.
func (s *UserService) AddToWishlist(ctx context.Context, accountID, productID string) error {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get product", slog.String("product_id", productID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.wishlist.Add(ctx, accountID, productID); err != nil {
		switch {
		case errors.Is(err, models.ErrAlreadyInWishlist):
			return models.ErrAlreadyInWishlist
		case errors.Is(err, models.ErrNotFound):
			return models.ErrNotFound
		}
		s.logger.Error("failed to add to wishlist", slog.String("user_id", accountID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

func (s *UserService) RemoveFromWishlist(ctx context.Context, accountID, productID string) error {
	if err := s.wishlist.Remove(ctx, accountID, productID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to remove from wishlist", slog.String("user_id", accountID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

// Wishlist returns the account's products in the order they were added.
func (s *UserService) Wishlist(ctx context.Context, accountID string) ([]models.Product, error) {
	products, err := s.wishlist.List(ctx, accountID)
	if err != nil {
		s.logger.Error("failed to list wishlist", slog.String("user_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return products, nil
}
