package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/fleurease/fleurease-api/internal/auth"
	"github.com/fleurease/fleurease-api/internal/models"
	"github.com/fleurease/fleurease-api/internal/services"
	pkghttp "github.com/fleurease/fleurease-api/pkg/http"
	"github.com/go-chi/chi/v5"
)

// UserService defines the interface for account administration and wishlists
type UserService interface {
	ListUsers(ctx context.Context) ([]*models.Account, error)
	GetUser(ctx context.Context, id string) (*models.Account, error)
	UpdateUser(ctx context.Context, id string, u services.UserUpdate) (*models.Account, error)
	DeleteUser(ctx context.Context, actorID, id string) error
	SuspendUser(ctx context.Context, actorID, id, reason string) (*models.Account, error)
	UnsuspendUser(ctx context.Context, actorID, id string) (*models.Account, error)
	AddToWishlist(ctx context.Context, accountID, productID string) error
	RemoveFromWishlist(ctx context.Context, accountID, productID string) error
	Wishlist(ctx context.Context, accountID string) ([]models.Product, error)
}

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	service UserService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserService) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// UpdateUserRequest represents the request body for updating a user
type UpdateUserRequest struct {
	Name  string `json:"name" validate:"omitempty,max=30"`
	Email string `json:"email" validate:"omitempty,email"`
	Role  string `json:"role" validate:"omitempty,oneof=user admin"`
}

// SuspendUserRequest carries the reason shown to the suspended user
type SuspendUserRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// ListUsers handles GET /admin/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteOK(w, map[string]any{"users": toUserResponses(accounts)})
}

// GetUser handles GET /admin/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	account, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		writeUserError(w, id, err)
		return
	}
	pkghttp.WriteOK(w, map[string]any{"user": toUserResponse(account)})
}

// UpdateUser handles PUT /admin/users/{id}
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	account, err := h.service.UpdateUser(r.Context(), id, services.UserUpdate{
		Name:  req.Name,
		Email: req.Email,
		Role:  req.Role,
	})
	if err != nil {
		writeUserError(w, id, err)
		return
	}
	pkghttp.WriteOK(w, map[string]any{"user": toUserResponse(account)})
}

// DeleteUser handles DELETE /admin/users/{id}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Login first to access this resource")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.DeleteUser(r.Context(), claims.UserID, id); err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "You cannot delete your own account")
			return
		}
		writeUserError(w, id, err)
		return
	}
	pkghttp.WriteOK(w, nil)
}

// SuspendUser handles PUT /admin/users/{id}/suspend
func (h *UserHandler) SuspendUser(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Login first to access this resource")
		return
	}
	var req SuspendUserRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	account, err := h.service.SuspendUser(r.Context(), claims.UserID, id, req.Reason)
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "You cannot suspend your own account")
			return
		}
		writeUserError(w, id, err)
		return
	}
	pkghttp.WriteOK(w, map[string]any{
		"message": "User suspended",
		"user":    toUserResponse(account),
	})
}

// UnsuspendUser handles PUT /admin/users/{id}/unsuspend
func (h *UserHandler) UnsuspendUser(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Login first to access this resource")
		return
	}

	id := chi.URLParam(r, "id")
	account, err := h.service.UnsuspendUser(r.Context(), claims.UserID, id)
	if err != nil {
		writeUserError(w, id, err)
		return
	}
	pkghttp.WriteOK(w, map[string]any{
		"message": "User unsuspended",
		"user":    toUserResponse(account),
	})
}

// Wishlist handles GET /wishlist
func (h *UserHandler) Wishlist(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Login first to access this resource")
		return
	}

	products, err := h.service.Wishlist(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteOK(w, map[string]any{"wishlist": toProductResponses(products)})
}

// AddToWishlist handles POST /wishlist/{productId}
func (h *UserHandler) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Login first to access this resource")
		return
	}

	if err := h.service.AddToWishlist(r.Context(), claims.UserID, chi.URLParam(r, "productId")); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Product not found")
			return
		}
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, map[string]any{"message": "Product added to wishlist"})
}

// RemoveFromWishlist handles DELETE /wishlist/{productId}
func (h *UserHandler) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Login first to access this resource")
		return
	}

	if err := h.service.RemoveFromWishlist(r.Context(), claims.UserID, chi.URLParam(r, "productId")); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Product is not in the wishlist")
			return
		}
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteOK(w, map[string]any{"message": "Product removed from wishlist"})
}

func writeUserError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, models.ErrNotFound) {
		pkghttp.WriteNotFound(w, "User not found with id: "+id)
		return
	}
	writeServiceError(w, err)
}
