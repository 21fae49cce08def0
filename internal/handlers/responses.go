package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/fleurease/fleurease-api/internal/models"
	"github.com/fleurease/fleurease-api/internal/services"
	"github.com/fleurease/fleurease-api/pkg/auth"
	pkghttp "github.com/fleurease/fleurease-api/pkg/http"
)

// UserResponse is the public shape of an account
type UserResponse struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Email            string        `json:"email"`
	Role             string        `json:"role"`
	Avatar           models.Avatar `json:"avatar"`
	IsVerified       bool          `json:"isVerified"`
	IsSuspended      bool          `json:"isSuspended"`
	SuspensionReason string        `json:"suspensionReason,omitempty"`
	Provider         string        `json:"provider,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
}

func toUserResponse(a *models.Account) UserResponse {
	return UserResponse{
		ID:               a.ID,
		Name:             a.Name,
		Email:            a.Email,
		Role:             a.Role,
		Avatar:           a.Avatar,
		IsVerified:       a.IsVerified,
		IsSuspended:      a.IsSuspended,
		SuspensionReason: a.SuspensionReason,
		Provider:         a.Provider,
		CreatedAt:        a.CreatedAt,
	}
}

func toUserResponses(accounts []*models.Account) []UserResponse {
	out := make([]UserResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toUserResponse(a))
	}
	return out
}

// ProductResponse is a catalog product
type ProductResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Price      float64   `json:"price"`
	Stock      int       `json:"stock"`
	OutOfStock bool      `json:"outOfStock"`
	CategoryID *string   `json:"category,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toProductResponses(products []models.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(products))
	for i := range products {
		p := &products[i]
		out = append(out, ProductResponse{
			ID:         p.ID,
			Name:       p.Name,
			Price:      p.Price,
			Stock:      p.Stock,
			OutOfStock: p.OutOfStock(),
			CategoryID: p.CategoryID,
			CreatedAt:  p.CreatedAt,
		})
	}
	return out
}

func writeSession(w http.ResponseWriter, status int, s *services.Session) {
	pkghttp.WriteJSON(w, status, map[string]any{
		"token":     s.Token,
		"expiresAt": s.ExpiresAt,
		"user":      toUserResponse(s.Account),
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	pkghttp.WriteBadRequest(w, message)
}

// writeServiceError maps errors shared by most endpoints. Callers handle
// endpoint-specific errors before falling through to it.
func writeServiceError(w http.ResponseWriter, err error) {
	var policy *auth.PasswordPolicyError
	switch {
	case errors.As(err, &policy):
		pkghttp.WriteBadRequest(w, policy.Error())
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, err.Error())
	case errors.Is(err, models.ErrInvalidToken):
		pkghttp.WriteBadRequest(w, "Token is invalid or has expired")
	case errors.Is(err, models.ErrPasswordMismatch):
		pkghttp.WriteBadRequest(w, "Password does not match")
	case errors.Is(err, models.ErrIncorrectPassword):
		pkghttp.WriteBadRequest(w, "Old password is incorrect")
	case errors.Is(err, models.ErrAlreadyInWishlist):
		pkghttp.WriteBadRequest(w, "Product already in wishlist")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Email is already registered")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Invalid Email or Password")
	case errors.Is(err, models.ErrEmailNotVerified):
		pkghttp.WriteForbidden(w, "Please verify your email before logging in. Check your inbox for the verification link.")
	case errors.Is(err, models.ErrAccountSuspended):
		pkghttp.WriteForbidden(w, "Your account has been suspended")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "Forbidden")
	case errors.Is(err, models.ErrMailDelivery):
		pkghttp.WriteBadGateway(w, "Failed to send email. Please try again.")
	case errors.Is(err, models.ErrImageHost):
		pkghttp.WriteBadGateway(w, "Image upload service is unavailable. Please try again.")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
