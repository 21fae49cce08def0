package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/fleurease/fleurease-api/internal/auth"
	"github.com/fleurease/fleurease-api/internal/models"
	"github.com/fleurease/fleurease-api/internal/services"
	pkghttp "github.com/fleurease/fleurease-api/pkg/http"
	"github.com/go-chi/chi/v5"
)

// AccountServiceInterface defines the account flows the handler drives
type AccountServiceInterface interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.Account, error)
	VerifyEmail(ctx context.Context, token string) (*models.Account, error)
	ResendVerification(ctx context.Context, email string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password, confirm string) (*services.Session, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	SocialLogin(ctx context.Context, provider string, profile services.SocialProfile) (*services.Session, error)
	UpdatePassword(ctx context.Context, accountID, oldPassword, newPassword string) (*services.Session, error)
	Profile(ctx context.Context, id string) (*models.Account, error)
	UpdateProfile(ctx context.Context, id string, in services.ProfileInput) (*models.Account, error)
}

// AccountHandler handles registration, sign-in and self-service account requests
type AccountHandler struct {
	service     AccountServiceInterface
	frontendURL string
}

// NewAccountHandler creates a new AccountHandler. frontendURL is linked from
// the verification result page.
func NewAccountHandler(service AccountServiceInterface, frontendURL string) *AccountHandler {
	return &AccountHandler{service: service, frontendURL: frontendURL}
}

// Request DTOs

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Avatar   string `json:"avatar" validate:"omitempty,datauri"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type GoogleLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name"`
	GoogleID string `json:"googleId" validate:"required"`
	Avatar   string `json:"avatar" validate:"omitempty,url"`
}

type FacebookLoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Name       string `json:"name"`
	FacebookID string `json:"facebookId" validate:"required"`
	Avatar     string `json:"avatar" validate:"omitempty,url"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

type UpdatePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	Password    string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	Name   string `json:"name" validate:"omitempty,max=30"`
	Email  string `json:"email" validate:"omitempty,email"`
	Avatar string `json:"avatar" validate:"omitempty,datauri"`
}

// Register handles POST /register
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	account, err := h.service.Register(r.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Avatar:   req.Avatar,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			pkghttp.WriteBadRequest(w, "User already exists with this email")
			return
		}
		if errors.Is(err, models.ErrMailDelivery) {
			pkghttp.WriteBadGateway(w, "Failed to send verification email. Please try again.")
			return
		}
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": fmt.Sprintf("Verification email sent to %s. Please check your inbox to verify your account.", account.Email),
	})
}

// Login handles POST /login
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSession(w, http.StatusOK, session)
}

// GoogleLogin handles POST /google-login
func (h *AccountHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req GoogleLoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	h.socialLogin(w, r, models.ProviderGoogle, services.SocialProfile{
		Email: req.Email, Name: req.Name, ProviderUserID: req.GoogleID, AvatarURL: req.Avatar,
	})
}

// FacebookLogin handles POST /facebook-login
func (h *AccountHandler) FacebookLogin(w http.ResponseWriter, r *http.Request) {
	var req FacebookLoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	h.socialLogin(w, r, models.ProviderFacebook, services.SocialProfile{
		Email: req.Email, Name: req.Name, ProviderUserID: req.FacebookID, AvatarURL: req.Avatar,
	})
}

func (h *AccountHandler) socialLogin(w http.ResponseWriter, r *http.Request, provider string, profile services.SocialProfile) {
	session, err := h.service.SocialLogin(r.Context(), provider, profile)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSession(w, http.StatusOK, session)
}

// ForgotPassword handles POST /password/forgot
func (h *AccountHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found with this email")
			return
		}
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteOK(w, map[string]any{"message": "Email sent to: " + req.Email})
}

// ResetPassword handles PUT /password/reset/{token}
func (h *AccountHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	session, err := h.service.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password, req.ConfirmPassword)
	if err != nil {
		if errors.Is(err, models.ErrInvalidToken) {
			pkghttp.WriteBadRequest(w, "Password reset token is invalid or has been expired")
			return
		}
		writeServiceError(w, err)
		return
	}
	writeSession(w, http.StatusOK, session)
}

// ResendVerification handles POST /verify-email/resend. The response is the
// same whether or not the email is registered.
func (h *AccountHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	_ = h.service.ResendVerification(r.Context(), req.Email)
	pkghttp.WriteOK(w, map[string]any{
		"message": "If an unverified account exists for this email, a new verification link has been sent.",
	})
}

// VerifyEmail handles GET /verify-email/{token}. The link is opened from an
// email client, so the result is an HTML page.
func (h *AccountHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.VerifyEmail(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, models.ErrInvalidToken) {
			status = http.StatusBadRequest
		}
		renderVerifyPage(w, status, verifyPage{Success: false, LoginURL: h.frontendURL + "/login"})
		return
	}
	renderVerifyPage(w, http.StatusOK, verifyPage{Success: true, Name: account.Name, LoginURL: h.frontendURL + "/login"})
}

// Me handles GET /me
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Login first to access this resource")
		return
	}

	account, err := h.service.Profile(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteOK(w, map[string]any{"user": toUserResponse(account)})
}

// UpdateProfile handles PUT /me/update
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Login first to access this resource")
		return
	}
	var req UpdateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	account, err := h.service.UpdateProfile(r.Context(), claims.UserID, services.ProfileInput{
		Name:   req.Name,
		Email:  req.Email,
		Avatar: req.Avatar,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteOK(w, map[string]any{"user": toUserResponse(account)})
}

// UpdatePassword handles PUT /password/update
func (h *AccountHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Login first to access this resource")
		return
	}
	var req UpdatePasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	session, err := h.service.UpdatePassword(r.Context(), claims.UserID, req.OldPassword, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSession(w, http.StatusOK, session)
}
