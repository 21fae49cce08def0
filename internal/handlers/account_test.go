package handlers_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fleurease/fleurease-api/internal/handlers"
	"github.com/fleurease/fleurease-api/internal/models"
	"github.com/fleurease/fleurease-api/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccount() *models.Account {
	return &models.Account{
		ID:         "acc-1",
		Email:      "rose@example.com",
		Name:       "Rose",
		Role:       models.RoleUser,
		IsVerified: true,
		Avatar:     models.Avatar{PublicID: "avatars/1", URL: "https://img.example.com/avatars/1.png"},
		CreatedAt:  time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
	}
}

func testSession() *services.Session {
	return &services.Session{
		Token:     "signed.jwt.token",
		ExpiresAt: time.Date(2024, 10, 2, 0, 0, 0, 0, time.UTC),
		Account:   testAccount(),
	}
}

type sessionBody struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	User    struct {
		ID     string        `json:"id"`
		Email  string        `json:"email"`
		Avatar models.Avatar `json:"avatar"`
	} `json:"user"`
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		err            error
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "success",
			body:           handlers.RegisterRequest{Name: "Rose", Email: "rose@example.com", Password: "Blossom2024!"},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "invalid email",
			body:           handlers.RegisterRequest{Name: "Rose", Email: "not-an-email", Password: "Blossom2024!"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "bad_request",
		},
		{
			name:           "duplicate email",
			body:           handlers.RegisterRequest{Name: "Rose", Email: "rose@example.com", Password: "Blossom2024!"},
			err:            models.ErrConflict,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "bad_request",
		},
		{
			name:           "verification mail fails",
			body:           handlers.RegisterRequest{Name: "Rose", Email: "rose@example.com", Password: "Blossom2024!"},
			err:            models.ErrMailDelivery,
			expectedStatus: http.StatusBadGateway,
			expectedError:  "upstream_error",
		},
		{
			name:           "avatar host down",
			body:           handlers.RegisterRequest{Name: "Rose", Email: "rose@example.com", Password: "Blossom2024!"},
			err:            models.ErrImageHost,
			expectedStatus: http.StatusBadGateway,
			expectedError:  "upstream_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &handlers.MockAccountService{
				RegisterFunc: func(ctx context.Context, in services.RegisterInput) (*models.Account, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return &models.Account{ID: "acc-1", Email: in.Email, Name: in.Name}, nil
				},
			}
			h := handlers.NewAccountHandler(svc, "https://shop.example.com")

			w := httptest.NewRecorder()
			h.Register(w, handlers.NewTestRequest(t, http.MethodPost, "/api/v1/register", tt.body))

			if tt.expectedError != "" {
				handlers.AssertErrorResponse(t, w, tt.expectedStatus, tt.expectedError)
				return
			}
			var resp map[string]interface{}
			handlers.AssertJSONResponse(t, w, tt.expectedStatus, &resp)
			assert.Equal(t, true, resp["success"])
			assert.Contains(t, resp["message"], "rose@example.com")
		})
	}
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
	}{
		{name: "success", expectedStatus: http.StatusOK},
		{name: "wrong credentials", err: models.ErrUnauthorized, expectedStatus: http.StatusUnauthorized, expectedError: "unauthorized"},
		{name: "unverified", err: models.ErrEmailNotVerified, expectedStatus: http.StatusForbidden, expectedError: "forbidden"},
		{name: "suspended", err: models.ErrAccountSuspended, expectedStatus: http.StatusForbidden, expectedError: "forbidden"},
		{name: "store failure", err: models.ErrInternalServer, expectedStatus: http.StatusInternalServerError, expectedError: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &handlers.MockAccountService{
				LoginFunc: func(ctx context.Context, email, password string) (*services.Session, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return testSession(), nil
				},
			}
			h := handlers.NewAccountHandler(svc, "")

			w := httptest.NewRecorder()
			h.Login(w, handlers.NewTestRequest(t, http.MethodPost, "/api/v1/login",
				handlers.LoginRequest{Email: "rose@example.com", Password: "Blossom2024!"}))

			if tt.expectedError != "" {
				handlers.AssertErrorResponse(t, w, tt.expectedStatus, tt.expectedError)
				return
			}
			var resp sessionBody
			handlers.AssertJSONResponse(t, w, tt.expectedStatus, &resp)
			assert.True(t, resp.Success)
			assert.Equal(t, "signed.jwt.token", resp.Token)
			assert.Equal(t, "acc-1", resp.User.ID)
			assert.Equal(t, "avatars/1", resp.User.Avatar.PublicID)
		})
	}
}

func TestGoogleLogin_PassesProfile(t *testing.T) {
	var gotProvider string
	var gotProfile services.SocialProfile
	svc := &handlers.MockAccountService{
		SocialLoginFunc: func(ctx context.Context, provider string, profile services.SocialProfile) (*services.Session, error) {
			gotProvider, gotProfile = provider, profile
			return testSession(), nil
		},
	}
	h := handlers.NewAccountHandler(svc, "")

	w := httptest.NewRecorder()
	h.GoogleLogin(w, handlers.NewTestRequest(t, http.MethodPost, "/api/v1/google-login", handlers.GoogleLoginRequest{
		Email: "rose@example.com", Name: "Rose", GoogleID: "g-123", Avatar: "https://lh3.example.com/a.png",
	}))

	handlers.AssertJSONResponse(t, w, http.StatusOK, nil)
	assert.Equal(t, models.ProviderGoogle, gotProvider)
	assert.Equal(t, "g-123", gotProfile.ProviderUserID)
	assert.Equal(t, "https://lh3.example.com/a.png", gotProfile.AvatarURL)
}

func TestFacebookLogin_RequiresProviderID(t *testing.T) {
	h := handlers.NewAccountHandler(&handlers.MockAccountService{}, "")

	w := httptest.NewRecorder()
	h.FacebookLogin(w, handlers.NewTestRequest(t, http.MethodPost, "/api/v1/facebook-login",
		map[string]string{"email": "rose@example.com"}))

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestForgotPassword(t *testing.T) {
	t.Run("sent", func(t *testing.T) {
		h := handlers.NewAccountHandler(&handlers.MockAccountService{}, "")
		w := httptest.NewRecorder()
		h.ForgotPassword(w, handlers.NewTestRequest(t, http.MethodPost, "/api/v1/password/forgot",
			handlers.EmailRequest{Email: "rose@example.com"}))

		var resp map[string]interface{}
		handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
		assert.Equal(t, "Email sent to: rose@example.com", resp["message"])
	})

	t.Run("unknown email", func(t *testing.T) {
		svc := &handlers.MockAccountService{
			ForgotPasswordFunc: func(ctx context.Context, email string) error { return models.ErrNotFound },
		}
		h := handlers.NewAccountHandler(svc, "")
		w := httptest.NewRecorder()
		h.ForgotPassword(w, handlers.NewTestRequest(t, http.MethodPost, "/api/v1/password/forgot",
			handlers.EmailRequest{Email: "nobody@example.com"}))

		handlers.AssertErrorResponse(t, w, http.StatusNotFound, "not_found")
	})

	t.Run("mail failure", func(t *testing.T) {
		svc := &handlers.MockAccountService{
			ForgotPasswordFunc: func(ctx context.Context, email string) error {
				return fmt.Errorf("%w: smtp down", models.ErrMailDelivery)
			},
		}
		h := handlers.NewAccountHandler(svc, "")
		w := httptest.NewRecorder()
		h.ForgotPassword(w, handlers.NewTestRequest(t, http.MethodPost, "/api/v1/password/forgot",
			handlers.EmailRequest{Email: "rose@example.com"}))

		handlers.AssertErrorResponse(t, w, http.StatusBadGateway, "upstream_error")
	})
}

func TestResetPassword(t *testing.T) {
	t.Run("token from path", func(t *testing.T) {
		var gotToken string
		svc := &handlers.MockAccountService{
			ResetPasswordFunc: func(ctx context.Context, token, password, confirm string) (*services.Session, error) {
				gotToken = token
				return testSession(), nil
			},
		}
		h := handlers.NewAccountHandler(svc, "")
		req := handlers.NewTestRequest(t, http.MethodPut, "/api/v1/password/reset/abc123",
			handlers.ResetPasswordRequest{Password: "Blossom2024!", ConfirmPassword: "Blossom2024!"})
		req = handlers.WithChiRouteContext(req, map[string]string{"token": "abc123"})

		w := httptest.NewRecorder()
		h.ResetPassword(w, req)

		var resp sessionBody
		handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
		assert.Equal(t, "abc123", gotToken)
		assert.Equal(t, "signed.jwt.token", resp.Token)
	})

	t.Run("invalid or expired token share one response", func(t *testing.T) {
		h := handlers.NewAccountHandler(&handlers.MockAccountService{}, "")
		req := handlers.NewTestRequest(t, http.MethodPut, "/api/v1/password/reset/stale",
			handlers.ResetPasswordRequest{Password: "Blossom2024!", ConfirmPassword: "Blossom2024!"})
		req = handlers.WithChiRouteContext(req, map[string]string{"token": "stale"})

		w := httptest.NewRecorder()
		h.ResetPassword(w, req)

		handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
		assert.Contains(t, w.Body.String(), "Password reset token is invalid or has been expired")
	})

	t.Run("passwords differ", func(t *testing.T) {
		svc := &handlers.MockAccountService{
			ResetPasswordFunc: func(ctx context.Context, token, password, confirm string) (*services.Session, error) {
				return nil, models.ErrPasswordMismatch
			},
		}
		h := handlers.NewAccountHandler(svc, "")
		req := handlers.NewTestRequest(t, http.MethodPut, "/api/v1/password/reset/t",
			handlers.ResetPasswordRequest{Password: "Blossom2024!", ConfirmPassword: "Blossom2025!"})
		req = handlers.WithChiRouteContext(req, map[string]string{"token": "t"})

		w := httptest.NewRecorder()
		h.ResetPassword(w, req)

		handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
	})
}

func TestResendVerification_AlwaysGeneric(t *testing.T) {
	for _, err := range []error{nil, models.ErrNotFound, models.ErrMailDelivery} {
		svc := &handlers.MockAccountService{
			ResendVerificationFunc: func(ctx context.Context, email string) error { return err },
		}
		h := handlers.NewAccountHandler(svc, "")
		w := httptest.NewRecorder()
		h.ResendVerification(w, handlers.NewTestRequest(t, http.MethodPost, "/api/v1/verify-email/resend",
			handlers.EmailRequest{Email: "rose@example.com"}))

		handlers.AssertJSONResponse(t, w, http.StatusOK, nil)
	}
}

func TestVerifyEmail(t *testing.T) {
	t.Run("success page", func(t *testing.T) {
		svc := &handlers.MockAccountService{
			VerifyEmailFunc: func(ctx context.Context, token string) (*models.Account, error) {
				return testAccount(), nil
			},
		}
		h := handlers.NewAccountHandler(svc, "https://shop.example.com")
		req := httptest.NewRequest(http.MethodGet, "/api/v1/verify-email/tok", nil)
		req = handlers.WithChiRouteContext(req, map[string]string{"token": "tok"})

		w := httptest.NewRecorder()
		h.VerifyEmail(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, w.Body.String(), "Email verified")
		assert.Contains(t, w.Body.String(), "https://shop.example.com/login")
	})

	t.Run("invalid token page", func(t *testing.T) {
		h := handlers.NewAccountHandler(&handlers.MockAccountService{}, "https://shop.example.com")
		req := httptest.NewRequest(http.MethodGet, "/api/v1/verify-email/bad", nil)
		req = handlers.WithChiRouteContext(req, map[string]string{"token": "bad"})

		w := httptest.NewRecorder()
		h.VerifyEmail(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Verification failed")
	})
}

func TestMe(t *testing.T) {
	t.Run("no session", func(t *testing.T) {
		h := handlers.NewAccountHandler(&handlers.MockAccountService{}, "")
		w := httptest.NewRecorder()
		h.Me(w, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))

		handlers.AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("profile", func(t *testing.T) {
		svc := &handlers.MockAccountService{
			ProfileFunc: func(ctx context.Context, id string) (*models.Account, error) {
				require.Equal(t, "acc-1", id)
				return testAccount(), nil
			},
		}
		h := handlers.NewAccountHandler(svc, "")
		req := handlers.WithAuthContext(httptest.NewRequest(http.MethodGet, "/api/v1/me", nil), "acc-1", models.RoleUser)

		w := httptest.NewRecorder()
		h.Me(w, req)

		var resp struct {
			User struct {
				Email      string `json:"email"`
				IsVerified bool   `json:"isVerified"`
			} `json:"user"`
		}
		handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
		assert.Equal(t, "rose@example.com", resp.User.Email)
		assert.True(t, resp.User.IsVerified)
	})
}

func TestUpdatePassword(t *testing.T) {
	t.Run("old password wrong", func(t *testing.T) {
		h := handlers.NewAccountHandler(&handlers.MockAccountService{}, "")
		req := handlers.NewTestRequest(t, http.MethodPut, "/api/v1/password/update",
			handlers.UpdatePasswordRequest{OldPassword: "nope", Password: "Blossom2025!"})
		req = handlers.WithAuthContext(req, "acc-1", models.RoleUser)

		w := httptest.NewRecorder()
		h.UpdatePassword(w, req)

		handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
		assert.Contains(t, w.Body.String(), "Old password is incorrect")
	})

	t.Run("new session issued", func(t *testing.T) {
		svc := &handlers.MockAccountService{
			UpdatePasswordFunc: func(ctx context.Context, accountID, oldPassword, newPassword string) (*services.Session, error) {
				return testSession(), nil
			},
		}
		h := handlers.NewAccountHandler(svc, "")
		req := handlers.NewTestRequest(t, http.MethodPut, "/api/v1/password/update",
			handlers.UpdatePasswordRequest{OldPassword: "Blossom2024!", Password: "Blossom2025!"})
		req = handlers.WithAuthContext(req, "acc-1", models.RoleUser)

		w := httptest.NewRecorder()
		h.UpdatePassword(w, req)

		var resp sessionBody
		handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
		assert.Equal(t, "signed.jwt.token", resp.Token)
	})
}

func TestUpdateProfile_RejectsNonDataURIAvatar(t *testing.T) {
	h := handlers.NewAccountHandler(&handlers.MockAccountService{}, "")
	req := handlers.NewTestRequest(t, http.MethodPut, "/api/v1/me/update",
		handlers.UpdateProfileRequest{Avatar: "not a data uri"})
	req = handlers.WithAuthContext(req, "acc-1", models.RoleUser)

	w := httptest.NewRecorder()
	h.UpdateProfile(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}
