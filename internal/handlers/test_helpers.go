package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fleurease/fleurease-api/internal/auth"
	"github.com/fleurease/fleurease-api/internal/dashboard"
	"github.com/fleurease/fleurease-api/internal/models"
	"github.com/fleurease/fleurease-api/internal/report"
	"github.com/fleurease/fleurease-api/internal/services"
	pkghttp "github.com/fleurease/fleurease-api/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds user claims to request context for testing authenticated endpoints
func WithAuthContext(req *http.Request, userID, role string) *http.Request {
	claims := &models.TokenClaims{
		UserID: userID,
		Role:   role,
		Type:   "access",
	}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.False(t, resp.Success)
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// WithChiRouteContext adds chi URL parameters to request context for testing
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// MockAccountService implements AccountServiceInterface for testing
type MockAccountService struct {
	RegisterFunc           func(ctx context.Context, in services.RegisterInput) (*models.Account, error)
	VerifyEmailFunc        func(ctx context.Context, token string) (*models.Account, error)
	ResendVerificationFunc func(ctx context.Context, email string) error
	ForgotPasswordFunc     func(ctx context.Context, email string) error
	ResetPasswordFunc      func(ctx context.Context, token, password, confirm string) (*services.Session, error)
	LoginFunc              func(ctx context.Context, email, password string) (*services.Session, error)
	SocialLoginFunc        func(ctx context.Context, provider string, profile services.SocialProfile) (*services.Session, error)
	UpdatePasswordFunc     func(ctx context.Context, accountID, oldPassword, newPassword string) (*services.Session, error)
	ProfileFunc            func(ctx context.Context, id string) (*models.Account, error)
	UpdateProfileFunc      func(ctx context.Context, id string, in services.ProfileInput) (*models.Account, error)
}

func (m *MockAccountService) Register(ctx context.Context, in services.RegisterInput) (*models.Account, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrConflict
	}
	return m.RegisterFunc(ctx, in)
}

func (m *MockAccountService) VerifyEmail(ctx context.Context, token string) (*models.Account, error) {
	if m.VerifyEmailFunc == nil {
		return nil, models.ErrInvalidToken
	}
	return m.VerifyEmailFunc(ctx, token)
}

func (m *MockAccountService) ResendVerification(ctx context.Context, email string) error {
	if m.ResendVerificationFunc == nil {
		return nil
	}
	return m.ResendVerificationFunc(ctx, email)
}

func (m *MockAccountService) ForgotPassword(ctx context.Context, email string) error {
	if m.ForgotPasswordFunc == nil {
		return nil
	}
	return m.ForgotPasswordFunc(ctx, email)
}

func (m *MockAccountService) ResetPassword(ctx context.Context, token, password, confirm string) (*services.Session, error) {
	if m.ResetPasswordFunc == nil {
		return nil, models.ErrInvalidToken
	}
	return m.ResetPasswordFunc(ctx, token, password, confirm)
}

func (m *MockAccountService) Login(ctx context.Context, email, password string) (*services.Session, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, email, password)
}

func (m *MockAccountService) SocialLogin(ctx context.Context, provider string, profile services.SocialProfile) (*services.Session, error) {
	if m.SocialLoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.SocialLoginFunc(ctx, provider, profile)
}

func (m *MockAccountService) UpdatePassword(ctx context.Context, accountID, oldPassword, newPassword string) (*services.Session, error) {
	if m.UpdatePasswordFunc == nil {
		return nil, models.ErrIncorrectPassword
	}
	return m.UpdatePasswordFunc(ctx, accountID, oldPassword, newPassword)
}

func (m *MockAccountService) Profile(ctx context.Context, id string) (*models.Account, error) {
	if m.ProfileFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.ProfileFunc(ctx, id)
}

func (m *MockAccountService) UpdateProfile(ctx context.Context, id string, in services.ProfileInput) (*models.Account, error) {
	if m.UpdateProfileFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateProfileFunc(ctx, id, in)
}

// MockUserService implements UserService for testing
type MockUserService struct {
	ListUsersFunc          func(ctx context.Context) ([]*models.Account, error)
	GetUserFunc            func(ctx context.Context, id string) (*models.Account, error)
	UpdateUserFunc         func(ctx context.Context, id string, u services.UserUpdate) (*models.Account, error)
	DeleteUserFunc         func(ctx context.Context, actorID, id string) error
	SuspendUserFunc        func(ctx context.Context, actorID, id, reason string) (*models.Account, error)
	UnsuspendUserFunc      func(ctx context.Context, actorID, id string) (*models.Account, error)
	AddToWishlistFunc      func(ctx context.Context, accountID, productID string) error
	RemoveFromWishlistFunc func(ctx context.Context, accountID, productID string) error
	WishlistFunc           func(ctx context.Context, accountID string) ([]models.Product, error)
}

func (m *MockUserService) ListUsers(ctx context.Context) ([]*models.Account, error) {
	if m.ListUsersFunc == nil {
		return []*models.Account{}, nil
	}
	return m.ListUsersFunc(ctx)
}

func (m *MockUserService) GetUser(ctx context.Context, id string) (*models.Account, error) {
	if m.GetUserFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetUserFunc(ctx, id)
}

func (m *MockUserService) UpdateUser(ctx context.Context, id string, u services.UserUpdate) (*models.Account, error) {
	if m.UpdateUserFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateUserFunc(ctx, id, u)
}

func (m *MockUserService) DeleteUser(ctx context.Context, actorID, id string) error {
	if m.DeleteUserFunc == nil {
		return nil
	}
	return m.DeleteUserFunc(ctx, actorID, id)
}

func (m *MockUserService) SuspendUser(ctx context.Context, actorID, id, reason string) (*models.Account, error) {
	if m.SuspendUserFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.SuspendUserFunc(ctx, actorID, id, reason)
}

func (m *MockUserService) UnsuspendUser(ctx context.Context, actorID, id string) (*models.Account, error) {
	if m.UnsuspendUserFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UnsuspendUserFunc(ctx, actorID, id)
}

func (m *MockUserService) AddToWishlist(ctx context.Context, accountID, productID string) error {
	if m.AddToWishlistFunc == nil {
		return nil
	}
	return m.AddToWishlistFunc(ctx, accountID, productID)
}

func (m *MockUserService) RemoveFromWishlist(ctx context.Context, accountID, productID string) error {
	if m.RemoveFromWishlistFunc == nil {
		return nil
	}
	return m.RemoveFromWishlistFunc(ctx, accountID, productID)
}

func (m *MockUserService) Wishlist(ctx context.Context, accountID string) ([]models.Product, error) {
	if m.WishlistFunc == nil {
		return []models.Product{}, nil
	}
	return m.WishlistFunc(ctx, accountID)
}

// MockDashboardService implements DashboardServiceInterface for testing
type MockDashboardService struct {
	ProductsFunc      func(ctx context.Context) ([]models.Product, error)
	OrdersFunc        func(ctx context.Context) ([]models.Order, float64, error)
	ProductSalesFunc  func(ctx context.Context) ([]models.ProductSalesShare, error)
	SalesPerMonthFunc func(ctx context.Context) ([]models.MonthlySales, error)
	ViewFunc          func(ctx context.Context, start, end *time.Time) (dashboard.Snapshot, dashboard.FilteredView, error)
	ReportFunc        func(ctx context.Context, start, end *time.Time, sections report.Sections, format string) (*services.ReportFile, error)
}

func (m *MockDashboardService) Products(ctx context.Context) ([]models.Product, error) {
	if m.ProductsFunc == nil {
		return []models.Product{}, nil
	}
	return m.ProductsFunc(ctx)
}

func (m *MockDashboardService) Orders(ctx context.Context) ([]models.Order, float64, error) {
	if m.OrdersFunc == nil {
		return []models.Order{}, 0, nil
	}
	return m.OrdersFunc(ctx)
}

func (m *MockDashboardService) ProductSales(ctx context.Context) ([]models.ProductSalesShare, error) {
	if m.ProductSalesFunc == nil {
		return []models.ProductSalesShare{}, nil
	}
	return m.ProductSalesFunc(ctx)
}

func (m *MockDashboardService) SalesPerMonth(ctx context.Context) ([]models.MonthlySales, error) {
	if m.SalesPerMonthFunc == nil {
		return []models.MonthlySales{}, nil
	}
	return m.SalesPerMonthFunc(ctx)
}

func (m *MockDashboardService) View(ctx context.Context, start, end *time.Time) (dashboard.Snapshot, dashboard.FilteredView, error) {
	if m.ViewFunc == nil {
		snap := dashboard.Normalize(dashboard.RawSnapshot{})
		return snap, dashboard.ApplyDateRange(snap, start, end), nil
	}
	return m.ViewFunc(ctx, start, end)
}

func (m *MockDashboardService) Report(ctx context.Context, start, end *time.Time, sections report.Sections, format string) (*services.ReportFile, error) {
	if m.ReportFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.ReportFunc(ctx, start, end, sections, format)
}
