package routes

import (
	"github.com/fleurease/fleurease-api/internal/auth"
	"github.com/fleurease/fleurease-api/internal/handlers"
	"github.com/fleurease/fleurease-api/internal/middleware"
	"github.com/fleurease/fleurease-api/internal/models"
	pkghttp "github.com/fleurease/fleurease-api/pkg/http"
	"github.com/go-chi/chi/v5"
)

// Limits configures per-client throttling of the sensitive endpoints
type Limits struct {
	Auth   middleware.RateLimitConfig
	Report middleware.RateLimitConfig
	IP     *pkghttp.IPConfig
}

// DefaultLimits returns the stock limits with no trusted proxies
func DefaultLimits() Limits {
	return Limits{
		Auth:   middleware.DefaultAuthRateLimit(),
		Report: middleware.DefaultReportRateLimit(),
	}
}

// RegisterRoutes registers all application routes under router, which is
// normally mounted at /api/v1.
func RegisterRoutes(
	router chi.Router,
	accountHandler *handlers.AccountHandler,
	userHandler *handlers.UserHandler,
	adminHandler *handlers.AdminHandler,
	tokenManager *auth.TokenManager,
	accounts auth.AccountFetcher,
	limits Limits,
) {
	// Public routes - no authentication required
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(limits.Auth, limits.IP))
		r.Post("/register", accountHandler.Register)
		r.Post("/login", accountHandler.Login)
		r.Post("/google-login", accountHandler.GoogleLogin)
		r.Post("/facebook-login", accountHandler.FacebookLogin)
		r.Post("/password/forgot", accountHandler.ForgotPassword)
		r.Put("/password/reset/{token}", accountHandler.ResetPassword)
		r.Post("/verify-email/resend", accountHandler.ResendVerification)
	})
	router.Get("/verify-email/{token}", accountHandler.VerifyEmail)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(tokenManager))

		r.Get("/me", accountHandler.Me)
		r.Put("/me/update", accountHandler.UpdateProfile)
		r.Put("/password/update", accountHandler.UpdatePassword)

		r.Get("/wishlist", userHandler.Wishlist)
		r.Post("/wishlist/{productId}", userHandler.AddToWishlist)
		r.Delete("/wishlist/{productId}", userHandler.RemoveFromWishlist)

		// Admin-only routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireRole(accounts, models.RoleAdmin))

			r.Get("/users", userHandler.ListUsers)
			r.Get("/users/{id}", userHandler.GetUser)
			r.Put("/users/{id}", userHandler.UpdateUser)
			r.Delete("/users/{id}", userHandler.DeleteUser)
			r.Put("/users/{id}/suspend", userHandler.SuspendUser)
			r.Put("/users/{id}/unsuspend", userHandler.UnsuspendUser)

			r.Get("/products", adminHandler.Products)
			r.Get("/orders", adminHandler.Orders)
			r.Get("/product-sales", adminHandler.ProductSales)
			r.Get("/sales-per-month", adminHandler.SalesPerMonth)
			r.Get("/dashboard", adminHandler.Dashboard)
			r.With(middleware.RateLimitByAccount(limits.Report, limits.IP)).
				Get("/dashboard/report", adminHandler.Report)
		})
	})
}
