package middleware

import (
	"net/http"
	"time"

	"github.com/fleurease/fleurease-api/internal/auth"
	pkghttp "github.com/fleurease/fleurease-api/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultAuthRateLimit covers sign-in, registration and password recovery (10 requests per minute)
func DefaultAuthRateLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 10}
}

// DefaultReportRateLimit bounds report exports per admin (6 per minute)
func DefaultReportRateLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 6}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP.
// Forwarding headers count only from trusted proxies.
func RateLimitByIP(config RateLimitConfig, ip *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, ip), nil
		}),
		httprate.WithLimitHandler(limitExceeded),
	)
}

// RateLimitByAccount limits per authenticated account and falls back to the
// client IP when no session is present.
func RateLimitByAccount(config RateLimitConfig, ip *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if claims := auth.GetUserFromContext(r); claims != nil && claims.UserID != "" {
				return "account:" + claims.UserID, nil
			}
			return pkghttp.ExtractClientIP(r, ip), nil
		}),
		httprate.WithLimitHandler(limitExceeded),
	)
}

func limitExceeded(w http.ResponseWriter, _ *http.Request) {
	pkghttp.WriteTooManyRequests(w, "Too many requests, please try again later")
}
