package logger

import (
	"net/url"
	"strings"
)

// SanitizedEmail masks an email address for logging ("r****@*******.com").
func SanitizedEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "[invalid-email]"
	}

	local, domain := email[:at], email[at+1:]
	if len(local) > 1 {
		local = local[:1] + strings.Repeat("*", len(local)-1)
	}

	labels := strings.Split(domain, ".")
	for i := 0; i < len(labels)-1; i++ {
		labels[i] = strings.Repeat("*", len(labels[i]))
	}

	return local + "@" + strings.Join(labels, ".")
}

var sensitiveParams = []string{"token", "password", "secret", "email", "auth", "key"}

// SanitizeQueryString reports whether the query carries a parameter that must not be logged.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return true
	}
	for name := range values {
		lower := strings.ToLower(name)
		for _, s := range sensitiveParams {
			if strings.Contains(lower, s) {
				return true
			}
		}
	}
	return false
}

// RedactPath hides the secret segment of emailed-link paths such as
// /api/v1/verify-email/<token> and /api/v1/password/reset/<token>.
func RedactPath(path string) string {
	for _, prefix := range []string{"/api/v1/verify-email/", "/api/v1/password/reset/"} {
		if strings.HasPrefix(path, prefix) && len(path) > len(prefix) {
			rest := path[len(prefix):]
			if rest == "resend" {
				return path
			}
			return prefix + "[REDACTED]"
		}
	}
	return path
}
