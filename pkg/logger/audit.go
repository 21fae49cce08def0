package logger

import (
	"context"
	"log/slog"
	"time"
)

// Account actions recorded in the audit trail.
const (
	ActionRegister        = "register"
	ActionRegisterRevert  = "register_rollback"
	ActionVerifyEmail     = "verify_email"
	ActionResendVerify    = "resend_verification"
	ActionForgotPassword  = "forgot_password"
	ActionResetPassword   = "reset_password"
	ActionUpdatePassword  = "update_password"
	ActionLogin           = "login"
	ActionSocialLogin     = "social_login"
	ActionSuspend         = "suspend"
	ActionUnsuspend       = "unsuspend"
	ActionDelete          = "delete"
	ActionOrphanCleanup   = "orphan_cleanup"
	ActionStaleSweep      = "stale_account_sweep"
	ActionReportGenerated = "report_generated"
)

// AuditEvent describes one account action
type AuditEvent struct {
	Action    string
	AccountID string
	Email     string // masked before it is written
	IPAddress string
	Success   bool
	Reason    string
	Metadata  map[string]string
}

// AuditLogger writes audit records through slog
type AuditLogger struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger, now: time.Now}
}

// Log writes the event at info level on success and warn level otherwise.
func (al *AuditLogger) Log(ctx context.Context, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "account"),
		slog.String("action", event.Action),
		slog.Bool("success", event.Success),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}

	if event.AccountID != "" {
		attrs = append(attrs, slog.String("user_id", event.AccountID))
	}
	if event.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(event.Email)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}

// Success is shorthand for a successful action on an account.
func (al *AuditLogger) Success(ctx context.Context, action, accountID string) {
	al.Log(ctx, AuditEvent{Action: action, AccountID: accountID, Success: true})
}

// Failure is shorthand for a failed action on an account.
func (al *AuditLogger) Failure(ctx context.Context, action, accountID, reason string) {
	al.Log(ctx, AuditEvent{Action: action, AccountID: accountID, Reason: reason})
}
