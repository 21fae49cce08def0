package mail

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// Notifier composes account emails and hands them to a Sender.
type Notifier struct {
	sender          Sender
	apiBaseURL      string
	frontendBaseURL string
}

func NewNotifier(sender Sender, apiBaseURL, frontendBaseURL string) *Notifier {
	return &Notifier{sender: sender, apiBaseURL: apiBaseURL, frontendBaseURL: frontendBaseURL}
}

// VerificationLink is where an emailed verification token is redeemed.
func (n *Notifier) VerificationLink(token string) string {
	return n.apiBaseURL + "/api/v1/verify-email/" + url.PathEscape(token)
}

// ResetLink is the storefront page that accepts a new password for token.
func (n *Notifier) ResetLink(token string) string {
	return n.frontendBaseURL + "/password/reset/" + url.PathEscape(token)
}

func (n *Notifier) SendVerification(ctx context.Context, to, name, token string, expiresAt time.Time) error {
	msg, err := render(to, "FleurEase Email Verification", content{
		Heading: "Verify your email address",
		Name:    name,
		Paragraphs: []string{
			"Thank you for registering with FleurEase. Please confirm your email address to activate your account.",
			fmt.Sprintf("This link expires %s.", expiresAt.UTC().Format("Jan 2, 2006 at 15:04 MST")),
		},
		Link:      n.VerificationLink(token),
		LinkLabel: "Verify Email",
	})
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, msg)
}

func (n *Notifier) SendPasswordReset(ctx context.Context, to, name, token string, expiresAt time.Time) error {
	msg, err := render(to, "FleurEase Password Recovery", content{
		Heading: "Reset your password",
		Name:    name,
		Paragraphs: []string{
			"We received a request to reset the password for your FleurEase account.",
			fmt.Sprintf("The link is valid until %s. If you did not request it, ignore this email.",
				expiresAt.UTC().Format("15:04 MST on Jan 2, 2006")),
		},
		Link:      n.ResetLink(token),
		LinkLabel: "Reset Password",
	})
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, msg)
}

func (n *Notifier) SendSuspended(ctx context.Context, to, name, reason string) error {
	paragraphs := []string{"Your FleurEase account has been suspended."}
	if reason != "" {
		paragraphs = append(paragraphs, "Reason: "+reason)
	}
	paragraphs = append(paragraphs, "Please contact support if you believe this is a mistake.")

	msg, err := render(to, "Your FleurEase account has been suspended", content{
		Heading:    "Account suspended",
		Name:       name,
		Paragraphs: paragraphs,
	})
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, msg)
}

func (n *Notifier) SendUnsuspended(ctx context.Context, to, name string) error {
	msg, err := render(to, "Your FleurEase account has been restored", content{
		Heading:    "Account restored",
		Name:       name,
		Paragraphs: []string{"Your FleurEase account is active again. Welcome back!"},
	})
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, msg)
}
