package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fleurease/fleurease-api/pkg/logger"
	"gopkg.in/gomail.v2"
)

// Dialer is satisfied by *gomail.Dialer
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender sends mail through an SMTP relay
type SMTPSender struct {
	dialer      Dialer
	fromAddress string
	logger      *slog.Logger
}

func NewSMTPSender(host string, port int, username, password, fromAddress string, log *slog.Logger) (*SMTPSender, error) {
	if host == "" || port == 0 || fromAddress == "" {
		return nil, fmt.Errorf("SMTP host, port and sender address must be configured")
	}
	return NewSMTPSenderWithDialer(gomail.NewDialer(host, port, username, password), fromAddress, log), nil
}

func NewSMTPSenderWithDialer(d Dialer, fromAddress string, log *slog.Logger) *SMTPSender {
	return &SMTPSender{dialer: d, fromAddress: fromAddress, logger: log}
}

// Send dials per message. The dial runs in its own goroutine so a cancelled
// context returns promptly even when the relay hangs.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.fromAddress)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.HTML != "" {
		m.SetBody("text/html", msg.HTML)
		if msg.Text != "" {
			m.AddAlternative("text/plain", msg.Text)
		}
	} else {
		m.SetBody("text/plain", msg.Text)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case <-ctx.Done():
		s.logger.Warn("email send cancelled",
			slog.String("email", logger.SanitizedEmail(msg.To)),
			slog.Any("error", ctx.Err()))
		return fmt.Errorf("email sending cancelled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			s.logger.Error("failed to send email via SMTP",
				slog.String("email", logger.SanitizedEmail(msg.To)),
				slog.String("subject", msg.Subject),
				slog.Any("error", err))
			return fmt.Errorf("failed to send email: %w", err)
		}
	}

	s.logger.Info("email sent",
		slog.String("email", logger.SanitizedEmail(msg.To)),
		slog.String("subject", msg.Subject))
	return nil
}
