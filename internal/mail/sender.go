// Package mail delivers account notifications through SES or SMTP.
package mail

import (
	"context"
	"errors"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a message or reports why it could not.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var ErrNoRecipient = errors.New("mail: message has no recipient")

func (m Message) validate() error {
	if m.To == "" {
		return ErrNoRecipient
	}
	if m.HTML == "" && m.Text == "" {
		return errors.New("mail: message has no body")
	}
	return nil
}
