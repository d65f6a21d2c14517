// Package mailer hands rendered emails to an outbound transport.
package mailer

import (
	"context"
	"errors"
	"strings"
)

// ErrPermanent marks a rejection that retrying will not fix, such as an invalid recipient.
var ErrPermanent = errors.New("permanent delivery failure")

// Message is a rendered email addressed to a single recipient.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Validate checks the message carries a recipient and content.
func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return errors.New("recipient is required")
	}
	if strings.TrimSpace(m.Text) == "" && strings.TrimSpace(m.HTML) == "" {
		return errors.New("message content is empty")
	}
	return nil
}

// Sender delivers a message. Implementations must honour ctx cancellation.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// IsPermanent reports whether err should not be retried.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
