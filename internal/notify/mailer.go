package notify

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// ErrNoRecipient is returned when an email has no address to go to.
var ErrNoRecipient = errors.New("notify: email has no recipient")

type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

type Email struct {
	From        string       `json:"from,omitempty"`
	To          string       `json:"to"`
	Subject     string       `json:"subject"`
	Body        string       `json:"body"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

func (e Email) validate() error {
	if strings.TrimSpace(e.To) == "" {
		return ErrNoRecipient
	}
	return nil
}

// Mailer hands an email off for delivery.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// LogMailer records outgoing mail in the log instead of delivering it. It is used when no
// broker is configured.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, email Email) error {
	if err := email.validate(); err != nil {
		return err
	}

	names := make([]string, 0, len(email.Attachments))
	for _, a := range email.Attachments {
		names = append(names, a.Filename)
	}

	m.logger.Info("email not delivered, no broker configured",
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
		zap.Strings("attachments", names),
	)
	return nil
}
