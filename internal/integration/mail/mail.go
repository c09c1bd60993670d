// Package mail delivers rendered email through a configurable transport.
package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Transport names accepted by New.
const (
	TransportSMTP = "smtp"
	TransportSES  = "ses"
	TransportLog  = "log"
)

// ErrNoRecipients is returned when a message has no deliverable address.
var ErrNoRecipients = errors.New("mail: message has no recipients")

// Recipient is one addressee.
type Recipient struct {
	UID   string
	Name  string
	Email string
}

// Message is an outbound HTML email.
type Message struct {
	To      []Recipient
	Subject string
	Body    string
}

// Addresses returns the non-empty recipient addresses.
func (m Message) Addresses() []string {
	out := make([]string, 0, len(m.To))
	for _, r := range m.To {
		if strings.TrimSpace(r.Email) == "" {
			continue
		}
		out = append(out, r.Email)
	}
	return out
}

// Transport delivers a message.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// LogTransport writes messages to the logger instead of sending them.
type LogTransport struct {
	logger *zap.Logger
}

// NewLogTransport constructs a LogTransport.
func NewLogTransport(logger *zap.Logger) *LogTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogTransport{logger: logger}
}

// Send logs the message.
func (t *LogTransport) Send(ctx context.Context, msg Message) error {
	to := msg.Addresses()
	if len(to) == 0 {
		return ErrNoRecipients
	}
	t.logger.Info("email not sent, log transport",
		zap.Strings("to", to),
		zap.String("subject", msg.Subject),
		zap.Int("body_length", len(msg.Body)),
	)
	return nil
}

// Options configures New.
type Options struct {
	Transport string
	From      string
	SMTP      SMTPOptions
	SESRegion string
	Logger    *zap.Logger
}

// New builds the transport named in opts.
func New(ctx context.Context, opts Options) (Transport, error) {
	switch strings.ToLower(opts.Transport) {
	case TransportSMTP:
		opts.SMTP.From = opts.From
		return NewSMTPTransport(opts.SMTP), nil
	case TransportSES:
		return NewSESTransport(ctx, opts.SESRegion, opts.From)
	case TransportLog, "":
		return NewLogTransport(opts.Logger), nil
	default:
		return nil, fmt.Errorf("mail: unknown transport %q", opts.Transport)
	}
}
