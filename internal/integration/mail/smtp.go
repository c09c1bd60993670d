package mail

import (
	"context"

	"gopkg.in/gomail.v2"
)

// SMTPOptions configures the relay.
type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPTransport sends through an SMTP relay.
type SMTPTransport struct {
	dialer smtpDialer
	from   string
}

// NewSMTPTransport constructs an SMTPTransport.
func NewSMTPTransport(opts SMTPOptions) *SMTPTransport {
	return &SMTPTransport{
		dialer: gomail.NewDialer(opts.Host, opts.Port, opts.Username, opts.Password),
		from:   opts.From,
	}
}

// Send delivers one message addressed to every recipient.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	m, err := t.build(msg)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.dialer.DialAndSend(m)
}

func (t *SMTPTransport) build(msg Message) (*gomail.Message, error) {
	if len(msg.Addresses()) == 0 {
		return nil, ErrNoRecipients
	}
	m := gomail.NewMessage()
	m.SetHeader("From", t.from)
	to := make([]string, 0, len(msg.To))
	for _, r := range msg.To {
		if r.Email == "" {
			continue
		}
		to = append(to, m.FormatAddress(r.Email, r.Name))
	}
	m.SetHeader("To", to...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.Body)
	return m, nil
}
