package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/coursecap-api/internal/integration/mail"
	"github.com/noah-isme/coursecap-api/internal/models"
	appErrors "github.com/noah-isme/coursecap-api/pkg/errors"
)

type sentEmailWriter interface {
	Create(ctx context.Context, sent *models.SentEmail) error
}

// OutboundEmail is a rendered message plus the context it is logged under.
type OutboundEmail struct {
	Recipients   []models.Recipient
	Subject      string
	Body         string
	SectionID    *int
	TemplateType *models.TemplateType
	TermID       *int
}

// Mailer sends rendered email and appends each delivery to the sent log.
type Mailer struct {
	transport  mail.Transport
	sent       sentEmailWriter
	metrics    *MetricsService
	logger     *zap.Logger
	redirectTo string
}

// NewMailer constructs a Mailer. A non-empty redirectTo reroutes every message to that address.
func NewMailer(transport mail.Transport, sent sentEmailWriter, metrics *MetricsService, logger *zap.Logger, redirectTo string) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{transport: transport, sent: sent, metrics: metrics, logger: logger, redirectTo: redirectTo}
}

// Send delivers the email. Transport failures surface as external service errors;
// failing to append to the sent log is only logged because the mail already left.
func (m *Mailer) Send(ctx context.Context, email OutboundEmail) error {
	if len(email.Recipients) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "email has no recipients")
	}
	templateType := ""
	if email.TemplateType != nil {
		templateType = string(*email.TemplateType)
	}

	msg := m.message(email)
	if err := m.transport.Send(ctx, msg); err != nil {
		m.metrics.RecordEmail(templateType, false)
		m.logger.Error("email delivery failed",
			zap.String("template_type", templateType),
			zap.Strings("recipients", recipientUIDs(email.Recipients)),
			zap.Error(err),
		)
		return appErrors.Wrap(err, appErrors.ErrExternalService.Code, appErrors.ErrExternalService.Status, "failed to send email")
	}
	m.metrics.RecordEmail(templateType, true)

	if m.sent != nil {
		record := &models.SentEmail{
			RecipientUIDs: pq.StringArray(recipientUIDs(email.Recipients)),
			SectionID:     email.SectionID,
			TemplateType:  email.TemplateType,
			TermID:        email.TermID,
			SubjectLine:   email.Subject,
			Message:       email.Body,
		}
		if err := m.sent.Create(ctx, record); err != nil {
			m.logger.Warn("failed to record sent email", zap.String("template_type", templateType), zap.Error(err))
		}
	}
	return nil
}

func (m *Mailer) message(email OutboundEmail) mail.Message {
	msg := mail.Message{Subject: email.Subject, Body: email.Body}
	if m.redirectTo == "" {
		for _, r := range email.Recipients {
			msg.To = append(msg.To, mail.Recipient{UID: r.UID, Name: r.Name, Email: r.Email})
		}
		return msg
	}

	intended := make([]string, 0, len(email.Recipients))
	for _, r := range email.Recipients {
		intended = append(intended, fmt.Sprintf("%s (%s, %s)", r.Name, r.UID, r.Email))
	}
	msg.To = []mail.Recipient{{Email: m.redirectTo}}
	msg.Body = "<p>Intended recipients: " + html.EscapeString(strings.Join(intended, "; ")) + "</p><hr>" + email.Body
	return msg
}

func recipientUIDs(recipients []models.Recipient) []string {
	uids := make([]string, 0, len(recipients))
	for _, r := range recipients {
		uids = append(uids, r.UID)
	}
	return uids
}
