package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursecap-api/internal/integration/mail"
	"github.com/noah-isme/coursecap-api/internal/models"
	appErrors "github.com/noah-isme/coursecap-api/pkg/errors"
)

type stubTransport struct {
	messages []mail.Message
	err      error
}

func (s *stubTransport) Send(ctx context.Context, msg mail.Message) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, msg)
	return nil
}

type stubSentRepo struct {
	records []*models.SentEmail
	err     error
}

func (s *stubSentRepo) Create(ctx context.Context, sent *models.SentEmail) error {
	if s.err != nil {
		return s.err
	}
	sent.ID = len(s.records) + 1
	s.records = append(s.records, sent)
	return nil
}

func TestMailerSendRecordsSentEmail(t *testing.T) {
	transport := &stubTransport{}
	sent := &stubSentRepo{}
	metrics := NewMetricsService()
	mailer := NewMailer(transport, sent, metrics, nil, "")

	templateType := models.TemplateInvitation
	section := 26094
	err := mailer.Send(context.Background(), OutboundEmail{
		Recipients:   []models.Recipient{{UID: "111", Name: "Ada", Email: "ada@example.edu"}},
		Subject:      "Invitation",
		Body:         "<p>hi</p>",
		SectionID:    &section,
		TemplateType: &templateType,
	})
	require.NoError(t, err)
	require.Len(t, transport.messages, 1)
	assert.Equal(t, "ada@example.edu", transport.messages[0].To[0].Email)
	require.Len(t, sent.records, 1)
	assert.Equal(t, []string{"111"}, []string(sent.records[0].RecipientUIDs))
	assert.Equal(t, uint64(1), metrics.Snapshot().EmailsSent)
}

func TestMailerRedirects(t *testing.T) {
	transport := &stubTransport{}
	mailer := NewMailer(transport, &stubSentRepo{}, nil, nil, "qa@example.edu")

	err := mailer.Send(context.Background(), OutboundEmail{
		Recipients: []models.Recipient{{UID: "111", Name: "Ada", Email: "ada@example.edu"}},
		Subject:    "s",
		Body:       "<p>body</p>",
	})
	require.NoError(t, err)
	require.Len(t, transport.messages, 1)
	msg := transport.messages[0]
	require.Len(t, msg.To, 1)
	assert.Equal(t, "qa@example.edu", msg.To[0].Email)
	assert.Contains(t, msg.Body, "ada@example.edu")
	assert.Contains(t, msg.Body, "<p>body</p>")
}

func TestMailerTransportFailure(t *testing.T) {
	sent := &stubSentRepo{}
	metrics := NewMetricsService()
	mailer := NewMailer(&stubTransport{err: errors.New("connection refused")}, sent, metrics, nil, "")

	err := mailer.Send(context.Background(), OutboundEmail{Recipients: []models.Recipient{{UID: "1", Email: "x@example.edu"}}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrExternalService.Code, appErrors.FromError(err).Code)
	assert.Empty(t, sent.records)
	assert.Equal(t, uint64(1), metrics.Snapshot().EmailFailures)
}

func TestMailerSentLogFailureIsNotFatal(t *testing.T) {
	mailer := NewMailer(&stubTransport{}, &stubSentRepo{err: errors.New("db down")}, nil, nil, "")
	err := mailer.Send(context.Background(), OutboundEmail{Recipients: []models.Recipient{{UID: "1", Email: "x@example.edu"}}})
	assert.NoError(t, err)
}

func TestMailerRequiresRecipients(t *testing.T) {
	mailer := NewMailer(&stubTransport{}, nil, nil, nil, "")
	err := mailer.Send(context.Background(), OutboundEmail{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
