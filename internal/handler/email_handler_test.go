package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursecap-api/internal/dto"
	"github.com/noah-isme/coursecap-api/internal/middleware"
	"github.com/noah-isme/coursecap-api/internal/models"
	appErrors "github.com/noah-isme/coursecap-api/pkg/errors"
)

type emailTemplateServiceMock struct {
	templates map[int]models.EmailTemplate
	deleted   []int
	testedBy  string
}

func (m *emailTemplateServiceMock) List(ctx context.Context) ([]models.EmailTemplate, error) {
	out := make([]models.EmailTemplate, 0, len(m.templates))
	for _, tpl := range m.templates {
		out = append(out, tpl)
	}
	return out, nil
}

func (m *emailTemplateServiceMock) ListNames(ctx context.Context) ([]models.EmailTemplateName, error) {
	return []models.EmailTemplateName{}, nil
}

func (m *emailTemplateServiceMock) Get(ctx context.Context, id int) (*models.EmailTemplate, error) {
	tpl, ok := m.templates[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "No such email template")
	}
	return &tpl, nil
}

func (m *emailTemplateServiceMock) Create(ctx context.Context, req dto.EmailTemplateRequest) (*models.EmailTemplate, error) {
	if req.Name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Required parameters are missing.")
	}
	return &models.EmailTemplate{ID: 9, Name: req.Name, TemplateType: req.TemplateType}, nil
}

func (m *emailTemplateServiceMock) Update(ctx context.Context, req dto.EmailTemplateRequest) (*models.EmailTemplate, error) {
	return &models.EmailTemplate{ID: req.TemplateID, Name: req.Name}, nil
}

func (m *emailTemplateServiceMock) Delete(ctx context.Context, id int) error {
	if _, ok := m.templates[id]; !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "No such email template")
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *emailTemplateServiceMock) Codes() []string {
	return []string{"course.name", "user.name"}
}

func (m *emailTemplateServiceMock) SendTest(ctx context.Context, actor *models.JWTClaims, id int) (string, error) {
	m.testedBy = actor.UID
	return "Email sent to " + actor.Email, nil
}

func (m *emailTemplateServiceMock) SentTo(ctx context.Context, uid string) ([]models.SentEmail, error) {
	return []models.SentEmail{{ID: 1, RecipientUIDs: []string{uid}}}, nil
}

type emailQueueServiceMock struct {
	req dto.QueueEmailsRequest
}

func (m *emailQueueServiceMock) QueueBatch(ctx context.Context, req dto.QueueEmailsRequest) (*dto.QueueEmailsResult, error) {
	m.req = req
	return &dto.QueueEmailsResult{NewlyQueued: len(req.SectionIDs), Message: "queued"}, nil
}

func (m *emailQueueServiceMock) ListQueued(ctx context.Context, termID int) ([]models.QueuedEmail, error) {
	return []models.QueuedEmail{{ID: 1, TermID: termID}}, nil
}

func newEmailHandler() (*EmailHandler, *emailTemplateServiceMock, *emailQueueServiceMock) {
	templates := &emailTemplateServiceMock{templates: map[int]models.EmailTemplate{
		3: {ID: 3, Name: "Invite", TemplateType: models.TemplateInvitation},
	}}
	queue := &emailQueueServiceMock{}
	return NewEmailHandler(templates, queue), templates, queue
}

func TestEmailHandlerGetTemplate(t *testing.T) {
	handler, _, _ := newEmailHandler()

	w, c := newTestContext(http.MethodGet, "/api/email/template/3", nil)
	c.Params = gin.Params{{Key: "templateId", Value: "3"}}
	handler.GetTemplate(c)
	require.Equal(t, http.StatusOK, w.Code)

	w, c = newTestContext(http.MethodGet, "/api/email/template/4", nil)
	c.Params = gin.Params{{Key: "templateId", Value: "4"}}
	handler.GetTemplate(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, c = newTestContext(http.MethodGet, "/api/email/template/abc", nil)
	c.Params = gin.Params{{Key: "templateId", Value: "abc"}}
	handler.GetTemplate(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEmailHandlerCreateAndDelete(t *testing.T) {
	handler, templates, _ := newEmailHandler()

	body, _ := json.Marshal(dto.EmailTemplateRequest{TemplateType: models.TemplateInvitation, Name: "Invite v2", SubjectLine: "s", Message: "m"})
	w, c := newTestContext(http.MethodPost, "/api/email/template/create", body)
	handler.CreateTemplate(c)
	require.Equal(t, http.StatusCreated, w.Code)

	w, c = newTestContext(http.MethodDelete, "/api/email/template/delete/3", nil)
	c.Params = gin.Params{{Key: "templateId", Value: "3"}}
	handler.DeleteTemplate(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []int{3}, templates.deleted)
}

func TestEmailHandlerTestTemplateUsesCurrentUser(t *testing.T) {
	handler, templates, _ := newEmailHandler()
	w, c := newTestContext(http.MethodGet, "/api/email/template/test/3", nil)
	c.Params = gin.Params{{Key: "templateId", Value: "3"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UID: "1", Email: "admin@example.edu", Role: models.RoleAdmin})

	handler.TestTemplate(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", templates.testedBy)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "Email sent to admin@example.edu", data["message"])
}

func TestEmailHandlerQueue(t *testing.T) {
	handler, _, queue := newEmailHandler()
	body, _ := json.Marshal(dto.QueueEmailsRequest{TermID: 2202, SectionIDs: []int{101, 102}, TemplateType: models.TemplateInvitation})
	w, c := newTestContext(http.MethodPost, "/api/emails/queue", body)

	handler.Queue(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int{101, 102}, queue.req.SectionIDs)

	w, c = newTestContext(http.MethodPost, "/api/emails/queue", []byte(`nope`))
	handler.Queue(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEmailHandlerCodesAndSent(t *testing.T) {
	handler, _, _ := newEmailHandler()

	w, c := newTestContext(http.MethodGet, "/api/email/template/codes", nil)
	handler.TemplateCodes(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeEnvelope(t, w)["data"], 2)

	w, c = newTestContext(http.MethodGet, "/api/emails/sent/7", nil)
	c.Params = gin.Params{{Key: "uid", Value: "7"}}
	handler.SentTo(c)
	assert.Equal(t, http.StatusOK, w.Code)
}
