package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursecap-api/internal/dto"
	"github.com/noah-isme/coursecap-api/internal/models"
	appErrors "github.com/noah-isme/coursecap-api/pkg/errors"
)

type memTemplates struct {
	rows map[int]*models.EmailTemplate
}

func (m *memTemplates) Create(ctx context.Context, tpl *models.EmailTemplate) error {
	if m.rows == nil {
		m.rows = make(map[int]*models.EmailTemplate)
	}
	tpl.ID = len(m.rows) + 1
	tpl.CreatedAt = time.Now()
	tpl.UpdatedAt = tpl.CreatedAt
	copy := *tpl
	m.rows[tpl.ID] = &copy
	return nil
}

func (m *memTemplates) Update(ctx context.Context, tpl *models.EmailTemplate) error {
	if _, ok := m.rows[tpl.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *tpl
	m.rows[tpl.ID] = &copy
	return nil
}

func (m *memTemplates) FindByID(ctx context.Context, id int) (*models.EmailTemplate, error) {
	tpl, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return tpl, nil
}

func (m *memTemplates) List(ctx context.Context) ([]models.EmailTemplate, error) {
	var out []models.EmailTemplate
	for _, tpl := range m.rows {
		out = append(out, *tpl)
	}
	return out, nil
}

func (m *memTemplates) ListNames(ctx context.Context) ([]models.EmailTemplateName, error) {
	var out []models.EmailTemplateName
	for _, tpl := range m.rows {
		out = append(out, models.EmailTemplateName{ID: tpl.ID, Name: tpl.Name, TemplateType: tpl.TemplateType})
	}
	return out, nil
}

func (m *memTemplates) Delete(ctx context.Context, id int) (bool, error) {
	if _, ok := m.rows[id]; !ok {
		return false, nil
	}
	delete(m.rows, id)
	return true, nil
}

type stubSentReader struct {
	rows []models.SentEmail
}

func (s *stubSentReader) ListSentTo(ctx context.Context, uid string) ([]models.SentEmail, error) {
	return s.rows, nil
}

func newTemplateService(sender *recordingSender) (*EmailTemplateService, *memTemplates) {
	repo := &memTemplates{}
	course := *sampleCourse()
	svc := NewEmailTemplateService(repo, &stubSentReader{}, &stubCourseLookup{courses: map[int]models.Course{course.SectionID: course}},
		NewEmailMerge("https://cc.example.edu", 2202), sender, EmailTemplateConfig{CurrentTermID: 2202, SampleSectionID: course.SectionID}, nil, nil)
	return svc, repo
}

func TestEmailTemplateCRUD(t *testing.T) {
	svc, repo := newTemplateService(&recordingSender{})
	ctx := context.Background()

	created, err := svc.Create(ctx, dto.EmailTemplateRequest{TemplateType: models.TemplateInvitation, Name: "Invite", SubjectLine: "s", Message: "m"})
	require.NoError(t, err)
	assert.Equal(t, 1, created.ID)

	updated, err := svc.Update(ctx, dto.EmailTemplateRequest{TemplateID: created.ID, TemplateType: models.TemplateInvitation, Name: "Invite v2", SubjectLine: "s", Message: "m"})
	require.NoError(t, err)
	assert.Equal(t, "Invite v2", updated.Name)
	assert.Equal(t, "Invite v2", repo.rows[1].Name)

	names, err := svc.ListNames(ctx)
	require.NoError(t, err)
	require.Len(t, names, 1)

	require.NoError(t, svc.Delete(ctx, created.ID))
	err = svc.Delete(ctx, created.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Get(ctx, created.ID)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEmailTemplateValidation(t *testing.T) {
	svc, _ := newTemplateService(&recordingSender{})
	ctx := context.Background()

	_, err := svc.Create(ctx, dto.EmailTemplateRequest{TemplateType: models.TemplateInvitation, Name: "Invite"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(ctx, dto.EmailTemplateRequest{TemplateType: "newsletter", Name: "n", SubjectLine: "s", Message: "m"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Update(ctx, dto.EmailTemplateRequest{TemplateID: 42, TemplateType: models.TemplateInvitation, Name: "n", SubjectLine: "s", Message: "m"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEmailTemplateSendTest(t *testing.T) {
	sender := &recordingSender{}
	svc, _ := newTemplateService(sender)
	ctx := context.Background()
	tpl, err := svc.Create(ctx, dto.EmailTemplateRequest{
		TemplateType: models.TemplateInvitation,
		Name:         "Invite",
		SubjectLine:  "<code>course.name</code> in <code>term.name</code>",
		Message:      "Hello <code>user.name</code>",
	})
	require.NoError(t, err)

	actor := &models.JWTClaims{UID: "90001", Name: "Grace Hopper", Email: "grace@example.edu", Role: models.RoleAdmin}
	message, err := svc.SendTest(ctx, actor, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "Email sent to grace@example.edu", message)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "BIO 1A in Spring 2020", sender.sent[0].Subject)
	assert.Equal(t, "Hello Grace Hopper", sender.sent[0].Body)
	assert.Equal(t, "grace@example.edu", sender.sent[0].Recipients[0].Email)
}

func TestEmailTemplateCodes(t *testing.T) {
	svc, _ := newTemplateService(&recordingSender{})
	assert.Contains(t, svc.Codes(), "signup.url")
}
