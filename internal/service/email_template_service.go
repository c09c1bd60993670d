package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/coursecap-api/internal/dto"
	"github.com/noah-isme/coursecap-api/internal/models"
	appErrors "github.com/noah-isme/coursecap-api/pkg/errors"
)

type emailTemplateRepository interface {
	Create(ctx context.Context, tpl *models.EmailTemplate) error
	Update(ctx context.Context, tpl *models.EmailTemplate) error
	FindByID(ctx context.Context, id int) (*models.EmailTemplate, error)
	List(ctx context.Context) ([]models.EmailTemplate, error)
	ListNames(ctx context.Context) ([]models.EmailTemplateName, error)
	Delete(ctx context.Context, id int) (bool, error)
}

type sentEmailReader interface {
	ListSentTo(ctx context.Context, uid string) ([]models.SentEmail, error)
}

// EmailTemplateConfig configures template previews.
type EmailTemplateConfig struct {
	CurrentTermID   int
	SampleSectionID int
}

// EmailTemplateService manages templates and the sent log.
type EmailTemplateService struct {
	repo      emailTemplateRepository
	sent      sentEmailReader
	courses   courseLookup
	merge     *EmailMerge
	mailer    emailSender
	config    EmailTemplateConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEmailTemplateService constructs an EmailTemplateService.
func NewEmailTemplateService(repo emailTemplateRepository, sent sentEmailReader, courses courseLookup, merge *EmailMerge, mailer emailSender, cfg EmailTemplateConfig, validate *validator.Validate, logger *zap.Logger) *EmailTemplateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EmailTemplateService{repo: repo, sent: sent, courses: courses, merge: merge, mailer: mailer, config: cfg, validator: validate, logger: logger}
}

// List returns every template.
func (s *EmailTemplateService) List(ctx context.Context) ([]models.EmailTemplate, error) {
	templates, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list email templates")
	}
	if templates == nil {
		templates = []models.EmailTemplate{}
	}
	return templates, nil
}

// ListNames returns id, name and type of every template.
func (s *EmailTemplateService) ListNames(ctx context.Context) ([]models.EmailTemplateName, error) {
	names, err := s.repo.ListNames(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list email template names")
	}
	if names == nil {
		names = []models.EmailTemplateName{}
	}
	return names, nil
}

// Get returns a template by id.
func (s *EmailTemplateService) Get(ctx context.Context, id int) (*models.EmailTemplate, error) {
	tpl, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "No such email template")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load email template")
	}
	return tpl, nil
}

// Create stores a new template.
func (s *EmailTemplateService) Create(ctx context.Context, req dto.EmailTemplateRequest) (*models.EmailTemplate, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	tpl := &models.EmailTemplate{TemplateType: req.TemplateType, Name: req.Name, SubjectLine: req.SubjectLine, Message: req.Message}
	if err := s.repo.Create(ctx, tpl); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create email template")
	}
	s.logger.Info("email template created", zap.Int("template_id", tpl.ID), zap.String("template_type", string(tpl.TemplateType)))
	return tpl, nil
}

// Update overwrites an existing template.
func (s *EmailTemplateService) Update(ctx context.Context, req dto.EmailTemplateRequest) (*models.EmailTemplate, error) {
	if req.TemplateID <= 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "No such email template")
	}
	if err := s.validate(req); err != nil {
		return nil, err
	}
	tpl := &models.EmailTemplate{ID: req.TemplateID, TemplateType: req.TemplateType, Name: req.Name, SubjectLine: req.SubjectLine, Message: req.Message}
	if err := s.repo.Update(ctx, tpl); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "No such email template")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update email template")
	}
	return tpl, nil
}

// Delete removes a template.
func (s *EmailTemplateService) Delete(ctx context.Context, id int) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete email template")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "No such email template")
	}
	return nil
}

// Codes lists the tokens a template may use.
func (s *EmailTemplateService) Codes() []string {
	return TemplateCodes()
}

// SendTest renders a template against the sample section and mails it to the actor.
func (s *EmailTemplateService) SendTest(ctx context.Context, actor *models.JWTClaims, id int) (string, error) {
	if actor == nil {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if actor.Email == "" {
		return "", appErrors.Clone(appErrors.ErrPreconditionFailed, "current user has no email address")
	}
	tpl, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}

	var course *models.Course
	if s.config.SampleSectionID > 0 {
		course, err = s.courses.GetCourse(ctx, s.config.CurrentTermID, s.config.SampleSectionID)
		if err != nil && !appErrors.Is(err, appErrors.ErrNotFound) {
			return "", err
		}
	}

	subject, body := s.merge.Render(*tpl, MergeInput{RecipientName: actor.Name, Course: course, TermID: s.config.CurrentTermID})
	err = s.mailer.Send(ctx, OutboundEmail{
		Recipients: []models.Recipient{{UID: actor.UID, Name: actor.Name, Email: actor.Email}},
		Subject:    subject,
		Body:       body,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Email sent to %s", actor.Email), nil
}

// SentTo returns mail delivered to uid, newest first.
func (s *EmailTemplateService) SentTo(ctx context.Context, uid string) ([]models.SentEmail, error) {
	rows, err := s.sent.ListSentTo(ctx, uid)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sent emails")
	}
	if rows == nil {
		rows = []models.SentEmail{}
	}
	return rows, nil
}

func (s *EmailTemplateService) validate(req dto.EmailTemplateRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Required parameters are missing.")
	}
	if !req.TemplateType.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown template type %q", req.TemplateType))
	}
	return nil
}
