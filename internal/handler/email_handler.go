package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coursecap-api/internal/dto"
	"github.com/noah-isme/coursecap-api/internal/models"
	appErrors "github.com/noah-isme/coursecap-api/pkg/errors"
	"github.com/noah-isme/coursecap-api/pkg/response"
)

type emailTemplateService interface {
	List(ctx context.Context) ([]models.EmailTemplate, error)
	ListNames(ctx context.Context) ([]models.EmailTemplateName, error)
	Get(ctx context.Context, id int) (*models.EmailTemplate, error)
	Create(ctx context.Context, req dto.EmailTemplateRequest) (*models.EmailTemplate, error)
	Update(ctx context.Context, req dto.EmailTemplateRequest) (*models.EmailTemplate, error)
	Delete(ctx context.Context, id int) error
	Codes() []string
	SendTest(ctx context.Context, actor *models.JWTClaims, id int) (string, error)
	SentTo(ctx context.Context, uid string) ([]models.SentEmail, error)
}

type emailQueueService interface {
	QueueBatch(ctx context.Context, req dto.QueueEmailsRequest) (*dto.QueueEmailsResult, error)
	ListQueued(ctx context.Context, termID int) ([]models.QueuedEmail, error)
}

// EmailHandler exposes template management and the email queue.
type EmailHandler struct {
	templates emailTemplateService
	queue     emailQueueService
}

// NewEmailHandler constructs an EmailHandler.
func NewEmailHandler(templates emailTemplateService, queue emailQueueService) *EmailHandler {
	return &EmailHandler{templates: templates, queue: queue}
}

// ListTemplates godoc
// @Summary List email templates
// @Tags Email
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /email/templates/all [get]
func (h *EmailHandler) ListTemplates(c *gin.Context) {
	templates, err := h.templates.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, templates, nil)
}

// TemplateNames godoc
// @Summary List email template names
// @Tags Email
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /email/templates/names [get]
func (h *EmailHandler) TemplateNames(c *gin.Context) {
	names, err := h.templates.ListNames(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, names, nil)
}

// GetTemplate godoc
// @Summary Get email template
// @Tags Email
// @Produce json
// @Param templateId path int true "Template ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /email/template/{templateId} [get]
func (h *EmailHandler) GetTemplate(c *gin.Context) {
	id, err := intParam(c, "templateId")
	if err != nil {
		response.Error(c, err)
		return
	}
	tpl, err := h.templates.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tpl, nil)
}

// CreateTemplate godoc
// @Summary Create email template
// @Tags Email
// @Accept json
// @Produce json
// @Param payload body dto.EmailTemplateRequest true "Template"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /email/template/create [post]
func (h *EmailHandler) CreateTemplate(c *gin.Context) {
	var req dto.EmailTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid template payload"))
		return
	}
	tpl, err := h.templates.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tpl)
}

// UpdateTemplate godoc
// @Summary Update email template
// @Tags Email
// @Accept json
// @Produce json
// @Param payload body dto.EmailTemplateRequest true "Template"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /email/template/update [post]
func (h *EmailHandler) UpdateTemplate(c *gin.Context) {
	var req dto.EmailTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid template payload"))
		return
	}
	tpl, err := h.templates.Update(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tpl, nil)
}

// DeleteTemplate godoc
// @Summary Delete email template
// @Tags Email
// @Param templateId path int true "Template ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /email/template/delete/{templateId} [delete]
func (h *EmailHandler) DeleteTemplate(c *gin.Context) {
	id, err := intParam(c, "templateId")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.templates.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// TemplateCodes godoc
// @Summary Substitution codes available to templates
// @Tags Email
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /email/template/codes [get]
func (h *EmailHandler) TemplateCodes(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.templates.Codes(), nil)
}

// TestTemplate godoc
// @Summary Send a template to the current user
// @Tags Email
// @Produce json
// @Param templateId path int true "Template ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /email/template/test/{templateId} [get]
func (h *EmailHandler) TestTemplate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := intParam(c, "templateId")
	if err != nil {
		response.Error(c, err)
		return
	}
	message, err := h.templates.SendTest(c.Request.Context(), claims, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.MessageResponse{Message: message}, nil)
}

// Queue godoc
// @Summary Queue emails for sections
// @Tags Email
// @Accept json
// @Produce json
// @Param payload body dto.QueueEmailsRequest true "Sections and template type"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /emails/queue [post]
func (h *EmailHandler) Queue(c *gin.Context) {
	var req dto.QueueEmailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "Required parameters are missing."))
		return
	}
	result, err := h.queue.QueueBatch(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Queued godoc
// @Summary List queued emails of a term
// @Tags Email
// @Produce json
// @Param termId path int true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /emails/queued/{termId} [get]
func (h *EmailHandler) Queued(c *gin.Context) {
	termID, err := intParam(c, "termId")
	if err != nil {
		response.Error(c, err)
		return
	}
	rows, err := h.queue.ListQueued(c.Request.Context(), termID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// SentTo godoc
// @Summary Emails sent to a user
// @Tags Email
// @Produce json
// @Param uid path string true "Recipient UID"
// @Success 200 {object} response.Envelope
// @Router /emails/sent/{uid} [get]
func (h *EmailHandler) SentTo(c *gin.Context) {
	rows, err := h.templates.SentTo(c.Request.Context(), c.Param("uid"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}
