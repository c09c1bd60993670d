package dto

import "github.com/noah-isme/coursecap-api/internal/models"

// EmailTemplateRequest captures template create and update payloads.
type EmailTemplateRequest struct {
	TemplateID   int                 `json:"templateId"`
	TemplateType models.TemplateType `json:"templateType" validate:"required"`
	Name         string              `json:"name" validate:"required"`
	SubjectLine  string              `json:"subjectLine" validate:"required"`
	Message      string              `json:"message" validate:"required"`
}

// QueueEmailsRequest captures POST /emails/queue payload.
type QueueEmailsRequest struct {
	TermID       int                 `json:"termId" validate:"required,gt=0"`
	SectionIDs   []int               `json:"sectionIds" validate:"required,min=1,dive,gt=0"`
	TemplateType models.TemplateType `json:"emailTemplateType" validate:"required"`
}

// QueueEmailsResult reports how a batch was absorbed by the queue.
type QueueEmailsResult struct {
	AlreadyQueued int    `json:"alreadyQueued"`
	NewlyQueued   int    `json:"newlyQueued"`
	Message       string `json:"message"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}
