package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/coursecap-api/internal/models"
	appErrors "github.com/noah-isme/coursecap-api/pkg/errors"
)

// Extra template tokens available to approval notifications.
const (
	TokenApproverName          = "approver.name"
	TokenPublishType           = "publish.type"
	TokenPublishTypePrevious   = "publish.type.previous"
	TokenRecordingTypePrevious = "recording.type.previous"
)

// NotificationDecision is the outcome of evaluating a new approval. An empty
// TemplateType means nothing is sent.
type NotificationDecision struct {
	TemplateType          models.TemplateType
	Recipients            []models.Instructor
	Latest                models.Approval
	PreviousPublishType   models.PublishType
	PreviousRecordingType models.RecordingType
}

// None reports whether no notification was selected.
func (d NotificationDecision) None() bool {
	return d.TemplateType == ""
}

// DecideNotification chooses at most one notification for a new approval.
// previous is the section's history oldest first, excluding latest.
//
// A settings change against the most recent previous approval notifies every
// instructor. Otherwise, while the section has fewer distinct approvers than
// instructors, the instructors who have not approved are told approval is
// pending. Otherwise nothing is sent. Admin approvers count toward the total.
func DecideNotification(latest models.Approval, previous []models.Approval, instructors []models.Instructor) NotificationDecision {
	decision := NotificationDecision{Latest: latest}

	if len(previous) > 0 {
		last := previous[len(previous)-1]
		if !latest.SameSettings(last) {
			decision.TemplateType = models.TemplateNotifyInstructorOfChanges
			decision.Recipients = append([]models.Instructor(nil), instructors...)
			decision.PreviousPublishType = last.PublishType
			decision.PreviousRecordingType = last.RecordingType
			return decision
		}
	}

	approvers := make(map[string]struct{}, len(previous)+1)
	for _, a := range previous {
		approvers[a.ApprovedByUID] = struct{}{}
	}
	approvers[latest.ApprovedByUID] = struct{}{}

	if len(approvers) >= len(instructors) {
		return decision
	}
	var pending []models.Instructor
	for _, instructor := range instructors {
		if _, ok := approvers[instructor.UID]; !ok {
			pending = append(pending, instructor)
		}
	}
	if len(pending) > 0 {
		decision.TemplateType = models.TemplateWaitingForApproval
		decision.Recipients = pending
	}
	return decision
}

type templateByTypeFinder interface {
	FindByType(ctx context.Context, templateType models.TemplateType) (*models.EmailTemplate, error)
}

type emailSender interface {
	Send(ctx context.Context, email OutboundEmail) error
}

// NotificationDispatcher renders and sends the notification chosen by DecideNotification.
type NotificationDispatcher struct {
	templates templateByTypeFinder
	merge     *EmailMerge
	mailer    emailSender
	logger    *zap.Logger
}

// NewNotificationDispatcher constructs a NotificationDispatcher.
func NewNotificationDispatcher(templates templateByTypeFinder, merge *EmailMerge, mailer emailSender, logger *zap.Logger) *NotificationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationDispatcher{templates: templates, merge: merge, mailer: mailer, logger: logger}
}

// Dispatch sends one email per recipient and returns the template type sent, or
// an empty type when the decision selected nothing.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, decision NotificationDecision, course models.Course, approverName string) (models.TemplateType, error) {
	if decision.None() {
		return "", nil
	}

	tpl, err := d.templates.FindByType(ctx, decision.TemplateType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "no email template of type "+string(decision.TemplateType))
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load email template")
	}

	extra := Substitutions{
		TokenApproverName: optional(approverName),
		TokenPublishType:  single(decision.Latest.PublishType.Name()),
	}
	if decision.PreviousPublishType != "" {
		extra[TokenPublishTypePrevious] = single(decision.PreviousPublishType.Name())
		extra[TokenRecordingTypePrevious] = single(decision.PreviousRecordingType.Name())
	}

	templateType := decision.TemplateType
	sectionID := course.SectionID
	termID := course.TermID
	var firstErr error
	for _, instructor := range decision.Recipients {
		subject, body := d.merge.Render(*tpl, MergeInput{
			RecipientName:     instructor.Name(),
			Course:            &course,
			RecordingTypeName: decision.Latest.RecordingType.Name(),
			TermID:            termID,
			Extra:             extra,
		})
		err := d.mailer.Send(ctx, OutboundEmail{
			Recipients:   []models.Recipient{models.RecipientFromInstructor(instructor)},
			Subject:      subject,
			Body:         body,
			SectionID:    &sectionID,
			TemplateType: &templateType,
			TermID:       &termID,
		})
		if err != nil {
			d.logger.Warn("approval notification failed",
				zap.String("template_type", string(templateType)),
				zap.Int("section_id", sectionID),
				zap.String("uid", instructor.UID),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return templateType, firstErr
}
