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

type queuedEmailRepository interface {
	Insert(ctx context.Context, sectionID int, templateType models.TemplateType, termID int) (int64, error)
	ListByTerm(ctx context.Context, termID int) ([]models.QueuedEmail, error)
	Delete(ctx context.Context, id int) error
}

type sectionApprovals interface {
	ListBySection(ctx context.Context, sectionID, termID int) ([]models.Approval, error)
}

type optOutLister interface {
	ListOptedOut(ctx context.Context, termID int) ([]int, error)
}

// DrainResult summarises one pass over the queue.
type DrainResult struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// EmailQueueDeps groups the collaborators of EmailQueueService.
type EmailQueueDeps struct {
	Queue       queuedEmailRepository
	Courses     courseLookup
	Templates   templateByTypeFinder
	Approvals   sectionApprovals
	Preferences optOutLister
	Merge       *EmailMerge
	Mailer      emailSender
}

// EmailQueueService manages the deduplicated queue of pending notifications.
type EmailQueueService struct {
	deps      EmailQueueDeps
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEmailQueueService constructs an EmailQueueService.
func NewEmailQueueService(deps EmailQueueDeps, validate *validator.Validate, logger *zap.Logger) *EmailQueueService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EmailQueueService{deps: deps, validator: validate, logger: logger}
}

// Enqueue queues one notification and returns 1 when a row was created, 0 when an
// identical entry already existed.
func (s *EmailQueueService) Enqueue(ctx context.Context, sectionID int, templateType models.TemplateType, termID int) (int, error) {
	if sectionID <= 0 || termID <= 0 || !templateType.Valid() {
		return 0, appErrors.Clone(appErrors.ErrValidation, "Required parameters are missing.")
	}
	affected, err := s.deps.Queue.Insert(ctx, sectionID, templateType, termID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue email")
	}
	if affected > 0 {
		return 1, nil
	}
	return 0, nil
}

// QueueBatch queues one notification per section and reports how many were new.
func (s *EmailQueueService) QueueBatch(ctx context.Context, req dto.QueueEmailsRequest) (*dto.QueueEmailsResult, error) {
	if err := s.validator.Struct(req); err != nil || !req.TemplateType.Valid() {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Required parameters are missing.")
	}

	seen := make(map[int]struct{}, len(req.SectionIDs))
	newly := 0
	for _, sectionID := range req.SectionIDs {
		if _, dup := seen[sectionID]; dup {
			continue
		}
		seen[sectionID] = struct{}{}
		n, err := s.Enqueue(ctx, sectionID, req.TemplateType, req.TermID)
		if err != nil {
			return nil, err
		}
		newly += n
	}

	submitted := len(seen)
	result := &dto.QueueEmailsResult{AlreadyQueued: submitted - newly, NewlyQueued: newly}
	result.Message = queueMessage(req.TemplateType, submitted, result.AlreadyQueued, newly)
	s.logger.Info("emails queued",
		zap.String("template_type", string(req.TemplateType)),
		zap.Int("term_id", req.TermID),
		zap.Int("submitted", submitted),
		zap.Int("newly_queued", newly),
	)
	return result, nil
}

// ListQueued returns the term's queue in creation order.
func (s *EmailQueueService) ListQueued(ctx context.Context, termID int) ([]models.QueuedEmail, error) {
	rows, err := s.deps.Queue.ListByTerm(ctx, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list queued emails")
	}
	if rows == nil {
		rows = []models.QueuedEmail{}
	}
	return rows, nil
}

// Drain delivers every queued email of the term. Delivered entries are removed;
// entries that fail stay queued for the next pass.
func (s *EmailQueueService) Drain(ctx context.Context, termID int) (DrainResult, error) {
	var result DrainResult
	rows, err := s.ListQueued(ctx, termID)
	if err != nil {
		return result, err
	}
	if len(rows) == 0 {
		return result, nil
	}
	optedOut, err := s.deps.Preferences.ListOptedOut(ctx, termID)
	if err != nil {
		return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course preferences")
	}
	optOut := toSet(optedOut)

	for _, queued := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		log := s.logger.With(
			zap.Int("queued_email_id", queued.ID),
			zap.Int("section_id", queued.SectionID),
			zap.String("template_type", string(queued.TemplateType)),
		)

		if _, skip := optOut[queued.SectionID]; skip && queued.TemplateType == models.TemplateInvitation {
			log.Info("section opted out, dropping queued invitation")
			s.remove(ctx, queued, log)
			result.Skipped++
			continue
		}

		course, err := s.deps.Courses.GetCourse(ctx, queued.TermID, queued.SectionID)
		if err != nil {
			if appErrors.Is(err, appErrors.ErrNotFound) {
				log.Warn("section no longer exists, dropping queued email")
				s.remove(ctx, queued, log)
				result.Skipped++
				continue
			}
			log.Error("failed to load section for queued email", zap.Error(err))
			result.Failed++
			continue
		}

		if err := s.deliver(ctx, queued, *course); err != nil {
			log.Error("queued email not delivered", zap.Error(err))
			result.Failed++
			continue
		}
		s.remove(ctx, queued, log)
		result.Sent++
	}
	return result, nil
}

func (s *EmailQueueService) deliver(ctx context.Context, queued models.QueuedEmail, course models.Course) error {
	tpl, err := s.deps.Templates.FindByType(ctx, queued.TemplateType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("no email template of type %s", queued.TemplateType)
		}
		return err
	}

	recipients := make([]models.Recipient, 0, len(course.Instructors))
	names := make([]string, 0, len(course.Instructors))
	for _, instructor := range course.Instructors {
		if instructor.EmailAddress == "" {
			continue
		}
		recipients = append(recipients, models.RecipientFromInstructor(instructor))
		names = append(names, instructor.Name())
	}
	if len(recipients) == 0 {
		return fmt.Errorf("section %d has no instructor with an email address", course.SectionID)
	}

	recordingTypeName := ""
	approvals, err := s.deps.Approvals.ListBySection(ctx, course.SectionID, queued.TermID)
	if err != nil {
		return err
	}
	if len(approvals) > 0 {
		recordingTypeName = approvals[len(approvals)-1].RecordingType.Name()
	}

	subs := s.deps.Merge.BuildSubstitutions(MergeInput{
		Course:            &course,
		RecordingTypeName: recordingTypeName,
		TermID:            queued.TermID,
	})
	subs[TokenUserName] = names
	templateType := queued.TemplateType
	sectionID := queued.SectionID
	termID := queued.TermID
	return s.deps.Mailer.Send(ctx, OutboundEmail{
		Recipients:   recipients,
		Subject:      Interpolate(tpl.SubjectLine, subs),
		Body:         Interpolate(tpl.Message, subs),
		SectionID:    &sectionID,
		TemplateType: &templateType,
		TermID:       &termID,
	})
}

func (s *EmailQueueService) remove(ctx context.Context, queued models.QueuedEmail, log *zap.Logger) {
	if err := s.deps.Queue.Delete(ctx, queued.ID); err != nil {
		log.Error("failed to delete queued email", zap.Error(err))
	}
}

func queueMessage(templateType models.TemplateType, submitted, already, newly int) string {
	if newly < submitted {
		noun := "courses"
		if submitted == 1 {
			noun = "course"
		}
		added := "no"
		if newly > 0 {
			added = fmt.Sprintf("only %d", newly)
		}
		return fmt.Sprintf("%d '%s' emails were already queued up for the %s you submitted. Thus, %s emails added to the queue.",
			already, templateType, noun, added)
	}
	return fmt.Sprintf("%d '%s' emails will be sent.", newly, templateType)
}
