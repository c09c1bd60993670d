package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/coursecap-api/internal/dto"
	"github.com/noah-isme/coursecap-api/internal/models"
	appErrors "github.com/noah-isme/coursecap-api/pkg/errors"
)

const pqUniqueViolation = pq.ErrorCode("23505")

type courseLookup interface {
	GetCourse(ctx context.Context, termID, sectionID int) (*models.Course, error)
	ListCourses(ctx context.Context, termID int, sectionIDs []int) ([]models.Course, error)
}

type approvalRepository interface {
	Create(ctx context.Context, approval *models.Approval) error
	FindByApprover(ctx context.Context, uid string, sectionID, termID int) (*models.Approval, error)
	ListBySection(ctx context.Context, sectionID, termID int) ([]models.Approval, error)
	ListByTerm(ctx context.Context, termID int) ([]models.Approval, error)
}

type roomFinder interface {
	FindByLocation(ctx context.Context, location string) (*models.Room, error)
}

type scheduledReader interface {
	FindBySection(ctx context.Context, sectionID, termID int) (*models.Scheduled, error)
	ListByTerm(ctx context.Context, termID int) ([]models.Scheduled, error)
}

type coursePreferenceStore interface {
	UpsertOptOut(ctx context.Context, pref *models.CoursePreference) error
	ListOptedOut(ctx context.Context, termID int) ([]int, error)
}

type sectionIDsByTemplate interface {
	SectionIDs(ctx context.Context, templateType models.TemplateType, termID int) ([]int, error)
}

type eligibleSectionLister interface {
	ListEligibleSectionIDs(ctx context.Context, termID int) ([]int, error)
}

type approvalNotifier interface {
	Dispatch(ctx context.Context, decision NotificationDecision, course models.Course, approverName string) (models.TemplateType, error)
}

// ApprovalDeps groups the collaborators of ApprovalService.
type ApprovalDeps struct {
	Courses     courseLookup
	Approvals   approvalRepository
	Rooms       roomFinder
	Scheduled   scheduledReader
	Preferences coursePreferenceStore
	Eligible    eligibleSectionLister
	Queued      sectionIDsByTemplate
	Sent        sectionIDsByTemplate
	Notifier    approvalNotifier
	Metrics     *MetricsService
}

// ApprovalService records approvals and reports approval state.
type ApprovalService struct {
	deps          ApprovalDeps
	currentTermID int
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewApprovalService constructs an ApprovalService. Approvals are always recorded against currentTermID.
func NewApprovalService(deps ApprovalDeps, currentTermID int, validate *validator.Validate, logger *zap.Logger) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ApprovalService{deps: deps, currentTermID: currentTermID, validator: validate, logger: logger}
}

// RecordApproval appends the actor's approval of a section in the current term and
// sends whatever notification the new approval calls for.
func (s *ApprovalService) RecordApproval(ctx context.Context, actor *models.JWTClaims, req dto.ApproveRequest) (*models.CourseApprovalStatus, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if err := s.validator.Struct(req); err != nil || !req.PublishType.Valid() || !req.RecordingType.Valid() {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "One or more required params are missing or invalid")
	}
	termID := s.currentTermID

	course, err := s.deps.Courses.GetCourse(ctx, termID, req.SectionID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !course.HasInstructor(actor.UID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Sorry, request unauthorized")
	}

	duplicate := appErrors.Clone(appErrors.ErrDuplicateApproval,
		fmt.Sprintf("You have already approved recording of %s, %s", course.CourseName, TermNameForSISID(termID)))
	if _, err := s.deps.Approvals.FindByApprover(ctx, actor.UID, course.SectionID, termID); err == nil {
		return nil, duplicate
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing approval")
	}

	room, err := s.findRoom(ctx, course.MeetingLocation)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidLocation, fmt.Sprintf("%s is not eligible for Course Capture.", course.MeetingLocation))
	}

	previous, err := s.deps.Approvals.ListBySection(ctx, course.SectionID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approvals")
	}

	approverType := models.ApproverInstructor
	if actor.IsAdmin() {
		approverType = models.ApproverAdmin
	}
	approval := models.Approval{
		ApprovedByUID: actor.UID,
		ApproverType:  approverType,
		SectionID:     course.SectionID,
		TermID:        termID,
		PublishType:   req.PublishType,
		RecordingType: req.RecordingType,
		RoomID:        room.ID,
	}
	if err := s.deps.Approvals.Create(ctx, &approval); err != nil {
		if isUniqueViolation(err) {
			return nil, duplicate
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record approval")
	}
	s.deps.Metrics.RecordApproval(string(approverType))
	s.logger.Info("approval recorded",
		zap.String("uid", actor.UID),
		zap.String("approver_type", string(approverType)),
		zap.Int("section_id", course.SectionID),
		zap.Int("term_id", termID),
	)

	decision := DecideNotification(approval, previous, course.Instructors)
	sent, err := s.deps.Notifier.Dispatch(ctx, decision, *course, actor.Name)
	if err != nil {
		s.logger.Warn("approval notification not fully delivered",
			zap.Int("section_id", course.SectionID),
			zap.String("template_type", string(decision.TemplateType)),
			zap.Error(err),
		)
	}

	status, err := s.status(ctx, *course, termID)
	if err != nil {
		return nil, err
	}
	status.NotificationSent = string(sent)
	return status, nil
}

// ApprovalsForSection returns the section's approvals oldest first.
func (s *ApprovalService) ApprovalsForSection(ctx context.Context, sectionID, termID int) ([]models.Approval, error) {
	approvals, err := s.deps.Approvals.ListBySection(ctx, sectionID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approvals")
	}
	if approvals == nil {
		approvals = []models.Approval{}
	}
	return approvals, nil
}

// CourseStatus returns the approval state of a section to an admin or one of its instructors.
func (s *ApprovalService) CourseStatus(ctx context.Context, actor *models.JWTClaims, termID, sectionID int) (*models.CourseApprovalStatus, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	course, err := s.deps.Courses.GetCourse(ctx, termID, sectionID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !course.HasInstructor(actor.UID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Sorry, this request is unauthorized.")
	}
	return s.status(ctx, *course, termID)
}

// ListCourses returns the admin overview of a term narrowed by filter.
func (s *ApprovalService) ListCourses(ctx context.Context, req dto.CoursesRequest) ([]models.CourseOverview, error) {
	if req.Filter == "" {
		req.Filter = dto.FilterNotInvited
	}
	if err := s.validator.Struct(req); err != nil || !req.Filter.Valid() {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "One or more required params are missing or invalid")
	}
	termID := req.TermID

	approvals, err := s.deps.Approvals.ListByTerm(ctx, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approvals")
	}
	scheduled, err := s.deps.Scheduled.ListByTerm(ctx, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scheduled recordings")
	}
	optedOut, err := s.deps.Preferences.ListOptedOut(ctx, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course preferences")
	}
	invited, err := s.invitedSections(ctx, termID)
	if err != nil {
		return nil, err
	}
	eligible, err := s.deps.Eligible.ListEligibleSectionIDs(ctx, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load eligible sections")
	}

	approvalsBySection := make(map[int][]models.Approval)
	for _, a := range approvals {
		approvalsBySection[a.SectionID] = append(approvalsBySection[a.SectionID], a)
	}
	scheduledBySection := make(map[int]models.Scheduled, len(scheduled))
	for _, sc := range scheduled {
		scheduledBySection[sc.SectionID] = sc
	}
	optOut := toSet(optedOut)

	candidates := make(map[int]struct{})
	switch req.Filter {
	case dto.FilterAll, dto.FilterNotInvited:
		for _, id := range eligible {
			candidates[id] = struct{}{}
		}
		for id := range approvalsBySection {
			candidates[id] = struct{}{}
		}
		for id := range scheduledBySection {
			candidates[id] = struct{}{}
		}
	case dto.FilterInvited:
		candidates = invited
	case dto.FilterPartiallyApproved:
		for id := range approvalsBySection {
			candidates[id] = struct{}{}
		}
	case dto.FilterScheduled:
		for id := range scheduledBySection {
			candidates[id] = struct{}{}
		}
	case dto.FilterDoNotEmail:
		candidates = optOut
	}

	ids := make([]int, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	courses, err := s.deps.Courses.ListCourses(ctx, termID, ids)
	if err != nil {
		return nil, err
	}

	rooms := make(map[string]*models.Room)
	overviews := make([]models.CourseOverview, 0, len(courses))
	for _, course := range courses {
		sectionApprovals := approvalsBySection[course.SectionID]
		_, isInvited := invited[course.SectionID]
		_, isOptedOut := optOut[course.SectionID]
		sc, isScheduled := scheduledBySection[course.SectionID]
		necessary := HasNecessaryApprovals(course, sectionApprovals)

		switch req.Filter {
		case dto.FilterNotInvited:
			if isInvited || isScheduled || isOptedOut || len(sectionApprovals) > 0 {
				continue
			}
		case dto.FilterPartiallyApproved:
			if necessary || isScheduled {
				continue
			}
		}

		room, ok := rooms[course.MeetingLocation]
		if !ok {
			room, err = s.findRoom(ctx, course.MeetingLocation)
			if err != nil {
				return nil, err
			}
			rooms[course.MeetingLocation] = room
		}

		overview := models.CourseOverview{
			Course:    course,
			Approvals: approvalViews(sectionApprovals),
			Room:      room,
			OptOut:    isOptedOut,
			Status:    courseStatusLabel(isScheduled, necessary, len(sectionApprovals) > 0, isInvited),
		}
		if isScheduled {
			scCopy := sc
			overview.Scheduled = &scCopy
		}
		overviews = append(overviews, overview)
	}
	return overviews, nil
}

// UpdateOptOut stores whether a section is excluded from course capture email.
func (s *ApprovalService) UpdateOptOut(ctx context.Context, req dto.OptOutRequest) (*models.CoursePreference, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid opt out payload")
	}
	pref := &models.CoursePreference{TermID: req.TermID, SectionID: req.SectionID, OptOut: req.OptOut}
	if err := s.deps.Preferences.UpsertOptOut(ctx, pref); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update opt out")
	}
	return pref, nil
}

// HasNecessaryApprovals is true when an admin approved or every instructor approved.
func HasNecessaryApprovals(course models.Course, approvals []models.Approval) bool {
	approvers := make(map[string]struct{}, len(approvals))
	for _, a := range approvals {
		if a.ApproverType == models.ApproverAdmin {
			return true
		}
		approvers[a.ApprovedByUID] = struct{}{}
	}
	if len(course.Instructors) == 0 {
		return false
	}
	for _, instructor := range course.Instructors {
		if _, ok := approvers[instructor.UID]; !ok {
			return false
		}
	}
	return true
}

func (s *ApprovalService) status(ctx context.Context, course models.Course, termID int) (*models.CourseApprovalStatus, error) {
	approvals, err := s.ApprovalsForSection(ctx, course.SectionID, termID)
	if err != nil {
		return nil, err
	}
	room, err := s.findRoom(ctx, course.MeetingLocation)
	if err != nil {
		return nil, err
	}
	scheduled, err := s.deps.Scheduled.FindBySection(ctx, course.SectionID, termID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scheduled recording")
		}
	}
	return &models.CourseApprovalStatus{
		TermID:                termID,
		Section:               course,
		Approvals:             approvalViews(approvals),
		HasNecessaryApprovals: HasNecessaryApprovals(course, approvals),
		Room:                  room,
		Scheduled:             scheduled,
		PublishTypeOptions:    models.PublishTypeNames,
	}, nil
}

// findRoom returns nil without error when the location is not a known room.
func (s *ApprovalService) findRoom(ctx context.Context, location string) (*models.Room, error) {
	if location == "" {
		return nil, nil
	}
	room, err := s.deps.Rooms.FindByLocation(ctx, location)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	return room, nil
}

func (s *ApprovalService) invitedSections(ctx context.Context, termID int) (map[int]struct{}, error) {
	queued, err := s.deps.Queued.SectionIDs(ctx, models.TemplateInvitation, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load queued invitations")
	}
	sent, err := s.deps.Sent.SectionIDs(ctx, models.TemplateInvitation, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sent invitations")
	}
	invited := toSet(queued)
	for _, id := range sent {
		invited[id] = struct{}{}
	}
	return invited, nil
}

func courseStatusLabel(scheduled, necessary, anyApproval, invited bool) string {
	switch {
	case scheduled:
		return "Scheduled"
	case necessary:
		return "Approved"
	case anyApproval:
		return "Partially Approved"
	case invited:
		return "Invited"
	default:
		return "Not Invited"
	}
}

func approvalViews(approvals []models.Approval) []models.ApprovalView {
	views := make([]models.ApprovalView, 0, len(approvals))
	for _, a := range approvals {
		views = append(views, models.NewApprovalView(a))
	}
	return views
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

func toSet(ids []int) map[int]struct{} {
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
