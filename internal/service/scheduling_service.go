package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/coursecap-api/internal/integration/kaltura"
	"github.com/noah-isme/coursecap-api/internal/models"
	appErrors "github.com/noah-isme/coursecap-api/pkg/errors"
)

type scheduledStore interface {
	Create(ctx context.Context, scheduled *models.Scheduled) error
	FindBySection(ctx context.Context, sectionID, termID int) (*models.Scheduled, error)
}

type roomStore interface {
	FindByLocation(ctx context.Context, location string) (*models.Room, error)
	List(ctx context.Context) ([]models.Room, error)
	UpdateKalturaResource(ctx context.Context, id, resourceID int) error
}

type videoPlatform interface {
	Enabled() bool
	ListResources(ctx context.Context) ([]kaltura.Resource, error)
	ScheduleRecording(ctx context.Context, rec kaltura.Recording) (int, error)
}

type emailEnqueuer interface {
	Enqueue(ctx context.Context, sectionID int, templateType models.TemplateType, termID int) (int, error)
}

// SchedulingDeps groups the collaborators of SchedulingService.
type SchedulingDeps struct {
	Courses   courseLookup
	Approvals sectionApprovals
	Scheduled scheduledStore
	Rooms     roomStore
	Video     videoPlatform
	Queue     emailEnqueuer
}

// TermDates bounds the recurring recordings of a term.
type TermDates struct {
	Begin time.Time
	End   time.Time
}

// SchedulingService places approved sections with the video platform.
type SchedulingService struct {
	deps   SchedulingDeps
	term   TermDates
	logger *zap.Logger
}

// NewSchedulingService constructs a SchedulingService.
func NewSchedulingService(deps SchedulingDeps, term TermDates, logger *zap.Logger) *SchedulingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchedulingService{deps: deps, term: term, logger: logger}
}

// ScheduleRecordings schedules a section using its most recent approval and
// snapshots the settings in a scheduled row.
func (s *SchedulingService) ScheduleRecordings(ctx context.Context, termID, sectionID int) (*models.Scheduled, error) {
	course, err := s.deps.Courses.GetCourse(ctx, termID, sectionID)
	if err != nil {
		return nil, err
	}

	if existing, err := s.deps.Scheduled.FindBySection(ctx, sectionID, termID); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("Recordings of %s are already scheduled", course.CourseName))
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scheduled recording")
	}

	approvals, err := s.deps.Approvals.ListBySection(ctx, sectionID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approvals")
	}
	if !HasNecessaryApprovals(*course, approvals) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("%s does not have the necessary approvals", course.CourseName))
	}
	latest := approvals[len(approvals)-1]

	room, err := s.deps.Rooms.FindByLocation(ctx, course.MeetingLocation)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidLocation, fmt.Sprintf("%s is not eligible for Course Capture.", course.MeetingLocation))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}

	if s.deps.Video.Enabled() {
		if room.KalturaResourceID == nil {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("%s has no Kaltura resource", room.Location))
		}
		eventID, err := s.deps.Video.ScheduleRecording(ctx, kaltura.Recording{
			CourseLabel:    fmt.Sprintf("%s, %s %s", course.CourseName, course.InstructionFormat, course.SectionNum),
			InstructorUIDs: course.InstructorUIDs(),
			Days:           kaltura.SplitDays(course.MeetingDays),
			StartTime:      course.MeetingStartTime,
			EndTime:        course.MeetingEndTime,
			PublishType:    latest.PublishType.Name(),
			RecordingType:  latest.RecordingType.Name(),
			Location:       room.Location,
			ResourceID:     *room.KalturaResourceID,
			TermBegin:      s.term.Begin,
			TermEnd:        s.term.End,
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrExternalService.Code, appErrors.ErrExternalService.Status, "Kaltura failed to schedule recordings")
		}
		s.logger.Info("kaltura event created", zap.Int("section_id", sectionID), zap.Int("event_id", eventID))
	}

	scheduled := &models.Scheduled{
		SectionID:             sectionID,
		TermID:                termID,
		CrossListedSectionIDs: pq.Int64Array{},
		InstructorUIDs:        pq.StringArray(course.InstructorUIDs()),
		MeetingDays:           course.MeetingDays,
		MeetingStartTime:      course.MeetingStartTime,
		MeetingEndTime:        course.MeetingEndTime,
		PublishType:           latest.PublishType,
		RecordingType:         latest.RecordingType,
		RoomID:                room.ID,
	}
	if err := s.deps.Scheduled.Create(ctx, scheduled); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("Recordings of %s are already scheduled", course.CourseName))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record scheduled recordings")
	}
	s.logger.Info("recordings scheduled",
		zap.Int("section_id", sectionID),
		zap.Int("term_id", termID),
		zap.String("recording_type", string(latest.RecordingType)),
	)

	if _, err := s.deps.Queue.Enqueue(ctx, sectionID, models.TemplateRecordingsScheduled, termID); err != nil {
		s.logger.Warn("failed to queue recordings scheduled email", zap.Int("section_id", sectionID), zap.Error(err))
	}
	return scheduled, nil
}

// LinkRooms matches rooms to platform resources by name and stores the resource ids.
// It returns how many rooms changed.
func (s *SchedulingService) LinkRooms(ctx context.Context) (int, error) {
	if !s.deps.Video.Enabled() {
		return 0, nil
	}
	resources, err := s.deps.Video.ListResources(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrExternalService.Code, appErrors.ErrExternalService.Status, "failed to list Kaltura resources")
	}
	byName := make(map[string]int, len(resources))
	for _, resource := range resources {
		byName[strings.ToLower(strings.TrimSpace(resource.Name))] = resource.ID
	}

	rooms, err := s.deps.Rooms.List(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rooms")
	}
	linked := 0
	for _, room := range rooms {
		resourceID, ok := byName[strings.ToLower(strings.TrimSpace(room.Location))]
		if !ok {
			continue
		}
		if room.KalturaResourceID != nil && *room.KalturaResourceID == resourceID {
			continue
		}
		if err := s.deps.Rooms.UpdateKalturaResource(ctx, room.ID, resourceID); err != nil {
			return linked, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link room")
		}
		linked++
	}
	return linked, nil
}
