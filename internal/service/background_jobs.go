package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/coursecap-api/internal/models"
)

// Job keys.
const (
	JobRefreshWarehouse = "refresh_warehouse"
	JobQueuedEmails     = "queued_emails"
	JobAdminEmails      = "admin_emails"
)

type warehouseSource interface {
	FetchSections(ctx context.Context, termID int) ([]models.SectionRow, error)
	FetchInstructors(ctx context.Context, uids []string) ([]models.Instructor, error)
}

type sectionWriter interface {
	ReplaceTerm(ctx context.Context, termID int, rows []models.SectionRow) error
	DistinctInstructorUIDs(ctx context.Context) ([]string, error)
}

type instructorWriter interface {
	Upsert(ctx context.Context, instructors []models.Instructor) error
}

type cacheInvalidator interface {
	InvalidateCache(ctx context.Context, termID int)
}

type roomLinker interface {
	LinkRooms(ctx context.Context) (int, error)
}

// RefreshWarehouseJob copies the current term's sections and instructors from the warehouse.
type RefreshWarehouseJob struct {
	Warehouse   warehouseSource
	Sections    sectionWriter
	Instructors instructorWriter
	Cache       cacheInvalidator
	Rooms       roomLinker
	TermID      int
	Logger      *zap.Logger
}

// Key returns the refresh_warehouse job key.
func (j *RefreshWarehouseJob) Key() string { return JobRefreshWarehouse }

// Description summarises the job for the jobs listing.
func (j *RefreshWarehouseJob) Description() string {
	return "Copy sections and instructors of the current term from the data warehouse."
}

// Run replaces the term's sections, upserts their instructors and relinks rooms.
func (j *RefreshWarehouseJob) Run(ctx context.Context) error {
	log := loggerOrNop(j.Logger)
	rows, err := j.Warehouse.FetchSections(ctx, j.TermID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("warehouse returned no sections for term %d", j.TermID)
	}
	if err := j.Sections.ReplaceTerm(ctx, j.TermID, rows); err != nil {
		return err
	}

	uids, err := j.Sections.DistinctInstructorUIDs(ctx)
	if err != nil {
		return err
	}
	instructors, err := j.Warehouse.FetchInstructors(ctx, uids)
	if err != nil {
		return err
	}
	if err := j.Instructors.Upsert(ctx, instructors); err != nil {
		return err
	}
	j.Cache.InvalidateCache(ctx, j.TermID)

	linked := 0
	if j.Rooms != nil {
		if linked, err = j.Rooms.LinkRooms(ctx); err != nil {
			return err
		}
	}
	log.Info("warehouse refreshed",
		zap.Int("term_id", j.TermID),
		zap.Int("section_rows", len(rows)),
		zap.Int("instructors", len(instructors)),
		zap.Int("rooms_linked", linked),
	)
	return nil
}

type queueDrainer interface {
	Drain(ctx context.Context, termID int) (DrainResult, error)
}

// QueuedEmailsJob delivers queued notifications of the current term.
type QueuedEmailsJob struct {
	Queue  queueDrainer
	TermID int
	Logger *zap.Logger
}

// Key returns the queued_emails job key.
func (j *QueuedEmailsJob) Key() string { return JobQueuedEmails }

// Description summarises the job for the jobs listing.
func (j *QueuedEmailsJob) Description() string {
	return "Send queued emails. Undeliverable emails stay queued for the next run."
}

// Run drains the term's email queue once.
func (j *QueuedEmailsJob) Run(ctx context.Context) error {
	result, err := j.Queue.Drain(ctx, j.TermID)
	if err != nil {
		return err
	}
	loggerOrNop(j.Logger).Info("queued emails processed",
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	)
	return nil
}

type scheduledLister interface {
	ListByTerm(ctx context.Context, termID int) ([]models.Scheduled, error)
}

// AdminEmailsJob finds scheduled sections that moved out of their scheduled room
// and alerts the admin.
type AdminEmailsJob struct {
	Scheduled    scheduledLister
	Courses      courseLookup
	Rooms        roomFinder
	Queue        emailEnqueuer
	Mailer       emailSender
	TermID       int
	AdminUID     string
	AdminAddress string
	Logger       *zap.Logger
}

// Key returns the admin_emails job key.
func (j *AdminEmailsJob) Key() string { return JobAdminEmails }

// Description summarises the job for the jobs listing.
func (j *AdminEmailsJob) Description() string {
	return "Alert admins when scheduled courses change rooms. Instructors are notified when the new room is not eligible."
}

// Run compares each scheduled section's room with its current meeting location.
// A location with no eligible room queues a notice to the instructors. A move to
// another eligible room only alerts the admin, since the recording needs relinking.
func (j *AdminEmailsJob) Run(ctx context.Context) error {
	log := loggerOrNop(j.Logger)
	scheduled, err := j.Scheduled.ListByTerm(ctx, j.TermID)
	if err != nil {
		return err
	}

	var ineligible, relocated []string
	for _, sc := range scheduled {
		course, err := j.Courses.GetCourse(ctx, j.TermID, sc.SectionID)
		if err != nil {
			log.Warn("scheduled section missing from feed", zap.Int("section_id", sc.SectionID), zap.Error(err))
			continue
		}
		room, err := j.Rooms.FindByLocation(ctx, course.MeetingLocation)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if room != nil && room.ID == sc.RoomID {
			continue
		}
		line := fmt.Sprintf("%s (section %d) now meets in %s", course.CourseName, course.SectionID, course.MeetingLocation)
		if room != nil {
			relocated = append(relocated, line)
			continue
		}
		newly, err := j.Queue.Enqueue(ctx, sc.SectionID, models.TemplateRoomChangeNoLongerEligible, j.TermID)
		if err != nil {
			return err
		}
		if newly > 0 {
			ineligible = append(ineligible, line)
		}
	}

	total := len(ineligible) + len(relocated)
	if total == 0 || j.AdminAddress == "" {
		return nil
	}
	var body strings.Builder
	writeRoomChangeList(&body, "The following scheduled courses are no longer in an eligible room:", ineligible)
	writeRoomChangeList(&body, "The following scheduled courses moved to another eligible room and need their recordings relinked:", relocated)
	return j.Mailer.Send(ctx, OutboundEmail{
		Recipients: []models.Recipient{{UID: j.AdminUID, Name: "Course Capture Admin", Email: j.AdminAddress}},
		Subject:    fmt.Sprintf("Course Capture: %d scheduled course(s) changed rooms", total),
		Body:       body.String(),
	})
}

func loggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func writeRoomChangeList(body *strings.Builder, heading string, lines []string) {
	if len(lines) == 0 {
		return
	}
	body.WriteString("<p>" + heading + "</p><ul>")
	for _, line := range lines {
		body.WriteString("<li>" + html.EscapeString(line) + "</li>")
	}
	body.WriteString("</ul>")
}
