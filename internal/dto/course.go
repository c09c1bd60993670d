package dto

import "github.com/noah-isme/coursecap-api/internal/models"

// ApproveRequest captures POST /course/approve payload.
type ApproveRequest struct {
	SectionID     int                  `json:"sectionId" validate:"required,gt=0"`
	PublishType   models.PublishType   `json:"publishType" validate:"required"`
	RecordingType models.RecordingType `json:"recordingType" validate:"required"`
}

// CourseFilter selects a subset of the admin course list.
type CourseFilter string

const (
	FilterAll               CourseFilter = "All"
	FilterNotInvited        CourseFilter = "Not Invited"
	FilterInvited           CourseFilter = "Invited"
	FilterPartiallyApproved CourseFilter = "Partially Approved"
	FilterScheduled         CourseFilter = "Scheduled"
	FilterDoNotEmail        CourseFilter = "Do Not Email"
)

// CourseFilters lists the supported filters in display order.
var CourseFilters = []CourseFilter{
	FilterAll,
	FilterNotInvited,
	FilterInvited,
	FilterPartiallyApproved,
	FilterScheduled,
	FilterDoNotEmail,
}

// Valid reports whether f is a supported filter.
func (f CourseFilter) Valid() bool {
	for _, candidate := range CourseFilters {
		if candidate == f {
			return true
		}
	}
	return false
}

// CoursesRequest captures POST /courses payload.
type CoursesRequest struct {
	TermID int          `json:"termId" validate:"required,gt=0"`
	Filter CourseFilter `json:"filter"`
}

// OptOutRequest captures POST /course/opt_out/update payload.
type OptOutRequest struct {
	TermID    int  `json:"termId" validate:"required,gt=0"`
	SectionID int  `json:"sectionId" validate:"required,gt=0"`
	OptOut    bool `json:"optOut"`
}

// ScheduleRequest captures POST /course/schedule payload.
type ScheduleRequest struct {
	TermID    int `json:"termId" validate:"required,gt=0"`
	SectionID int `json:"sectionId" validate:"required,gt=0"`
}
