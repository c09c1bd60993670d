package models

import (
	"time"

	"github.com/lib/pq"
)

// Scheduled is the snapshot of settings in effect when recordings were placed with
// the video platform. Later approvals never rewrite it.
type Scheduled struct {
	SectionID             int            `db:"section_id" json:"sectionId"`
	TermID                int            `db:"term_id" json:"termId"`
	CrossListedSectionIDs pq.Int64Array  `db:"cross_listed_section_ids" json:"crossListedSectionIds"`
	InstructorUIDs        pq.StringArray `db:"instructor_uids" json:"instructorUids"`
	MeetingDays           string         `db:"meeting_days" json:"meetingDays"`
	MeetingStartTime      string         `db:"meeting_start_time" json:"meetingStartTime"`
	MeetingEndTime        string         `db:"meeting_end_time" json:"meetingEndTime"`
	PublishType           PublishType    `db:"publish_type" json:"publishType"`
	RecordingType         RecordingType  `db:"recording_type" json:"recordingType"`
	RoomID                int            `db:"room_id" json:"roomId"`
	CreatedAt             time.Time      `db:"created_at" json:"createdAt"`
}
