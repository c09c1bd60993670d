package models

import (
	"time"

	"github.com/lib/pq"
)

// TemplateType classifies email templates by the event that triggers them.
type TemplateType string

const (
	TemplateInvitation                 TemplateType = "invitation"
	TemplateNotifyInstructorOfChanges  TemplateType = "notify_instructor_of_changes"
	TemplateRecordingsScheduled        TemplateType = "recordings_scheduled"
	TemplateRoomChangeNoLongerEligible TemplateType = "room_change_no_longer_eligible"
	TemplateWaitingForApproval         TemplateType = "waiting_for_approval"
)

// TemplateTypeNames maps template types to display names.
var TemplateTypeNames = map[TemplateType]string{
	TemplateInvitation:                 "Invitation",
	TemplateNotifyInstructorOfChanges:  "Notify instructors of changes",
	TemplateRecordingsScheduled:        "Recordings scheduled",
	TemplateRoomChangeNoLongerEligible: "Room change: no longer eligible",
	TemplateWaitingForApproval:         "Waiting for approval",
}

// Valid reports whether t is a known template type.
func (t TemplateType) Valid() bool {
	_, ok := TemplateTypeNames[t]
	return ok
}

// EmailTemplate holds subject and body text with <code>token</code> placeholders.
type EmailTemplate struct {
	ID           int          `db:"id" json:"id"`
	TemplateType TemplateType `db:"template_type" json:"templateType"`
	Name         string       `db:"name" json:"name"`
	SubjectLine  string       `db:"subject_line" json:"subjectLine"`
	Message      string       `db:"message" json:"message"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updatedAt"`
}

// EmailTemplateName is the lightweight listing of a template.
type EmailTemplateName struct {
	ID           int          `db:"id" json:"id"`
	Name         string       `db:"name" json:"name"`
	TemplateType TemplateType `db:"template_type" json:"templateType"`
}

// QueuedEmail is a pending notification, unique on (section, template type, term).
type QueuedEmail struct {
	ID           int          `db:"id" json:"id"`
	SectionID    int          `db:"section_id" json:"sectionId"`
	TemplateType TemplateType `db:"template_type" json:"templateType"`
	TermID       int          `db:"term_id" json:"termId"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
}

// SentEmail is an append-only log entry of a delivered message.
type SentEmail struct {
	ID            int            `db:"id" json:"id"`
	RecipientUIDs pq.StringArray `db:"recipient_uids" json:"recipientUids"`
	SectionID     *int           `db:"section_id" json:"sectionId,omitempty"`
	TemplateType  *TemplateType  `db:"template_type" json:"templateType,omitempty"`
	TermID        *int           `db:"term_id" json:"termId,omitempty"`
	SubjectLine   string         `db:"subject_line" json:"subjectLine"`
	Message       string         `db:"message" json:"message"`
	SentAt        time.Time      `db:"sent_at" json:"sentAt"`
}

// Recipient addresses one person in an outbound email.
type Recipient struct {
	UID   string `json:"uid"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// RecipientFromInstructor converts an instructor to a recipient.
func RecipientFromInstructor(i Instructor) Recipient {
	return Recipient{UID: i.UID, Name: i.Name(), Email: i.EmailAddress}
}
