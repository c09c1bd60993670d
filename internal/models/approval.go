package models

import "time"

// PublishType is where recordings are published.
type PublishType string

const (
	PublishCanvas              PublishType = "canvas"
	PublishKalturaMediaGallery PublishType = "kaltura_media_gallery"
)

// PublishTypeNames maps publish types to display names.
var PublishTypeNames = map[PublishType]string{
	PublishCanvas:              "bCourses",
	PublishKalturaMediaGallery: "My Media, in Kaltura",
}

// Valid reports whether p is a known publish type.
func (p PublishType) Valid() bool {
	_, ok := PublishTypeNames[p]
	return ok
}

// Name returns the display name or the raw value when unknown.
func (p PublishType) Name() string {
	if name, ok := PublishTypeNames[p]; ok {
		return name
	}
	return string(p)
}

// RecordingType is which media streams are captured.
type RecordingType string

const (
	RecordingPresentationAudio          RecordingType = "presentation_audio"
	RecordingPresenterAudio             RecordingType = "presenter_audio"
	RecordingPresenterPresentationAudio RecordingType = "presenter_presentation_audio"
)

// RecordingTypeNames maps recording types to display names.
var RecordingTypeNames = map[RecordingType]string{
	RecordingPresentationAudio:          "Presentation and Audio",
	RecordingPresenterAudio:             "Presenter and Audio",
	RecordingPresenterPresentationAudio: "Presenter, Presentation, and Audio",
}

// Valid reports whether r is a known recording type.
func (r RecordingType) Valid() bool {
	_, ok := RecordingTypeNames[r]
	return ok
}

// Name returns the display name or the raw value when unknown.
func (r RecordingType) Name() string {
	if name, ok := RecordingTypeNames[r]; ok {
		return name
	}
	return string(r)
}

// ApproverType distinguishes admin approvals from instructor approvals.
type ApproverType string

const (
	ApproverAdmin      ApproverType = "admin"
	ApproverInstructor ApproverType = "instructor"
)

// Approval is one immutable ledger row. An approver approves a section once per term.
type Approval struct {
	ID            int           `db:"id" json:"id"`
	ApprovedByUID string        `db:"approved_by_uid" json:"approvedByUid"`
	ApproverType  ApproverType  `db:"approver_type" json:"approverType"`
	SectionID     int           `db:"section_id" json:"sectionId"`
	TermID        int           `db:"term_id" json:"termId"`
	PublishType   PublishType   `db:"publish_type" json:"publishType"`
	RecordingType RecordingType `db:"recording_type" json:"recordingType"`
	RoomID        int           `db:"room_id" json:"roomId"`
	CreatedAt     time.Time     `db:"created_at" json:"createdAt"`
}

// SameSettings reports whether both approvals chose the same publish and recording type.
func (a Approval) SameSettings(other Approval) bool {
	return a.PublishType == other.PublishType && a.RecordingType == other.RecordingType
}

// ApprovalView is the API representation of an approval.
type ApprovalView struct {
	Approval
	PublishTypeName   string `json:"publishTypeName"`
	RecordingTypeName string `json:"recordingTypeName"`
}

// NewApprovalView decorates an approval with display names.
func NewApprovalView(a Approval) ApprovalView {
	return ApprovalView{
		Approval:          a,
		PublishTypeName:   a.PublishType.Name(),
		RecordingTypeName: a.RecordingType.Name(),
	}
}

// CourseApprovalStatus is the current approval state of one section.
type CourseApprovalStatus struct {
	TermID                int                    `json:"termId"`
	Section               Course                 `json:"section"`
	Approvals             []ApprovalView         `json:"approvals"`
	HasNecessaryApprovals bool                   `json:"hasNecessaryApprovals"`
	Room                  *Room                  `json:"room"`
	Scheduled             *Scheduled             `json:"scheduled"`
	PublishTypeOptions    map[PublishType]string `json:"publishTypeOptions"`
	NotificationSent      string                 `json:"notificationSent,omitempty"`
}

// CourseOverview is one row of the admin course list.
type CourseOverview struct {
	Course
	Approvals []ApprovalView `json:"approvals"`
	Room      *Room          `json:"room"`
	Scheduled *Scheduled     `json:"scheduled"`
	OptOut    bool           `json:"optOut"`
	Status    string         `json:"status"`
}
