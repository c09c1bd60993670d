package models

import "time"

// CoursePreference holds admin overrides for a section, currently the email opt-out.
type CoursePreference struct {
	TermID    int       `db:"term_id" json:"termId"`
	SectionID int       `db:"section_id" json:"sectionId"`
	OptOut    bool      `db:"opt_out" json:"optOut"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
