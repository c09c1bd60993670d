package models

import (
	"sort"
	"strings"
	"time"
)

// SectionRow mirrors one sis_sections row joined with its instructor. A section
// taught by several instructors spans several rows.
type SectionRow struct {
	TermID             int       `db:"term_id" json:"termId"`
	SectionID          int       `db:"section_id" json:"sectionId"`
	CourseName         string    `db:"course_name" json:"courseName"`
	CourseTitle        string    `db:"course_title" json:"courseTitle"`
	InstructionFormat  string    `db:"instruction_format" json:"instructionFormat"`
	SectionNum         string    `db:"section_num" json:"sectionNum"`
	IsPrimary          bool      `db:"is_primary" json:"isPrimary"`
	InstructorUID      *string   `db:"instructor_uid" json:"instructorUid,omitempty"`
	InstructorRoleCode *string   `db:"instructor_role_code" json:"instructorRoleCode,omitempty"`
	MeetingDays        string    `db:"meeting_days" json:"meetingDays"`
	MeetingStartTime   string    `db:"meeting_start_time" json:"meetingStartTime"`
	MeetingEndTime     string    `db:"meeting_end_time" json:"meetingEndTime"`
	MeetingLocation    string    `db:"meeting_location" json:"meetingLocation"`
	InstructorFirst    *string   `db:"first_name" json:"-"`
	InstructorLast     *string   `db:"last_name" json:"-"`
	InstructorEmail    *string   `db:"email_address" json:"-"`
	CreatedAt          time.Time `db:"created_at" json:"-"`
}

// Instructor is a person assigned to teach a section.
type Instructor struct {
	UID          string `db:"uid" json:"uid"`
	FirstName    string `db:"first_name" json:"firstName"`
	LastName     string `db:"last_name" json:"lastName"`
	EmailAddress string `db:"email_address" json:"email"`
	RoleCode     string `db:"-" json:"roleCode,omitempty"`
}

// Name returns the display name of the instructor.
func (i Instructor) Name() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// Course is a section of the current term with its instructors collapsed into one record.
type Course struct {
	TermID            int          `json:"termId"`
	SectionID         int          `json:"sectionId"`
	CourseName        string       `json:"courseName"`
	CourseTitle       string       `json:"courseTitle"`
	InstructionFormat string       `json:"instructionFormat"`
	SectionNum        string       `json:"sectionNum"`
	IsPrimary         bool         `json:"isPrimary"`
	MeetingDays       string       `json:"meetingDays"`
	MeetingStartTime  string       `json:"meetingStartTime"`
	MeetingEndTime    string       `json:"meetingEndTime"`
	MeetingLocation   string       `json:"meetingLocation"`
	Instructors       []Instructor `json:"instructors"`
}

// InstructorUIDs lists the uids of the course's instructors in assignment order.
func (c Course) InstructorUIDs() []string {
	uids := make([]string, 0, len(c.Instructors))
	for _, instructor := range c.Instructors {
		uids = append(uids, instructor.UID)
	}
	return uids
}

// HasInstructor reports whether uid teaches the course.
func (c Course) HasInstructor(uid string) bool {
	for _, instructor := range c.Instructors {
		if instructor.UID == uid {
			return true
		}
	}
	return false
}

// CoursesFromRows groups section rows by (term, section) preserving first-seen order.
func CoursesFromRows(rows []SectionRow) []Course {
	type key struct{ term, section int }
	index := make(map[key]int)
	courses := make([]Course, 0)
	for _, row := range rows {
		k := key{row.TermID, row.SectionID}
		pos, ok := index[k]
		if !ok {
			courses = append(courses, Course{
				TermID:            row.TermID,
				SectionID:         row.SectionID,
				CourseName:        row.CourseName,
				CourseTitle:       row.CourseTitle,
				InstructionFormat: row.InstructionFormat,
				SectionNum:        row.SectionNum,
				IsPrimary:         row.IsPrimary,
				MeetingDays:       row.MeetingDays,
				MeetingStartTime:  row.MeetingStartTime,
				MeetingEndTime:    row.MeetingEndTime,
				MeetingLocation:   row.MeetingLocation,
				Instructors:       []Instructor{},
			})
			pos = len(courses) - 1
			index[k] = pos
		}
		if row.InstructorUID == nil || *row.InstructorUID == "" {
			continue
		}
		if courses[pos].HasInstructor(*row.InstructorUID) {
			continue
		}
		courses[pos].Instructors = append(courses[pos].Instructors, Instructor{
			UID:          *row.InstructorUID,
			FirstName:    deref(row.InstructorFirst),
			LastName:     deref(row.InstructorLast),
			EmailAddress: deref(row.InstructorEmail),
			RoleCode:     deref(row.InstructorRoleCode),
		})
	}
	return courses
}

// SortCoursesByName orders courses by course name then section id.
func SortCoursesByName(courses []Course) {
	sort.SliceStable(courses, func(i, j int) bool {
		if courses[i].CourseName == courses[j].CourseName {
			return courses[i].SectionID < courses[j].SectionID
		}
		return courses[i].CourseName < courses[j].CourseName
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
