package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleInstructor UserRole = "INSTRUCTOR"
)

// AdminUser is a row of admin_users.
type AdminUser struct {
	UID       string    `db:"uid" json:"uid"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// DirectoryPerson is the campus directory view of a person.
type DirectoryPerson struct {
	UID          string `json:"uid"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	CampusEmail  string `json:"campusEmail,omitempty"`
	ExpiredPerDS bool   `json:"isExpiredPerLdap"`
}

// Name returns the display name.
func (p DirectoryPerson) Name() string {
	if p.FirstName == "" {
		return p.LastName
	}
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// PreferredEmail prefers the campus address.
func (p DirectoryPerson) PreferredEmail() string {
	if p.CampusEmail != "" {
		return p.CampusEmail
	}
	return p.Email
}

// UserProfile is the resolved identity of a signed-in user. A user is active when
// they are an admin or teach at least one section in the current term.
type UserProfile struct {
	UID          string           `json:"uid"`
	Name         string           `json:"name"`
	EmailAddress string           `json:"emailAddress"`
	IsActive     bool             `json:"isActive"`
	IsAdmin      bool             `json:"isAdmin"`
	IsTeaching   bool             `json:"isTeaching"`
	Courses      []CourseWithRoom `json:"courses"`
}

// Role returns the RBAC role carried in access tokens.
func (u UserProfile) Role() UserRole {
	if u.IsAdmin {
		return RoleAdmin
	}
	return RoleInstructor
}

// CourseWithRoom pairs a taught course with its room when eligible.
type CourseWithRoom struct {
	Course
	Room *Room `json:"room"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
