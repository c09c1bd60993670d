package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/coursecap-api/internal/integration/ldap"
	"github.com/noah-isme/coursecap-api/internal/models"
	appErrors "github.com/noah-isme/coursecap-api/pkg/errors"
)

type directoryLookup interface {
	FindPerson(ctx context.Context, uid string) (*models.DirectoryPerson, error)
}

type adminUserRepository interface {
	IsAdmin(ctx context.Context, uid string) (bool, error)
	List(ctx context.Context) ([]models.AdminUser, error)
}

type instructorCourseLister interface {
	CoursesForInstructor(ctx context.Context, termID int, uid string) ([]models.Course, error)
}

// UserService resolves signed-in users from the directory, admin list and section feed.
type UserService struct {
	directory     directoryLookup
	admins        adminUserRepository
	courses       instructorCourseLister
	rooms         roomFinder
	currentTermID int
	logger        *zap.Logger
}

// NewUserService creates an instance of UserService. directory may be nil, in
// which case names come from the section feed.
func NewUserService(directory directoryLookup, admins adminUserRepository, courses instructorCourseLister, rooms roomFinder, currentTermID int, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{directory: directory, admins: admins, courses: courses, rooms: rooms, currentTermID: currentTermID, logger: logger}
}

// Profile loads uid. A user is active when they are an admin or teach in the
// current term, and never when the directory marks them expired.
func (s *UserService) Profile(ctx context.Context, uid string) (*models.UserProfile, error) {
	if _, err := strconv.Atoi(uid); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "uid must be numeric")
	}
	profile := &models.UserProfile{UID: uid, Courses: []models.CourseWithRoom{}}

	var person *models.DirectoryPerson
	if s.directory != nil {
		found, err := s.directory.FindPerson(ctx, uid)
		switch {
		case errors.Is(err, ldap.ErrNotFound):
			return profile, nil
		case err != nil:
			return nil, appErrors.Wrap(err, appErrors.ErrExternalService.Code, appErrors.ErrExternalService.Status, "directory lookup failed")
		}
		if found.ExpiredPerDS {
			return profile, nil
		}
		person = found
		profile.Name = person.Name()
		profile.EmailAddress = person.PreferredEmail()
	}

	isAdmin, err := s.admins.IsAdmin(ctx, uid)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check admin users")
	}
	courses, err := s.courses.CoursesForInstructor(ctx, s.currentTermID, uid)
	if err != nil {
		return nil, err
	}

	rooms := make(map[string]*models.Room)
	for _, course := range courses {
		if person == nil && profile.Name == "" {
			for _, instructor := range course.Instructors {
				if instructor.UID == uid {
					profile.Name = instructor.Name()
					profile.EmailAddress = instructor.EmailAddress
				}
			}
		}
		entry := models.CourseWithRoom{Course: course}
		if course.MeetingLocation != "" {
			room, ok := rooms[course.MeetingLocation]
			if !ok {
				room, err = s.findRoom(ctx, course.MeetingLocation)
				if err != nil {
					return nil, err
				}
				rooms[course.MeetingLocation] = room
			}
			entry.Room = room
		}
		profile.Courses = append(profile.Courses, entry)
	}

	profile.IsAdmin = isAdmin
	profile.IsTeaching = len(courses) > 0
	profile.IsActive = isAdmin || profile.IsTeaching
	return profile, nil
}

// ListAdmins returns the uids granted admin access.
func (s *UserService) ListAdmins(ctx context.Context) ([]models.AdminUser, error) {
	admins, err := s.admins.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list admin users")
	}
	if admins == nil {
		admins = []models.AdminUser{}
	}
	return admins, nil
}

func (s *UserService) findRoom(ctx context.Context, location string) (*models.Room, error) {
	room, err := s.rooms.FindByLocation(ctx, location)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	return room, nil
}
