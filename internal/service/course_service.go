package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/coursecap-api/internal/models"
	appErrors "github.com/noah-isme/coursecap-api/pkg/errors"
)

type sectionReader interface {
	FindRows(ctx context.Context, termID, sectionID int) ([]models.SectionRow, error)
	ListRowsBySectionIDs(ctx context.Context, termID int, sectionIDs []int) ([]models.SectionRow, error)
	ListRowsByInstructor(ctx context.Context, termID int, uid string) ([]models.SectionRow, error)
}

// CourseService resolves sections into courses with their instructors.
type CourseService struct {
	sections sectionReader
	cache    *CacheService
	ttl      time.Duration
	logger   *zap.Logger
}

// NewCourseService constructs a CourseService. cache may be nil.
func NewCourseService(sections sectionReader, cache *CacheService, ttl time.Duration, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{sections: sections, cache: cache, ttl: ttl, logger: logger}
}

// GetCourse returns one section or a not found error.
func (s *CourseService) GetCourse(ctx context.Context, termID, sectionID int) (*models.Course, error) {
	key := sectionCacheKey(termID, sectionID)
	var cached models.Course
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	rows, err := s.sections.FindRows(ctx, termID, sectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	courses := models.CoursesFromRows(rows)
	if len(courses) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("No section for term_id = %d and section_id = %d", termID, sectionID))
	}
	course := courses[0]
	_ = s.cache.Set(ctx, key, course, s.ttl)
	return &course, nil
}

// ListCourses returns the given sections ordered by course name.
func (s *CourseService) ListCourses(ctx context.Context, termID int, sectionIDs []int) ([]models.Course, error) {
	rows, err := s.sections.ListRowsBySectionIDs(ctx, termID, sectionIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sections")
	}
	courses := models.CoursesFromRows(rows)
	models.SortCoursesByName(courses)
	return courses, nil
}

// CoursesForInstructor returns every section uid teaches in the term.
func (s *CourseService) CoursesForInstructor(ctx context.Context, termID int, uid string) ([]models.Course, error) {
	rows, err := s.sections.ListRowsByInstructor(ctx, termID, uid)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list instructor sections")
	}
	courses := models.CoursesFromRows(rows)
	models.SortCoursesByName(courses)
	return courses, nil
}

// InvalidateCache drops the cached sections of termID.
func (s *CourseService) InvalidateCache(ctx context.Context, termID int) {
	if err := s.cache.InvalidateTerm(ctx, termID); err != nil {
		s.logger.Warn("failed to invalidate section cache", zap.Error(err))
	}
}
