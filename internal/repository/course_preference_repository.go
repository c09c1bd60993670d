package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coursecap-api/internal/models"
)

// CoursePreferenceRepository persists per-section admin preferences.
type CoursePreferenceRepository struct {
	db *sqlx.DB
}

// NewCoursePreferenceRepository constructs the repository.
func NewCoursePreferenceRepository(db *sqlx.DB) *CoursePreferenceRepository {
	return &CoursePreferenceRepository{db: db}
}

// UpsertOptOut stores the opt-out flag for a section.
func (r *CoursePreferenceRepository) UpsertOptOut(ctx context.Context, pref *models.CoursePreference) error {
	now := time.Now().UTC()
	if pref.CreatedAt.IsZero() {
		pref.CreatedAt = now
	}
	pref.UpdatedAt = now

	const query = `INSERT INTO course_preferences (term_id, section_id, opt_out, created_at, updated_at)
		VALUES (:term_id, :section_id, :opt_out, :created_at, :updated_at)
		ON CONFLICT (term_id, section_id) DO UPDATE
		SET opt_out = EXCLUDED.opt_out,
		    updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, pref); err != nil {
		return fmt.Errorf("upsert course preference: %w", err)
	}
	return nil
}

// ListOptedOut returns section ids opted out of email in a term.
func (r *CoursePreferenceRepository) ListOptedOut(ctx context.Context, termID int) ([]int, error) {
	const query = `SELECT section_id FROM course_preferences WHERE term_id = $1 AND opt_out = TRUE ORDER BY section_id`
	var ids []int
	if err := r.db.SelectContext(ctx, &ids, query, termID); err != nil {
		return nil, fmt.Errorf("list opted out sections: %w", err)
	}
	return ids, nil
}
