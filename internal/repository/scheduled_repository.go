package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coursecap-api/internal/models"
)

const scheduledColumns = `section_id, term_id, cross_listed_section_ids, instructor_uids, meeting_days, meeting_start_time, meeting_end_time,
	publish_type, recording_type, room_id, created_at`

// ScheduledRepository persists scheduling snapshots. Rows are written once.
type ScheduledRepository struct {
	db *sqlx.DB
}

// NewScheduledRepository constructs the repository.
func NewScheduledRepository(db *sqlx.DB) *ScheduledRepository {
	return &ScheduledRepository{db: db}
}

// Create stores a snapshot. The (section_id, term_id) primary key rejects a second snapshot.
func (r *ScheduledRepository) Create(ctx context.Context, scheduled *models.Scheduled) error {
	const query = `INSERT INTO scheduled (section_id, term_id, cross_listed_section_ids, instructor_uids, meeting_days, meeting_start_time,
		meeting_end_time, publish_type, recording_type, room_id, created_at)
		VALUES (:section_id, :term_id, :cross_listed_section_ids, :instructor_uids, :meeting_days, :meeting_start_time,
		:meeting_end_time, :publish_type, :recording_type, :room_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, scheduled); err != nil {
		return fmt.Errorf("insert scheduled: %w", err)
	}
	return nil
}

// FindBySection returns the snapshot of a section or sql.ErrNoRows.
func (r *ScheduledRepository) FindBySection(ctx context.Context, sectionID, termID int) (*models.Scheduled, error) {
	query := `SELECT ` + scheduledColumns + ` FROM scheduled WHERE section_id = $1 AND term_id = $2`
	var scheduled models.Scheduled
	if err := r.db.GetContext(ctx, &scheduled, query, sectionID, termID); err != nil {
		return nil, err
	}
	return &scheduled, nil
}

// ListByTerm returns every snapshot of a term.
func (r *ScheduledRepository) ListByTerm(ctx context.Context, termID int) ([]models.Scheduled, error) {
	query := `SELECT ` + scheduledColumns + ` FROM scheduled WHERE term_id = $1 ORDER BY created_at`
	var rows []models.Scheduled
	if err := r.db.SelectContext(ctx, &rows, query, termID); err != nil {
		return nil, fmt.Errorf("list scheduled: %w", err)
	}
	return rows, nil
}
