package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/coursecap-api/internal/models"
)

const sectionSelect = `SELECT s.term_id, s.section_id, s.course_name, s.course_title, s.instruction_format, s.section_num, s.is_primary,
	s.instructor_uid, s.instructor_role_code,
	COALESCE(s.meeting_days, '') AS meeting_days, COALESCE(s.meeting_start_time, '') AS meeting_start_time,
	COALESCE(s.meeting_end_time, '') AS meeting_end_time, COALESCE(s.meeting_location, '') AS meeting_location,
	i.first_name, i.last_name, i.email_address
	FROM sis_sections s
	LEFT JOIN instructors i ON i.uid = s.instructor_uid`

// SectionRepository reads and refreshes the sis_sections feed.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// FindRows returns every instructor row of a section. An unknown section yields an empty slice.
func (r *SectionRepository) FindRows(ctx context.Context, termID, sectionID int) ([]models.SectionRow, error) {
	query := sectionSelect + ` WHERE s.term_id = $1 AND s.section_id = $2 ORDER BY s.instructor_uid`
	var rows []models.SectionRow
	if err := r.db.SelectContext(ctx, &rows, query, termID, sectionID); err != nil {
		return nil, fmt.Errorf("find section %d: %w", sectionID, err)
	}
	return rows, nil
}

// ListRowsBySectionIDs returns rows for the given sections of a term.
func (r *SectionRepository) ListRowsBySectionIDs(ctx context.Context, termID int, sectionIDs []int) ([]models.SectionRow, error) {
	if len(sectionIDs) == 0 {
		return []models.SectionRow{}, nil
	}
	ids := make(pq.Int64Array, len(sectionIDs))
	for i, id := range sectionIDs {
		ids[i] = int64(id)
	}
	query := sectionSelect + ` WHERE s.term_id = $1 AND s.section_id = ANY($2) ORDER BY s.course_name, s.section_id, s.instructor_uid`
	var rows []models.SectionRow
	if err := r.db.SelectContext(ctx, &rows, query, termID, ids); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return rows, nil
}

// ListRowsByInstructor returns every row of every section the instructor teaches in a term.
func (r *SectionRepository) ListRowsByInstructor(ctx context.Context, termID int, uid string) ([]models.SectionRow, error) {
	query := sectionSelect + ` WHERE s.term_id = $1 AND s.section_id IN (
		SELECT section_id FROM sis_sections WHERE term_id = $1 AND instructor_uid = $2
	) ORDER BY s.course_name, s.section_id, s.instructor_uid`
	var rows []models.SectionRow
	if err := r.db.SelectContext(ctx, &rows, query, termID, uid); err != nil {
		return nil, fmt.Errorf("list sections for instructor %s: %w", uid, err)
	}
	return rows, nil
}

// ListSectionIDsByLocation returns section ids meeting in a location.
func (r *SectionRepository) ListSectionIDsByLocation(ctx context.Context, termID int, location string) ([]int, error) {
	const query = `SELECT DISTINCT section_id FROM sis_sections WHERE term_id = $1 AND meeting_location = $2 ORDER BY section_id`
	var ids []int
	if err := r.db.SelectContext(ctx, &ids, query, termID, location); err != nil {
		return nil, fmt.Errorf("list sections in %s: %w", location, err)
	}
	return ids, nil
}

// ListEligibleSectionIDs returns sections of a term that meet in a known room.
func (r *SectionRepository) ListEligibleSectionIDs(ctx context.Context, termID int) ([]int, error) {
	const query = `SELECT DISTINCT s.section_id FROM sis_sections s
		JOIN rooms r ON r.location = s.meeting_location
		WHERE s.term_id = $1 ORDER BY s.section_id`
	var ids []int
	if err := r.db.SelectContext(ctx, &ids, query, termID); err != nil {
		return nil, fmt.Errorf("list eligible sections: %w", err)
	}
	return ids, nil
}

// DistinctInstructorUIDs returns every instructor uid present in the feed.
func (r *SectionRepository) DistinctInstructorUIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT instructor_uid FROM sis_sections WHERE instructor_uid IS NOT NULL ORDER BY instructor_uid`
	var uids []string
	if err := r.db.SelectContext(ctx, &uids, query); err != nil {
		return nil, fmt.Errorf("distinct instructor uids: %w", err)
	}
	return uids, nil
}

// DistinctLocations returns every meeting location of a term.
func (r *SectionRepository) DistinctLocations(ctx context.Context, termID int) ([]string, error) {
	const query = `SELECT DISTINCT meeting_location FROM sis_sections WHERE term_id = $1 AND meeting_location IS NOT NULL AND meeting_location <> '' ORDER BY meeting_location`
	var locations []string
	if err := r.db.SelectContext(ctx, &locations, query, termID); err != nil {
		return nil, fmt.Errorf("distinct locations: %w", err)
	}
	return locations, nil
}

// ReplaceTerm swaps the term's rows for a fresh copy inside one transaction.
func (r *SectionRepository) ReplaceTerm(ctx context.Context, termID int, rows []models.SectionRow) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace sections: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM sis_sections WHERE term_id = $1`, termID); err != nil {
		return fmt.Errorf("delete sections: %w", err)
	}

	const insert = `INSERT INTO sis_sections (term_id, section_id, course_name, course_title, instruction_format, section_num, is_primary,
		instructor_uid, instructor_role_code, meeting_days, meeting_start_time, meeting_end_time, meeting_location, created_at)
		VALUES (:term_id, :section_id, :course_name, :course_title, :instruction_format, :section_num, :is_primary,
		:instructor_uid, :instructor_role_code, :meeting_days, :meeting_start_time, :meeting_end_time, :meeting_location, NOW())`
	for i := range rows {
		rows[i].TermID = termID
		if _, err = tx.NamedExecContext(ctx, insert, rows[i]); err != nil {
			return fmt.Errorf("insert section %d: %w", rows[i].SectionID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace sections: %w", err)
	}
	return nil
}
