package repository

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/coursecap-api/internal/models"
)

var schemaPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// WarehouseRepository reads the source-of-record section feed from the data warehouse.
type WarehouseRepository struct {
	db     *sqlx.DB
	schema string
}

// NewWarehouseRepository constructs the repository. The schema name is validated
// because it is interpolated into SQL.
func NewWarehouseRepository(db *sqlx.DB, schema string) (*WarehouseRepository, error) {
	if !schemaPattern.MatchString(schema) {
		return nil, fmt.Errorf("invalid warehouse schema %q", schema)
	}
	return &WarehouseRepository{db: db, schema: schema}, nil
}

// FetchSections returns the term's section rows, one per instructor.
func (r *WarehouseRepository) FetchSections(ctx context.Context, termID int) ([]models.SectionRow, error) {
	query := fmt.Sprintf(`SELECT sis_term_id::int AS term_id, sis_section_id::int AS section_id,
		sis_course_name AS course_name, sis_course_title AS course_title, sis_instruction_format AS instruction_format,
		sis_section_num AS section_num, is_primary, instructor_uid, instructor_role_code,
		COALESCE(meeting_days, '') AS meeting_days, COALESCE(meeting_start_time, '') AS meeting_start_time,
		COALESCE(meeting_end_time, '') AS meeting_end_time, COALESCE(meeting_location, '') AS meeting_location
		FROM %s.sis_sections
		WHERE sis_term_id::int = $1
		ORDER BY sis_section_id, instructor_uid`, r.schema)
	var rows []models.SectionRow
	if err := r.db.SelectContext(ctx, &rows, query, termID); err != nil {
		return nil, fmt.Errorf("fetch warehouse sections: %w", err)
	}
	return rows, nil
}

// FetchInstructors returns directory attributes for the given uids.
func (r *WarehouseRepository) FetchInstructors(ctx context.Context, uids []string) ([]models.Instructor, error) {
	if len(uids) == 0 {
		return []models.Instructor{}, nil
	}
	query := fmt.Sprintf(`SELECT ldap_uid AS uid, COALESCE(first_name, '') AS first_name, COALESCE(last_name, '') AS last_name,
		COALESCE(email_address, '') AS email_address
		FROM %s.basic_attributes
		WHERE ldap_uid = ANY($1)`, r.schema)
	var instructors []models.Instructor
	if err := r.db.SelectContext(ctx, &instructors, query, pq.StringArray(uids)); err != nil {
		return nil, fmt.Errorf("fetch warehouse instructors: %w", err)
	}
	return instructors, nil
}
