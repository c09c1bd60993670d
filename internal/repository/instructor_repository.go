package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/coursecap-api/internal/models"
)

// InstructorRepository stores instructor contact details.
type InstructorRepository struct {
	db *sqlx.DB
}

// NewInstructorRepository constructs the repository.
func NewInstructorRepository(db *sqlx.DB) *InstructorRepository {
	return &InstructorRepository{db: db}
}

// Upsert inserts or refreshes instructors keyed by uid.
func (r *InstructorRepository) Upsert(ctx context.Context, instructors []models.Instructor) error {
	const query = `INSERT INTO instructors (uid, first_name, last_name, email_address, created_at)
		VALUES (:uid, :first_name, :last_name, :email_address, NOW())
		ON CONFLICT (uid) DO UPDATE
		SET first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    email_address = EXCLUDED.email_address`
	for _, instructor := range instructors {
		if _, err := r.db.NamedExecContext(ctx, query, instructor); err != nil {
			return fmt.Errorf("upsert instructor %s: %w", instructor.UID, err)
		}
	}
	return nil
}

// FindByUIDs returns instructors for the provided uids.
func (r *InstructorRepository) FindByUIDs(ctx context.Context, uids []string) ([]models.Instructor, error) {
	if len(uids) == 0 {
		return []models.Instructor{}, nil
	}
	const query = `SELECT uid, first_name, last_name, email_address FROM instructors WHERE uid = ANY($1) ORDER BY uid`
	var instructors []models.Instructor
	if err := r.db.SelectContext(ctx, &instructors, query, pq.StringArray(uids)); err != nil {
		return nil, fmt.Errorf("find instructors: %w", err)
	}
	return instructors, nil
}
