package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coursecap-api/internal/models"
)

// QueuedEmailRepository stores pending notifications.
type QueuedEmailRepository struct {
	db *sqlx.DB
}

// NewQueuedEmailRepository constructs the repository.
func NewQueuedEmailRepository(db *sqlx.DB) *QueuedEmailRepository {
	return &QueuedEmailRepository{db: db}
}

// Insert queues a notification and reports how many rows were created. A duplicate
// (section, template type, term) is absorbed by the unique constraint and yields 0.
func (r *QueuedEmailRepository) Insert(ctx context.Context, sectionID int, templateType models.TemplateType, termID int) (int64, error) {
	const query = `INSERT INTO queued_emails (section_id, template_type, term_id, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (section_id, template_type, term_id) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, sectionID, templateType, termID)
	if err != nil {
		return 0, fmt.Errorf("queue email: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("queue email rows affected: %w", err)
	}
	return affected, nil
}

// ListByTerm returns a term's queue in creation order.
func (r *QueuedEmailRepository) ListByTerm(ctx context.Context, termID int) ([]models.QueuedEmail, error) {
	const query = `SELECT id, section_id, template_type, term_id, created_at FROM queued_emails WHERE term_id = $1 ORDER BY created_at, id`
	var rows []models.QueuedEmail
	if err := r.db.SelectContext(ctx, &rows, query, termID); err != nil {
		return nil, fmt.Errorf("list queued emails: %w", err)
	}
	return rows, nil
}

// SectionIDs returns the sections already queued for a template type.
func (r *QueuedEmailRepository) SectionIDs(ctx context.Context, templateType models.TemplateType, termID int) ([]int, error) {
	const query = `SELECT section_id FROM queued_emails WHERE template_type = $1 AND term_id = $2`
	var ids []int
	if err := r.db.SelectContext(ctx, &ids, query, templateType, termID); err != nil {
		return nil, fmt.Errorf("list queued section ids: %w", err)
	}
	return ids, nil
}

// Delete removes a processed entry.
func (r *QueuedEmailRepository) Delete(ctx context.Context, id int) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM queued_emails WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete queued email %d: %w", id, err)
	}
	return nil
}
