package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coursecap-api/internal/models"
)

// SentEmailRepository is the append-only log of delivered mail.
type SentEmailRepository struct {
	db *sqlx.DB
}

// NewSentEmailRepository constructs the repository.
func NewSentEmailRepository(db *sqlx.DB) *SentEmailRepository {
	return &SentEmailRepository{db: db}
}

// Create records a delivered message.
func (r *SentEmailRepository) Create(ctx context.Context, sent *models.SentEmail) error {
	const query = `INSERT INTO sent_emails (recipient_uids, section_id, template_type, term_id, subject_line, message, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, sent_at`
	if err := r.db.QueryRowxContext(ctx, query,
		sent.RecipientUIDs,
		sent.SectionID,
		sent.TemplateType,
		sent.TermID,
		sent.SubjectLine,
		sent.Message,
	).Scan(&sent.ID, &sent.SentAt); err != nil {
		return fmt.Errorf("insert sent email: %w", err)
	}
	return nil
}

// ListSentTo returns mail sent to a uid, newest first.
func (r *SentEmailRepository) ListSentTo(ctx context.Context, uid string) ([]models.SentEmail, error) {
	const query = `SELECT id, recipient_uids, section_id, template_type, term_id, subject_line, message, sent_at
		FROM sent_emails WHERE $1 = ANY(recipient_uids) ORDER BY sent_at DESC`
	var rows []models.SentEmail
	if err := r.db.SelectContext(ctx, &rows, query, uid); err != nil {
		return nil, fmt.Errorf("list sent emails for %s: %w", uid, err)
	}
	return rows, nil
}

// SectionIDs returns the sections that were sent mail of a template type in a term.
func (r *SentEmailRepository) SectionIDs(ctx context.Context, templateType models.TemplateType, termID int) ([]int, error) {
	const query = `SELECT DISTINCT section_id FROM sent_emails WHERE template_type = $1 AND term_id = $2 AND section_id IS NOT NULL`
	var ids []int
	if err := r.db.SelectContext(ctx, &ids, query, templateType, termID); err != nil {
		return nil, fmt.Errorf("list sent section ids: %w", err)
	}
	return ids, nil
}
