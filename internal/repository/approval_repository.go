package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coursecap-api/internal/models"
)

const approvalColumns = `id, approved_by_uid, approver_type, section_id, term_id, publish_type, recording_type, room_id, created_at`

// ApprovalRepository is the append-only approval ledger. Rows are never updated or deleted.
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository constructs the repository.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// Create appends an approval. The unique (approved_by_uid, section_id, term_id)
// constraint rejects a second approval by the same approver with a *pq.Error.
func (r *ApprovalRepository) Create(ctx context.Context, approval *models.Approval) error {
	const query = `INSERT INTO approvals (approved_by_uid, approver_type, section_id, term_id, publish_type, recording_type, room_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, created_at`
	row := r.db.QueryRowxContext(ctx, query,
		approval.ApprovedByUID,
		approval.ApproverType,
		approval.SectionID,
		approval.TermID,
		approval.PublishType,
		approval.RecordingType,
		approval.RoomID,
	)
	if err := row.Scan(&approval.ID, &approval.CreatedAt); err != nil {
		return fmt.Errorf("insert approval: %w", err)
	}
	return nil
}

// FindByApprover returns the approver's approval of a section or sql.ErrNoRows.
func (r *ApprovalRepository) FindByApprover(ctx context.Context, uid string, sectionID, termID int) (*models.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE approved_by_uid = $1 AND section_id = $2 AND term_id = $3`
	var approval models.Approval
	if err := r.db.GetContext(ctx, &approval, query, uid, sectionID, termID); err != nil {
		return nil, err
	}
	return &approval, nil
}

// ListBySection returns a section's approvals oldest first.
func (r *ApprovalRepository) ListBySection(ctx context.Context, sectionID, termID int) ([]models.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE section_id = $1 AND term_id = $2 ORDER BY created_at, id`
	var approvals []models.Approval
	if err := r.db.SelectContext(ctx, &approvals, query, sectionID, termID); err != nil {
		return nil, fmt.Errorf("list approvals for section %d: %w", sectionID, err)
	}
	return approvals, nil
}

// ListByTerm returns every approval of a term oldest first.
func (r *ApprovalRepository) ListByTerm(ctx context.Context, termID int) ([]models.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE term_id = $1 ORDER BY created_at, id`
	var approvals []models.Approval
	if err := r.db.SelectContext(ctx, &approvals, query, termID); err != nil {
		return nil, fmt.Errorf("list approvals for term %d: %w", termID, err)
	}
	return approvals, nil
}
