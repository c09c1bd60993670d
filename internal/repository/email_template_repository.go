package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coursecap-api/internal/models"
)

const emailTemplateColumns = `id, template_type, name, subject_line, message, created_at, updated_at`

// EmailTemplateRepository manages email templates.
type EmailTemplateRepository struct {
	db *sqlx.DB
}

// NewEmailTemplateRepository constructs the repository.
func NewEmailTemplateRepository(db *sqlx.DB) *EmailTemplateRepository {
	return &EmailTemplateRepository{db: db}
}

// Create inserts a template and fills generated fields.
func (r *EmailTemplateRepository) Create(ctx context.Context, tpl *models.EmailTemplate) error {
	const query = `INSERT INTO email_templates (template_type, name, subject_line, message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	if err := r.db.QueryRowxContext(ctx, query, tpl.TemplateType, tpl.Name, tpl.SubjectLine, tpl.Message).
		Scan(&tpl.ID, &tpl.CreatedAt, &tpl.UpdatedAt); err != nil {
		return fmt.Errorf("insert email template: %w", err)
	}
	return nil
}

// Update overwrites a template's content. Returns sql.ErrNoRows when it does not exist.
func (r *EmailTemplateRepository) Update(ctx context.Context, tpl *models.EmailTemplate) error {
	const query = `UPDATE email_templates
		SET template_type = $2, name = $3, subject_line = $4, message = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`
	if err := r.db.QueryRowxContext(ctx, query, tpl.ID, tpl.TemplateType, tpl.Name, tpl.SubjectLine, tpl.Message).
		Scan(&tpl.CreatedAt, &tpl.UpdatedAt); err != nil {
		return err
	}
	return nil
}

// FindByID returns a template or sql.ErrNoRows.
func (r *EmailTemplateRepository) FindByID(ctx context.Context, id int) (*models.EmailTemplate, error) {
	query := `SELECT ` + emailTemplateColumns + ` FROM email_templates WHERE id = $1`
	var tpl models.EmailTemplate
	if err := r.db.GetContext(ctx, &tpl, query, id); err != nil {
		return nil, err
	}
	return &tpl, nil
}

// FindByType returns the most recently updated template of a type or sql.ErrNoRows.
func (r *EmailTemplateRepository) FindByType(ctx context.Context, templateType models.TemplateType) (*models.EmailTemplate, error) {
	query := `SELECT ` + emailTemplateColumns + ` FROM email_templates WHERE template_type = $1 ORDER BY updated_at DESC LIMIT 1`
	var tpl models.EmailTemplate
	if err := r.db.GetContext(ctx, &tpl, query, templateType); err != nil {
		return nil, err
	}
	return &tpl, nil
}

// List returns all templates ordered by name.
func (r *EmailTemplateRepository) List(ctx context.Context) ([]models.EmailTemplate, error) {
	query := `SELECT ` + emailTemplateColumns + ` FROM email_templates ORDER BY name`
	var templates []models.EmailTemplate
	if err := r.db.SelectContext(ctx, &templates, query); err != nil {
		return nil, fmt.Errorf("list email templates: %w", err)
	}
	return templates, nil
}

// ListNames returns id, name and type of every template.
func (r *EmailTemplateRepository) ListNames(ctx context.Context) ([]models.EmailTemplateName, error) {
	const query = `SELECT id, name, template_type FROM email_templates ORDER BY name`
	var names []models.EmailTemplateName
	if err := r.db.SelectContext(ctx, &names, query); err != nil {
		return nil, fmt.Errorf("list email template names: %w", err)
	}
	return names, nil
}

// Delete removes a template and reports whether a row existed.
func (r *EmailTemplateRepository) Delete(ctx context.Context, id int) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM email_templates WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete email template %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete email template rows affected: %w", err)
	}
	return affected > 0, nil
}
