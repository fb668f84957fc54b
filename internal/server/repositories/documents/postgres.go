// Package documents stores uploaded document metadata in PostgreSQL.
package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/merchantdesk/internal/common"
	"github.com/dmitrijs2005/merchantdesk/internal/dbx"
	"github.com/dmitrijs2005/merchantdesk/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts d and fills in ID and CreatedAt. A reused file key yields
// common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, d *models.Document) (*models.Document, error) {
	query := `INSERT INTO documents (file_key, application_id, category, file_name, mime_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	out := *d
	err := r.db.QueryRowContext(ctx, query, d.FileKey, d.ApplicationID, string(d.Category), d.FileName, d.MimeType, d.SizeBytes).
		Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &out, nil
}

// GetByFileKey returns the document together with its application's owner
// and status, or common.ErrorNotFound.
func (r *PostgresRepository) GetByFileKey(ctx context.Context, fileKey string) (*models.DocumentWithOwner, error) {
	query := `SELECT d.id, d.file_key, d.application_id, d.category, d.file_name, d.mime_type, d.size_bytes, d.created_at,
			a.applicant_id, a.status
		FROM documents d
		JOIN applications a ON a.id = d.application_id
		WHERE d.file_key = $1`

	var (
		out      models.DocumentWithOwner
		category string
		status   string
	)
	err := r.db.QueryRowContext(ctx, query, fileKey).Scan(
		&out.ID, &out.FileKey, &out.ApplicationID, &category, &out.FileName, &out.MimeType, &out.SizeBytes, &out.CreatedAt,
		&out.ApplicantID, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	out.Category = models.DocumentCategory(category)
	out.ApplicationStatus = models.ApplicationStatus(status)
	return &out, nil
}

func (r *PostgresRepository) ListByApplication(ctx context.Context, applicationID int64) ([]*models.Document, error) {
	query := `SELECT id, file_key, application_id, category, file_name, mime_type, size_bytes, created_at
		FROM documents
		WHERE application_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to select documents: %w", err)
	}
	defer rows.Close()

	var result []*models.Document
	for rows.Next() {
		var (
			d        models.Document
			category string
		)
		if err := rows.Scan(&d.ID, &d.FileKey, &d.ApplicationID, &category, &d.FileName, &d.MimeType, &d.SizeBytes, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Category = models.DocumentCategory(category)
		result = append(result, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
