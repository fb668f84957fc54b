// Package applications stores merchant applications in PostgreSQL.
package applications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/merchantdesk/internal/common"
	"github.com/dmitrijs2005/merchantdesk/internal/dbx"
	"github.com/dmitrijs2005/merchantdesk/internal/server/models"
)

const columns = `id, applicant_id, applicant_email, status, request_number,
	type, business_name, crn, tax_id, contact_name, national_id, phone, governorate, city, address,
	pharmacy_license, pharmacist_name, pharmacy_hours, store_area, store_type,
	supermarket_hours, cuisine_type, health_grade, restaurant_hours,
	submitted_at, reviewed_by, review_note, reviewed_at, created_at, updated_at`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanApplication(row scanner) (*models.Application, error) {
	var (
		a           models.Application
		status      string
		btype       string
		requestNo   sql.NullString
		submittedAt sql.NullTime
		reviewedBy  sql.NullString
		reviewNote  sql.NullString
		reviewedAt  sql.NullTime
	)
	d := &a.Details
	err := row.Scan(&a.ID, &a.ApplicantID, &a.ApplicantEmail, &status, &requestNo,
		&btype, &d.BusinessName, &d.CRN, &d.TaxID, &d.ContactName, &d.NationalID, &d.Phone, &d.Governorate, &d.City, &d.Address,
		&d.PharmacyLicense, &d.PharmacistName, &d.PharmacyHours, &d.StoreArea, &d.StoreType,
		&d.SupermarketHours, &d.CuisineType, &d.HealthGrade, &d.RestaurantHours,
		&submittedAt, &reviewedBy, &reviewNote, &reviewedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.Status = models.ApplicationStatus(status)
	d.Type = models.BusinessType(btype)
	a.RequestNumber = requestNo.String
	if submittedAt.Valid {
		t := submittedAt.Time
		a.SubmittedAt = &t
	}
	if reviewedAt.Valid {
		a.Review = &models.Review{
			ReviewedBy: reviewedBy.String,
			Note:       reviewNote.String,
			ReviewedAt: reviewedAt.Time,
		}
	}
	return &a, nil
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (*models.Application, error) {
	a, err := scanApplication(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// Create inserts a new draft for applicantID. A second open draft for the
// same applicant yields common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, applicantID, applicantEmail string) (*models.Application, error) {
	query := `INSERT INTO applications (applicant_id, applicant_email, status)
		VALUES ($1, $2, 'draft')
		RETURNING ` + columns

	a, err := scanApplication(r.db.QueryRowContext(ctx, query, applicantID, applicantEmail))
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Application, error) {
	return r.one(ctx, `SELECT `+columns+` FROM applications WHERE id = $1`, id)
}

// GetByIDForUpdate locks the row until the surrounding transaction ends.
func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Application, error) {
	return r.one(ctx, `SELECT `+columns+` FROM applications WHERE id = $1 FOR UPDATE`, id)
}

// FindDraft returns the applicant's open draft or common.ErrorNotFound.
func (r *PostgresRepository) FindDraft(ctx context.Context, applicantID string) (*models.Application, error) {
	return r.one(ctx, `SELECT `+columns+` FROM applications WHERE applicant_id = $1 AND status = 'draft'`, applicantID)
}

// guarded runs a conditional UPDATE ... RETURNING. No row back means the
// status precondition failed (or the id is unknown), reported as conflict.
func (r *PostgresRepository) guarded(ctx context.Context, query string, args ...any) (*models.Application, error) {
	a, err := r.one(ctx, query, args...)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorConflict
	}
	return a, err
}

// UpdateDetails writes the fields present in p to a draft. Absent fields
// keep their stored value.
func (r *PostgresRepository) UpdateDetails(ctx context.Context, id int64, p models.DetailsPatch) (*models.Application, error) {
	var (
		sets []string
		args = []any{id}
	)
	for _, f := range p.Fields() {
		args = append(args, f.Value)
		sets = append(sets, fmt.Sprintf("%s = $%d", f.Column, len(args)))
	}
	sets = append(sets, "updated_at = now()")

	query := `UPDATE applications SET ` + strings.Join(sets, ", ") + `
		WHERE id = $1 AND status = 'draft'
		RETURNING ` + columns

	return r.guarded(ctx, query, args...)
}

// Submit moves a draft to pending.
func (r *PostgresRepository) Submit(ctx context.Context, id int64, requestNumber string, at time.Time) (*models.Application, error) {
	query := `UPDATE applications SET
			status = 'pending', request_number = $2, submitted_at = $3, updated_at = now()
		WHERE id = $1 AND status = 'draft'
		RETURNING ` + columns

	a, err := r.guarded(ctx, query, id, requestNumber, at)
	if err != nil && dbx.IsUniqueViolation(err) {
		return nil, common.ErrorAlreadyExists
	}
	return a, err
}

// Review moves a pending application to approved or rejected.
func (r *PostgresRepository) Review(ctx context.Context, id int64, to models.ApplicationStatus, rv models.Review) (*models.Application, error) {
	if to != models.StatusApproved && to != models.StatusRejected {
		return nil, fmt.Errorf("%w: cannot review into %q", common.ErrorValidation, to)
	}

	query := `UPDATE applications SET
			status = $2, reviewed_by = $3, review_note = $4, reviewed_at = $5, updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + columns

	return r.guarded(ctx, query, id, string(to), rv.ReviewedBy, rv.Note, rv.ReviewedAt)
}

// List returns submitted applications (never drafts), newest submission
// first, narrowed by f.
func (r *PostgresRepository) List(ctx context.Context, f models.ApplicationFilter) ([]*models.Application, error) {
	var (
		where = []string{"status <> 'draft'"}
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Type != "" {
		add("type = $%d", string(f.Type))
	}
	if f.Governorate != "" {
		add("governorate = $%d", f.Governorate)
	}
	if f.From != nil {
		add("submitted_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("submitted_at <= $%d", *f.To)
	}

	query := `SELECT ` + columns + ` FROM applications WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY submitted_at DESC NULLS LAST, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select applications: %w", err)
	}
	defer rows.Close()

	var result []*models.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
