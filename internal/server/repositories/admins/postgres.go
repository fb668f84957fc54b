// Package admins stores the admin registry in PostgreSQL.
package admins

import (
	"context"
	"fmt"
	"strings"

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

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Exists reports whether email is registered. An empty email is never an admin.
func (r *PostgresRepository) Exists(ctx context.Context, email string) (bool, error) {
	email = normalize(email)
	if email == "" {
		return false, nil
	}

	var ok bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM admins WHERE email = $1)`, email).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

// Add registers email. Adding an existing admin is a no-op.
func (r *PostgresRepository) Add(ctx context.Context, email string) error {
	email = normalize(email)
	if email == "" {
		return fmt.Errorf("%w: empty email", common.ErrorValidation)
	}

	_, err := r.db.ExecContext(ctx, `INSERT INTO admins (email) VALUES ($1) ON CONFLICT (email) DO NOTHING`, email)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Remove(ctx context.Context, email string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM admins WHERE email = $1`, normalize(email))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Admin, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT email, created_at FROM admins ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("failed to select admins: %w", err)
	}
	defer rows.Close()

	var result []*models.Admin
	for rows.Next() {
		var a models.Admin
		if err := rows.Scan(&a.Email, &a.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
