package admins

import (
	"context"

	"github.com/dmitrijs2005/merchantdesk/internal/server/models"
)

// Repository is the admin registry. Emails are compared case-insensitively.
type Repository interface {
	Exists(ctx context.Context, email string) (bool, error)
	Add(ctx context.Context, email string) error
	Remove(ctx context.Context, email string) error
	List(ctx context.Context) ([]*models.Admin, error)
}
