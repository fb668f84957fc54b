package documents

import (
	"context"

	"github.com/dmitrijs2005/merchantdesk/internal/server/models"
)

// Repository persists document metadata. Rows are insert-only.
type Repository interface {
	Create(ctx context.Context, d *models.Document) (*models.Document, error)
	GetByFileKey(ctx context.Context, fileKey string) (*models.DocumentWithOwner, error)
	ListByApplication(ctx context.Context, applicationID int64) ([]*models.Document, error)
}
