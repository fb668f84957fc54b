package applications

import (
	"context"
	"time"

	"github.com/dmitrijs2005/merchantdesk/internal/server/models"
)

// Repository persists merchant applications. Status-changing writes are
// conditional on the expected current status and return
// common.ErrorConflict when that precondition no longer holds.
type Repository interface {
	Create(ctx context.Context, applicantID, applicantEmail string) (*models.Application, error)
	GetByID(ctx context.Context, id int64) (*models.Application, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Application, error)
	FindDraft(ctx context.Context, applicantID string) (*models.Application, error)
	UpdateDetails(ctx context.Context, id int64, p models.DetailsPatch) (*models.Application, error)
	Submit(ctx context.Context, id int64, requestNumber string, at time.Time) (*models.Application, error)
	Review(ctx context.Context, id int64, to models.ApplicationStatus, r models.Review) (*models.Application, error)
	List(ctx context.Context, f models.ApplicationFilter) ([]*models.Application, error)
}
