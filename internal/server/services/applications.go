package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/merchantdesk/internal/common"
	"github.com/dmitrijs2005/merchantdesk/internal/dbx"
	"github.com/dmitrijs2005/merchantdesk/internal/logging"
	"github.com/dmitrijs2005/merchantdesk/internal/server/access"
	"github.com/dmitrijs2005/merchantdesk/internal/server/models"
	"github.com/dmitrijs2005/merchantdesk/internal/server/repositories/repomanager"
)

// ReviewAction is what an admin decides on a pending application.
type ReviewAction string

const (
	ActionApprove ReviewAction = "approve"
	ActionReject  ReviewAction = "reject"
)

const requestNumberAttempts = 5

// ApplicationService drives the applicant wizard and the admin console.
type ApplicationService struct {
	db          dbx.DB
	repomanager repomanager.RepositoryManager
	decider     *access.Decider
	validate    *validator.Validate
	log         logging.Logger

	now     func() time.Time
	randInt func(n int) int
}

func NewApplicationService(db dbx.DB, rm repomanager.RepositoryManager, d *access.Decider, log logging.Logger) *ApplicationService {
	return &ApplicationService{
		db:          db,
		repomanager: rm,
		decider:     d,
		validate:    newValidator(),
		log:         log.With("module", "applications"),
		now:         time.Now,
		randInt:     rand.IntN,
	}
}

func (s *ApplicationService) requestNumber(at time.Time) string {
	return fmt.Sprintf("LXB-%s-%06d", at.UTC().Format("20060102"), s.randInt(1000000))
}

// LoadOrCreateDraft returns the applicant's open draft, creating one when
// none exists. created reports whether a new row was inserted.
func (s *ApplicationService) LoadOrCreateDraft(ctx context.Context, p *models.Principal) (app *models.Application, created bool, err error) {
	if p == nil || p.ID == "" {
		return nil, false, unauthenticated("Missing authorization header")
	}
	repo := s.repomanager.Applications(s.db)

	app, err = repo.FindDraft(ctx, p.ID)
	if err == nil {
		return app, false, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, false, dependency("Failed to load draft", err)
	}

	app, err = repo.Create(ctx, p.ID, p.Email)
	if errors.Is(err, common.ErrorAlreadyExists) {
		// lost a race with a concurrent request for the same applicant
		app, err = repo.FindDraft(ctx, p.ID)
		if err != nil {
			return nil, false, dependency("Failed to load draft", err)
		}
		return app, false, nil
	}
	if err != nil {
		return nil, false, dependency("Failed to create draft", err)
	}

	s.log.Info(ctx, "draft created", "application_id", app.ID, "applicant_id", p.ID)
	return app, true, nil
}

// SaveStep stores the wizard fields carried by one step. Fields the step
// leaves out keep their stored value. Values may be incomplete; only the
// enumerated fields are checked here.
func (s *ApplicationService) SaveStep(ctx context.Context, p *models.Principal, id int64, patch models.DetailsPatch) (*models.Application, error) {
	if p == nil {
		return nil, unauthenticated("Missing authorization header")
	}
	patch = normalizePatch(patch)
	if fields := validatePatch(s.validate, patch); len(fields) > 0 {
		return nil, validation("Invalid application fields", map[string]any{"fields": fields})
	}

	repo := s.repomanager.Applications(s.db)
	if _, err := ownedDraft(ctx, repo.GetByID, p, id); err != nil {
		return nil, err
	}

	app, err := repo.UpdateDetails(ctx, id, patch)
	if errors.Is(err, common.ErrorConflict) {
		return nil, forbidden(msgSubmittedReadOnly)
	}
	if err != nil {
		return nil, dependency("Failed to save application", err)
	}
	return app, nil
}

// Submit validates a complete draft, requires one document of every
// required category and moves the draft to pending under a fresh request
// number.
func (s *ApplicationService) Submit(ctx context.Context, p *models.Principal, id int64) (*models.Application, error) {
	if p == nil {
		return nil, unauthenticated("Missing authorization header")
	}
	repo := s.repomanager.Applications(s.db)

	app, err := ownedDraft(ctx, repo.GetByID, p, id)
	if err != nil {
		return nil, err
	}

	if fields := validateForSubmit(s.validate, normalizeDetails(app.Details)); len(fields) > 0 {
		return nil, validation("Application is incomplete", map[string]any{"fields": fields})
	}

	docs, err := s.repomanager.Documents(s.db).ListByApplication(ctx, id)
	if err != nil {
		return nil, dependency("Failed to list documents", err)
	}
	if missing := models.MissingDocuments(docs); len(missing) > 0 {
		return nil, validation("Missing required documents", map[string]any{"missing_documents": missing})
	}

	for attempt := 0; attempt < requestNumberAttempts; attempt++ {
		at := s.now()
		app, err = repo.Submit(ctx, id, s.requestNumber(at), at)
		if errors.Is(err, common.ErrorAlreadyExists) {
			continue
		}
		break
	}
	switch {
	case errors.Is(err, common.ErrorConflict):
		return nil, forbidden(msgSubmittedReadOnly)
	case err != nil:
		return nil, dependency("Failed to submit application", err)
	}

	s.log.Info(ctx, "application submitted", "application_id", id, "request_number", app.RequestNumber)
	return app, nil
}

// Get returns the application to its owner or an admin.
func (s *ApplicationService) Get(ctx context.Context, p *models.Principal, id int64) (*models.Application, error) {
	if p == nil {
		return nil, unauthenticated("Missing authorization header")
	}

	app, err := s.repomanager.Applications(s.db).GetByID(ctx, id)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, dependency("Failed to load application", err)
	}

	verdict, err := s.decider.DecideApplication(ctx, p, app)
	if err != nil {
		return nil, dependency("Failed to check access", err)
	}
	switch verdict {
	case access.DenyNotFound:
		return nil, notFound("Application not found")
	case access.DenyForbidden:
		return nil, forbidden("Access denied")
	}
	return app, nil
}

// ListDocuments lists an application's documents for its owner or an admin.
func (s *ApplicationService) ListDocuments(ctx context.Context, p *models.Principal, id int64) ([]*models.Document, error) {
	if _, err := s.Get(ctx, p, id); err != nil {
		return nil, err
	}

	docs, err := s.repomanager.Documents(s.db).ListByApplication(ctx, id)
	if err != nil {
		return nil, dependency("Failed to list documents", err)
	}
	return docs, nil
}

// IsAdmin reports the principal's admin flag.
func (s *ApplicationService) IsAdmin(ctx context.Context, p *models.Principal) (bool, error) {
	if p == nil {
		return false, unauthenticated("Missing authorization header")
	}
	ok, err := s.decider.IsAdmin(ctx, p)
	if err != nil {
		return false, dependency("Failed to check admin registry", err)
	}
	return ok, nil
}

func (s *ApplicationService) requireAdmin(ctx context.Context, p *models.Principal) error {
	ok, err := s.IsAdmin(ctx, p)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Warn(ctx, "admin access denied", "principal_id", p.ID)
		return forbidden("Admin access required")
	}
	return nil
}

// ListForAdmin lists submitted applications, newest first.
func (s *ApplicationService) ListForAdmin(ctx context.Context, p *models.Principal, f models.ApplicationFilter) ([]*models.Application, error) {
	if err := s.requireAdmin(ctx, p); err != nil {
		return nil, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, validation("Invalid status filter", map[string]any{"fields": []FieldError{{Field: "status", Rule: "oneof"}}})
	}
	if f.Type != "" {
		if err := s.validate.Var(string(f.Type), "oneof=pharmacy supermarket restaurant"); err != nil {
			return nil, validation("Invalid type filter", map[string]any{"fields": []FieldError{{Field: "type", Rule: "oneof"}}})
		}
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, validation("Invalid date range", map[string]any{"fields": []FieldError{{Field: "to", Rule: "gtefield"}}})
	}

	apps, err := s.repomanager.Applications(s.db).List(ctx, f)
	if err != nil {
		return nil, dependency("Failed to list applications", err)
	}
	return apps, nil
}

// Review approves or rejects a pending application. Only pending
// applications can be reviewed; anything else is a conflict.
func (s *ApplicationService) Review(ctx context.Context, p *models.Principal, id int64, action ReviewAction, note string) (*models.Application, error) {
	if err := s.requireAdmin(ctx, p); err != nil {
		return nil, err
	}

	var to models.ApplicationStatus
	switch action {
	case ActionApprove:
		to = models.StatusApproved
	case ActionReject:
		to = models.StatusRejected
	default:
		return nil, validation("action must be approve or reject", map[string]any{"fields": []FieldError{{Field: "action", Rule: "oneof"}}})
	}

	repo := s.repomanager.Applications(s.db)
	current, err := repo.GetByID(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, notFound("Application not found")
	}
	if err != nil {
		return nil, dependency("Failed to load application", err)
	}

	app, err := repo.Review(ctx, id, to, models.Review{
		ReviewedBy: p.Email,
		Note:       note,
		ReviewedAt: s.now(),
	})
	if errors.Is(err, common.ErrorConflict) {
		return nil, conflict("Application is not pending review", map[string]any{"status": current.Status})
	}
	if err != nil {
		return nil, dependency("Failed to review application", err)
	}

	s.log.Info(ctx, "application reviewed", "application_id", id, "status", app.Status, "reviewed_by", p.Email)
	return app, nil
}
