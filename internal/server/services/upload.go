package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/merchantdesk/internal/common"
	"github.com/dmitrijs2005/merchantdesk/internal/dbx"
	"github.com/dmitrijs2005/merchantdesk/internal/logging"
	"github.com/dmitrijs2005/merchantdesk/internal/server/models"
	"github.com/dmitrijs2005/merchantdesk/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/merchantdesk/internal/server/storage"
)

const (
	msgAppAccessDenied   = "Application not found or access denied"
	msgSubmittedReadOnly = "Cannot modify submitted application"
)

// UploadRequest asks for a grant to upload one document.
type UploadRequest struct {
	ApplicationID int64
	FileName      string
	MimeType      string
	Size          *int64
}

// UploadGrant is returned to the applicant, who PUTs the file to UploadURL
// with Headers and then confirms it.
type UploadGrant struct {
	UploadURL    string
	Method       string
	Headers      http.Header
	FileKey      string
	ExpiresIn    time.Duration
	MaxFileSize  int64
	AllowedTypes []string
}

// ConfirmRequest registers an uploaded object as a document. An empty
// Category files it as models.DocOther.
type ConfirmRequest struct {
	FileKey   string
	Category  models.DocumentCategory
	FileName  string
	MimeType  string
	SizeBytes int64
}

type UploadService struct {
	db          dbx.DB
	repomanager repomanager.RepositoryManager
	presigner   storage.Presigner
	log         logging.Logger
	now         func() time.Time
}

func NewUploadService(db dbx.DB, rm repomanager.RepositoryManager, p storage.Presigner, log logging.Logger) *UploadService {
	return &UploadService{
		db:          db,
		repomanager: rm,
		presigner:   p,
		log:         log.With("module", "upload"),
		now:         time.Now,
	}
}

func checkSize(size int64) *Error {
	if size < 0 {
		return validation("File size must not be negative", nil)
	}
	if size > MaxFileSize {
		return validation("File size too large. Maximum size: 10MB", map[string]any{"max_size_bytes": MaxFileSize})
	}
	return nil
}

func invalidMime() *Error {
	return validation("Invalid file type. Allowed types: PDF, JPG, PNG", map[string]any{"allowed_types": allowedTypes()})
}

// ownedDraft loads the application and requires the principal to own it
// and the application to still be a draft. Missing and foreign
// applications are reported identically.
func ownedDraft(ctx context.Context, load func(context.Context, int64) (*models.Application, error), p *models.Principal, id int64) (*models.Application, error) {
	app, err := load(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, forbidden(msgAppAccessDenied)
		}
		return nil, dependency("Failed to load application", err)
	}
	if !app.OwnedBy(p) {
		return nil, forbidden(msgAppAccessDenied)
	}
	if app.Status != models.StatusDraft {
		return nil, forbidden(msgSubmittedReadOnly)
	}
	return app, nil
}

// IssueUploadURL checks ownership, status, type and size, in that order,
// then mints a no-overwrite PUT grant for a freshly derived key.
func (s *UploadService) IssueUploadURL(ctx context.Context, p *models.Principal, req UploadRequest) (*UploadGrant, error) {
	if p == nil {
		return nil, unauthenticated("Missing authorization header")
	}
	if req.ApplicationID == 0 || req.FileName == "" || req.MimeType == "" {
		return nil, validation("Missing required fields: application_id, filename, mime_type", nil)
	}

	apps := s.repomanager.Applications(s.db)
	if _, err := ownedDraft(ctx, apps.GetByID, p, req.ApplicationID); err != nil {
		return nil, err
	}

	mime, ok := NormalizeMimeType(req.MimeType)
	if !ok {
		return nil, invalidMime()
	}
	if req.Size != nil {
		if err := checkSize(*req.Size); err != nil {
			return nil, err
		}
	}

	key, err := BuildFileKey(req.ApplicationID, s.now().UnixMilli(), req.FileName)
	if err != nil {
		return nil, validation("Invalid filename", map[string]any{"details": err.Error()})
	}

	grant, err := s.presigner.PresignUpload(ctx, key, mime, UploadURLTTL)
	if err != nil {
		s.log.Error(ctx, "error creating signed upload url", "file_key", key, "error", err)
		return nil, dependency("Failed to create upload URL", err)
	}

	s.log.Info(ctx, "upload url issued", "application_id", req.ApplicationID, "file_key", key, "applicant_id", p.ID)

	return &UploadGrant{
		UploadURL:    grant.URL,
		Method:       grant.Method,
		Headers:      grant.Header,
		FileKey:      key,
		ExpiresIn:    UploadURLTTL,
		MaxFileSize:  MaxFileSize,
		AllowedTypes: allowedTypes(),
	}, nil
}

// ConfirmUpload records a document after the client finished its upload.
// The application row is locked so a concurrent submit cannot slip in
// between the draft check and the insert.
func (s *UploadService) ConfirmUpload(ctx context.Context, p *models.Principal, applicationID int64, req ConfirmRequest) (*models.Document, error) {
	if p == nil {
		return nil, unauthenticated("Missing authorization header")
	}
	if applicationID == 0 || req.FileKey == "" || req.FileName == "" || req.MimeType == "" {
		return nil, validation("Missing required fields: file_key, file_name, mime_type", nil)
	}
	rest, ok := strings.CutPrefix(req.FileKey, KeyPrefix(applicationID))
	if !ok || rest == "" || strings.ContainsAny(rest, `/\`) {
		return nil, validation("file_key does not belong to this application", nil)
	}
	mime, ok := NormalizeMimeType(req.MimeType)
	if !ok {
		return nil, invalidMime()
	}
	if err := checkSize(req.SizeBytes); err != nil {
		return nil, err
	}
	category := req.Category
	if category == "" {
		category = models.DocOther
	}
	if !category.Valid() {
		return nil, validation("Invalid document category", map[string]any{
			"allowed_categories": []models.DocumentCategory{
				models.DocCommercialRegister, models.DocTaxCard, models.DocNationalID, models.DocOther,
			},
		})
	}

	var doc *models.Document
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		apps := s.repomanager.Applications(tx)
		if _, err := ownedDraft(ctx, apps.GetByIDForUpdate, p, applicationID); err != nil {
			return err
		}

		var err error
		doc, err = s.repomanager.Documents(tx).Create(ctx, &models.Document{
			FileKey:       req.FileKey,
			ApplicationID: applicationID,
			Category:      category,
			FileName:      req.FileName,
			MimeType:      mime,
			SizeBytes:     req.SizeBytes,
		})
		if errors.Is(err, common.ErrorAlreadyExists) {
			return conflict("Document already registered", map[string]any{"file_key": req.FileKey})
		}
		if err != nil {
			return dependency("Failed to save document", err)
		}
		return nil
	})
	if err != nil {
		var se *Error
		if errors.As(err, &se) {
			if se.Kind == KindDependency {
				s.log.Error(ctx, "confirm upload failed", "application_id", applicationID, "error", err)
			}
			return nil, se
		}
		s.log.Error(ctx, "confirm upload tx failed", "application_id", applicationID, "error", err)
		return nil, dependency("Failed to save document", err)
	}

	s.log.Info(ctx, "document registered", "application_id", applicationID, "file_key", doc.FileKey)
	return doc, nil
}
