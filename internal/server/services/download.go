package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/merchantdesk/internal/common"
	"github.com/dmitrijs2005/merchantdesk/internal/dbx"
	"github.com/dmitrijs2005/merchantdesk/internal/logging"
	"github.com/dmitrijs2005/merchantdesk/internal/server/access"
	"github.com/dmitrijs2005/merchantdesk/internal/server/models"
	"github.com/dmitrijs2005/merchantdesk/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/merchantdesk/internal/server/storage"
)

// DownloadGrant is a read grant plus the stored document metadata.
type DownloadGrant struct {
	DownloadURL string
	Method      string
	Headers     http.Header
	FileName    string
	MimeType    string
	SizeBytes   int64
	ExpiresIn   time.Duration
	CreatedAt   time.Time
}

type DownloadService struct {
	db          dbx.DB
	repomanager repomanager.RepositoryManager
	decider     *access.Decider
	presigner   storage.Presigner
	log         logging.Logger
}

func NewDownloadService(db dbx.DB, rm repomanager.RepositoryManager, d *access.Decider, p storage.Presigner, log logging.Logger) *DownloadService {
	return &DownloadService{
		db:          db,
		repomanager: rm,
		decider:     d,
		presigner:   p,
		log:         log.With("module", "download"),
	}
}

// IssueDownloadURL distinguishes an unknown key (not found) from a known
// key the principal may not read (forbidden).
func (s *DownloadService) IssueDownloadURL(ctx context.Context, p *models.Principal, fileKey string) (*DownloadGrant, error) {
	if p == nil {
		return nil, unauthenticated("Missing authorization header")
	}
	if fileKey == "" {
		return nil, validation("Missing required field: file_key", nil)
	}

	doc, err := s.repomanager.Documents(s.db).GetByFileKey(ctx, fileKey)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		s.log.Error(ctx, "document lookup failed", "file_key", fileKey, "error", err)
		return nil, dependency("Failed to load document", err)
	}

	verdict, err := s.decider.Decide(ctx, p, doc)
	if err != nil {
		s.log.Error(ctx, "access decision failed", "file_key", fileKey, "error", err)
		return nil, dependency("Failed to check access", err)
	}
	switch verdict {
	case access.DenyNotFound:
		return nil, notFound("Document not found")
	case access.DenyForbidden:
		s.log.Warn(ctx, "download denied", "file_key", fileKey, "principal_id", p.ID)
		return nil, forbidden("Access denied. You do not have permission to access this document.")
	}

	grant, err := s.presigner.PresignDownload(ctx, fileKey, DownloadURLTTL)
	if err != nil {
		s.log.Error(ctx, "error creating signed download url", "file_key", fileKey, "error", err)
		return nil, dependency("Failed to create download URL", err)
	}

	return &DownloadGrant{
		DownloadURL: grant.URL,
		Method:      grant.Method,
		Headers:     grant.Header,
		FileName:    doc.FileName,
		MimeType:    doc.MimeType,
		SizeBytes:   doc.SizeBytes,
		ExpiresIn:   DownloadURLTTL,
		CreatedAt:   doc.CreatedAt,
	}, nil
}
