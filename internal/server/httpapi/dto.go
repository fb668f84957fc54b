package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/merchantdesk/internal/server/models"
	"github.com/dmitrijs2005/merchantdesk/internal/server/services"
)

type uploadURLRequest struct {
	ApplicationID int64  `json:"application_id"`
	FileName      string `json:"filename"`
	MimeType      string `json:"mime_type"`
	Size          *int64 `json:"size,omitempty"`
}

type uploadURLResponse struct {
	UploadURL    string            `json:"upload_url"`
	Method       string            `json:"method"`
	Headers      map[string]string `json:"headers,omitempty"`
	FileKey      string            `json:"file_key"`
	ExpiresIn    int               `json:"expires_in"`
	MaxFileSize  int64             `json:"max_file_size"`
	AllowedTypes []string          `json:"allowed_types"`
}

type downloadURLRequest struct {
	FileKey string `json:"file_key"`
}

type downloadURLResponse struct {
	DownloadURL string    `json:"download_url"`
	FileName    string    `json:"file_name"`
	MimeType    string    `json:"mime_type"`
	SizeBytes   int64     `json:"size_bytes"`
	ExpiresIn   int       `json:"expires_in"`
	CreatedAt   time.Time `json:"created_at"`
}

type confirmUploadRequest struct {
	FileKey   string `json:"file_key"`
	Category  string `json:"category"`
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

type documentResponse struct {
	ID            int64     `json:"id"`
	FileKey       string    `json:"file_key"`
	ApplicationID int64     `json:"application_id"`
	Category      string    `json:"category"`
	FileName      string    `json:"file_name"`
	MimeType      string    `json:"mime_type"`
	SizeBytes     int64     `json:"size_bytes"`
	CreatedAt     time.Time `json:"created_at"`
}

type applicationResponse struct {
	ID             int64  `json:"id"`
	ApplicantID    string `json:"applicant_id"`
	ApplicantEmail string `json:"applicant_email,omitempty"`
	Status         string `json:"status"`
	RequestNumber  string `json:"request_number,omitempty"`
	models.ApplicationDetails

	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ReviewedBy  string     `json:"reviewed_by,omitempty"`
	ReviewNote  string     `json:"review_note,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type reviewRequest struct {
	Action string `json:"action"`
	Note   string `json:"note"`
}

type meResponse struct {
	ID      string `json:"id"`
	Email   string `json:"email,omitempty"`
	IsAdmin bool   `json:"is_admin"`
}

func flattenHeader(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func toUploadResponse(g *services.UploadGrant) uploadURLResponse {
	return uploadURLResponse{
		UploadURL:    g.UploadURL,
		Method:       g.Method,
		Headers:      flattenHeader(g.Headers),
		FileKey:      g.FileKey,
		ExpiresIn:    int(g.ExpiresIn / time.Second),
		MaxFileSize:  g.MaxFileSize,
		AllowedTypes: g.AllowedTypes,
	}
}

func toDownloadResponse(g *services.DownloadGrant) downloadURLResponse {
	return downloadURLResponse{
		DownloadURL: g.DownloadURL,
		FileName:    g.FileName,
		MimeType:    g.MimeType,
		SizeBytes:   g.SizeBytes,
		ExpiresIn:   int(g.ExpiresIn / time.Second),
		CreatedAt:   g.CreatedAt,
	}
}

func toDocumentResponse(d *models.Document) documentResponse {
	return documentResponse{
		ID:            d.ID,
		FileKey:       d.FileKey,
		ApplicationID: d.ApplicationID,
		Category:      string(d.Category),
		FileName:      d.FileName,
		MimeType:      d.MimeType,
		SizeBytes:     d.SizeBytes,
		CreatedAt:     d.CreatedAt,
	}
}

func toApplicationResponse(a *models.Application) applicationResponse {
	out := applicationResponse{
		ID:                 a.ID,
		ApplicantID:        a.ApplicantID,
		ApplicantEmail:     a.ApplicantEmail,
		Status:             string(a.Status),
		RequestNumber:      a.RequestNumber,
		ApplicationDetails: a.Details,
		SubmittedAt:        a.SubmittedAt,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
	if a.Review != nil {
		out.ReviewedBy = a.Review.ReviewedBy
		out.ReviewNote = a.Review.Note
		at := a.Review.ReviewedAt
		out.ReviewedAt = &at
	}
	return out
}

func toApplicationList(apps []*models.Application) []applicationResponse {
	out := make([]applicationResponse, 0, len(apps))
	for _, a := range apps {
		out = append(out, toApplicationResponse(a))
	}
	return out
}
