package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/merchantdesk/internal/server/models"
	"github.com/dmitrijs2005/merchantdesk/internal/server/services"
)

const msgInvalidJSON = "Invalid JSON body"

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.deps.DB != nil {
		if err := s.deps.DB.PingContext(r.Context()); err != nil {
			s.logger.Warn(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) getUploadURL(w http.ResponseWriter, r *http.Request) {
	var req uploadURLRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, msgInvalidJSON)
		return
	}

	grant, err := s.deps.Uploads.IssueUploadURL(r.Context(), PrincipalFromContext(r.Context()), services.UploadRequest{
		ApplicationID: req.ApplicationID,
		FileName:      req.FileName,
		MimeType:      req.MimeType,
		Size:          req.Size,
	})
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toUploadResponse(grant))
}

func (s *Server) getDownloadURL(w http.ResponseWriter, r *http.Request) {
	var req downloadURLRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, msgInvalidJSON)
		return
	}

	grant, err := s.deps.Downloads.IssueDownloadURL(r.Context(), PrincipalFromContext(r.Context()), req.FileKey)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toDownloadResponse(grant))
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())
	isAdmin, err := s.deps.Applications.IsAdmin(r.Context(), p)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{ID: p.ID, Email: p.Email, IsAdmin: isAdmin})
}

func (s *Server) loadOrCreateDraft(w http.ResponseWriter, r *http.Request) {
	app, created, err := s.deps.Applications.LoadOrCreateDraft(r.Context(), PrincipalFromContext(r.Context()))
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toApplicationResponse(app))
}

func (s *Server) getApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "Invalid application id")
		return
	}
	app, err := s.deps.Applications.Get(r.Context(), PrincipalFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationResponse(app))
}

func (s *Server) saveStep(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "Invalid application id")
		return
	}
	var patch models.DetailsPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		badRequest(w, msgInvalidJSON)
		return
	}

	app, err := s.deps.Applications.SaveStep(r.Context(), PrincipalFromContext(r.Context()), id, patch)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationResponse(app))
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "Invalid application id")
		return
	}
	app, err := s.deps.Applications.Submit(r.Context(), PrincipalFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationResponse(app))
}

func (s *Server) confirmUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "Invalid application id")
		return
	}
	var req confirmUploadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, msgInvalidJSON)
		return
	}

	doc, err := s.deps.Uploads.ConfirmUpload(r.Context(), PrincipalFromContext(r.Context()), id, services.ConfirmRequest{
		FileKey:   req.FileKey,
		Category:  models.DocumentCategory(req.Category),
		FileName:  req.FileName,
		MimeType:  req.MimeType,
		SizeBytes: req.SizeBytes,
	})
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "Invalid application id")
		return
	}
	docs, err := s.deps.Applications.ListDocuments(r.Context(), PrincipalFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	out := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocumentResponse(d))
	}
	writeJSON(w, http.StatusOK, out)
}

// parseDate accepts RFC 3339 or a bare YYYY-MM-DD. A bare "to" date
// covers the whole day.
func parseDate(v string, endOfDay bool) (*time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, true
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, false
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, true
}

func (s *Server) listForAdmin(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, ok := parseDate(q.Get("from"), false)
	if !ok {
		badRequest(w, "Invalid from date")
		return
	}
	to, ok := parseDate(q.Get("to"), true)
	if !ok {
		badRequest(w, "Invalid to date")
		return
	}

	apps, err := s.deps.Applications.ListForAdmin(r.Context(), PrincipalFromContext(r.Context()), models.ApplicationFilter{
		Status:      models.ApplicationStatus(strings.TrimSpace(q.Get("status"))),
		Type:        models.BusinessType(strings.TrimSpace(q.Get("type"))),
		Governorate: strings.TrimSpace(q.Get("governorate")),
		From:        from,
		To:          to,
	})
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationList(apps))
}

func (s *Server) review(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "Invalid application id")
		return
	}
	var req reviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, msgInvalidJSON)
		return
	}

	app, err := s.deps.Applications.Review(r.Context(), PrincipalFromContext(r.Context()), id,
		services.ReviewAction(strings.ToLower(strings.TrimSpace(req.Action))), req.Note)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationResponse(app))
}
