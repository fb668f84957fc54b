// Package httpapi exposes the services over JSON/HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/merchantdesk/internal/logging"
	"github.com/dmitrijs2005/merchantdesk/internal/server/auth"
	"github.com/dmitrijs2005/merchantdesk/internal/server/models"
	"github.com/dmitrijs2005/merchantdesk/internal/server/services"
)

// Uploads issues upload grants and confirms finished uploads.
type Uploads interface {
	IssueUploadURL(ctx context.Context, p *models.Principal, req services.UploadRequest) (*services.UploadGrant, error)
	ConfirmUpload(ctx context.Context, p *models.Principal, applicationID int64, req services.ConfirmRequest) (*models.Document, error)
}

// Downloads issues read grants.
type Downloads interface {
	IssueDownloadURL(ctx context.Context, p *models.Principal, fileKey string) (*services.DownloadGrant, error)
}

// Applications is the wizard and admin console.
type Applications interface {
	LoadOrCreateDraft(ctx context.Context, p *models.Principal) (*models.Application, bool, error)
	SaveStep(ctx context.Context, p *models.Principal, id int64, patch models.DetailsPatch) (*models.Application, error)
	Submit(ctx context.Context, p *models.Principal, id int64) (*models.Application, error)
	Get(ctx context.Context, p *models.Principal, id int64) (*models.Application, error)
	ListDocuments(ctx context.Context, p *models.Principal, id int64) ([]*models.Document, error)
	IsAdmin(ctx context.Context, p *models.Principal) (bool, error)
	ListForAdmin(ctx context.Context, p *models.Principal, f models.ApplicationFilter) ([]*models.Application, error)
	Review(ctx context.Context, p *models.Principal, id int64, action services.ReviewAction, note string) (*models.Application, error)
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Uploads        Uploads
	Downloads      Downloads
	Applications   Applications
	Verifier       auth.Verifier
	DB             Pinger
	AllowedOrigins []string
}

type Server struct {
	address         string
	shutdownTimeout time.Duration
	logger          logging.Logger
	deps            Deps
	handler         http.Handler
}

func NewServer(address string, shutdownTimeout time.Duration, l logging.Logger, d Deps) *Server {
	s := &Server{
		address:         address,
		shutdownTimeout: shutdownTimeout,
		logger:          l.With("module", "http_server"),
		deps:            d,
	}
	s.handler = s.routes()
	return s
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(metrics)
	r.Use(accessLog(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors(s.deps.AllowedOrigins))

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(authenticate(s.deps.Verifier, s.logger))

		r.Post("/get-upload-url", s.getUploadURL)
		r.Post("/get-download-url", s.getDownloadURL)
		r.Get("/me", s.me)

		r.Post("/applications/draft", s.loadOrCreateDraft)
		r.Route("/applications/{id}", func(r chi.Router) {
			r.Get("/", s.getApplication)
			r.Patch("/", s.saveStep)
			r.Post("/submit", s.submit)
			r.Post("/documents", s.confirmUpload)
			r.Get("/documents", s.listDocuments)
		})

		r.Get("/admin/applications", s.listForAdmin)
		r.Post("/admin/applications/{id}/review", s.review)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "Method not allowed"})
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
