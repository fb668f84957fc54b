package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/merchantdesk/internal/common"
	"github.com/dmitrijs2005/merchantdesk/internal/dbx"
	"github.com/dmitrijs2005/merchantdesk/internal/logging"
	"github.com/dmitrijs2005/merchantdesk/internal/server/access"
	"github.com/dmitrijs2005/merchantdesk/internal/server/models"
	"github.com/dmitrijs2005/merchantdesk/internal/server/repositories/admins"
	"github.com/dmitrijs2005/merchantdesk/internal/server/repositories/applications"
	"github.com/dmitrijs2005/merchantdesk/internal/server/repositories/documents"
	"github.com/dmitrijs2005/merchantdesk/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/merchantdesk/internal/server/storage"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 123_000_000, time.UTC)

// -------- test fakes --------

type fakeAppsRepo struct {
	applications.Repository
	mu     sync.Mutex
	apps   map[int64]*models.Application
	nextID int64
	err    error

	submitErrs []error
	locked     []int64
}

func newFakeApps(apps ...*models.Application) *fakeAppsRepo {
	f := &fakeAppsRepo{apps: map[int64]*models.Application{}, nextID: 100}
	for _, a := range apps {
		f.apps[a.ID] = a
	}
	return f
}

func (f *fakeAppsRepo) get(id int64) (*models.Application, error) {
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.apps[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAppsRepo) GetByID(_ context.Context, id int64) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.get(id)
}

func (f *fakeAppsRepo) GetByIDForUpdate(_ context.Context, id int64) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked = append(f.locked, id)
	return f.get(id)
}

func (f *fakeAppsRepo) FindDraft(_ context.Context, applicantID string) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, a := range f.apps {
		if a.ApplicantID == applicantID && a.Status == models.StatusDraft {
			cp := *a
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeAppsRepo) Create(_ context.Context, applicantID, applicantEmail string) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.nextID++
	a := &models.Application{ID: f.nextID, ApplicantID: applicantID, ApplicantEmail: applicantEmail, Status: models.StatusDraft, CreatedAt: fixedNow, UpdatedAt: fixedNow}
	f.apps[a.ID] = a
	cp := *a
	return &cp, nil
}

func (f *fakeAppsRepo) UpdateDetails(_ context.Context, id int64, p models.DetailsPatch) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.apps[id]
	if !ok || a.Status != models.StatusDraft {
		return nil, common.ErrorConflict
	}
	a.Details = p.Apply(a.Details)
	cp := *a
	return &cp, nil
}

func (f *fakeAppsRepo) Submit(_ context.Context, id int64, requestNumber string, at time.Time) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.submitErrs) > 0 {
		err := f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	a, ok := f.apps[id]
	if !ok || a.Status != models.StatusDraft {
		return nil, common.ErrorConflict
	}
	a.Status = models.StatusPending
	a.RequestNumber = requestNumber
	a.SubmittedAt = &at
	cp := *a
	return &cp, nil
}

func (f *fakeAppsRepo) Review(_ context.Context, id int64, to models.ApplicationStatus, r models.Review) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.apps[id]
	if !ok || a.Status != models.StatusPending {
		return nil, common.ErrorConflict
	}
	a.Status = to
	a.Review = &r
	cp := *a
	return &cp, nil
}

func (f *fakeAppsRepo) List(_ context.Context, flt models.ApplicationFilter) ([]*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.Application
	for _, a := range f.apps {
		if a.Status == models.StatusDraft {
			continue
		}
		if flt.Status != "" && a.Status != flt.Status {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type fakeDocsRepo struct {
	documents.Repository
	mu     sync.Mutex
	docs   map[string]*models.Document
	apps   *fakeAppsRepo
	nextID int64
	err    error
}

func newFakeDocs(apps *fakeAppsRepo, docs ...*models.Document) *fakeDocsRepo {
	f := &fakeDocsRepo{docs: map[string]*models.Document{}, apps: apps}
	for _, d := range docs {
		f.docs[d.FileKey] = d
	}
	return f
}

func (f *fakeDocsRepo) Create(_ context.Context, d *models.Document) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.docs[d.FileKey]; ok {
		return nil, common.ErrorAlreadyExists
	}
	f.nextID++
	cp := *d
	cp.ID = f.nextID
	cp.CreatedAt = fixedNow
	f.docs[d.FileKey] = &cp
	out := cp
	return &out, nil
}

func (f *fakeDocsRepo) GetByFileKey(ctx context.Context, key string) (*models.DocumentWithOwner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	d, ok := f.docs[key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	app, err := f.apps.GetByID(ctx, d.ApplicationID)
	if err != nil {
		return nil, err
	}
	return &models.DocumentWithOwner{Document: *d, ApplicantID: app.ApplicantID, ApplicationStatus: app.Status}, nil
}

func (f *fakeDocsRepo) ListByApplication(_ context.Context, id int64) ([]*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.Document
	for _, d := range f.docs {
		if d.ApplicationID == id {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileKey < out[j].FileKey })
	return out, nil
}

type fakeAdminsRepo struct {
	admins.Repository
	emails map[string]bool
	err    error
}

func (f *fakeAdminsRepo) Exists(_ context.Context, email string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.emails[strings.ToLower(email)], nil
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	apps   *fakeAppsRepo
	docs   *fakeDocsRepo
	admins *fakeAdminsRepo
}

func (m *fakeRepoManager) Applications(dbx.DBTX) applications.Repository { return m.apps }
func (m *fakeRepoManager) Documents(dbx.DBTX) documents.Repository { return m.docs }
func (m *fakeRepoManager) Admins(dbx.DBTX) admins.Repository { return m.admins }

type fakePresigner struct {
	err       error
	uploads   []string
	downloads []string
	lastMime  string
	lastTTL   time.Duration
}

func (f *fakePresigner) PresignUpload(_ context.Context, key, contentType string, ttl time.Duration) (*storage.Grant, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.uploads = append(f.uploads, key)
	f.lastMime = contentType
	f.lastTTL = ttl
	return &storage.Grant{
		URL:       "https://store.test/" + key + "?sig=put",
		Method:    http.MethodPut,
		Header:    http.Header{"If-None-Match": []string{"*"}},
		ExpiresIn: ttl,
	}, nil
}

func (f *fakePresigner) PresignDownload(_ context.Context, key string, ttl time.Duration) (*storage.Grant, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.downloads = append(f.downloads, key)
	f.lastTTL = ttl
	return &storage.Grant{URL: "https://store.test/" + key + "?sig=get", Method: http.MethodGet, ExpiresIn: ttl}, nil
}

// -------- fixtures --------

const (
	ownerID    = "user-x"
	adminEmail = "z@admin.com"
)

var (
	owner    = &models.Principal{ID: ownerID, Email: "x@example.com"}
	stranger = &models.Principal{ID: "user-y", Email: "y@example.com"}
	admin    = &models.Principal{ID: "user-z", Email: adminEmail}
)

type env struct {
	db        *sql.DB
	mock      sqlmock.Sqlmock
	rm        *fakeRepoManager
	presigner *fakePresigner
	decider   *access.Decider
}

func newEnv(t *testing.T, apps ...*models.Application) *env {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	appsRepo := newFakeApps(apps...)
	adminsRepo := &fakeAdminsRepo{emails: map[string]bool{adminEmail: true}}
	rm := &fakeRepoManager{apps: appsRepo, docs: newFakeDocs(appsRepo), admins: adminsRepo}

	return &env{
		db:        db,
		mock:      mock,
		rm:        rm,
		presigner: &fakePresigner{},
		decider:   access.NewDecider(adminsRepo),
	}
}

func (e *env) upload() *UploadService {
	s := NewUploadService(e.db, e.rm, e.presigner, logging.Nop())
	s.now = func() time.Time { return fixedNow }
	return s
}

func (e *env) download() *DownloadService {
	return NewDownloadService(e.db, e.rm, e.decider, e.presigner, logging.Nop())
}

func (e *env) applications() *ApplicationService {
	s := NewApplicationService(e.db, e.rm, e.decider, logging.Nop())
	s.now = func() time.Time { return fixedNow }
	s.randInt = func(int) int { return 42 }
	return s
}

func draftApp(id int64, applicant string) *models.Application {
	return &models.Application{ID: id, ApplicantID: applicant, Status: models.StatusDraft}
}

func appWithStatus(id int64, applicant string, st models.ApplicationStatus) *models.Application {
	return &models.Application{ID: id, ApplicantID: applicant, Status: st}
}

func requireKind(t *testing.T, err error, want Kind) *Error {
	t.Helper()
	require.Error(t, err)
	var se *Error
	require.True(t, errors.As(err, &se), "want *Error, got %T: %v", err, err)
	require.Equal(t, want, se.Kind, "message: %s", se.Message)
	return se
}

func int64p(v int64) *int64 { return &v }

func strp(s string) *string { return &s }

// withDocuments registers one document per category on the application.
func (e *env) withDocuments(appID int64, categories ...models.DocumentCategory) {
	for i, c := range categories {
		key := fmt.Sprintf("%s%d_%s.pdf", KeyPrefix(appID), i+1, c)
		e.rm.docs.docs[key] = &models.Document{ID: int64(i + 1), FileKey: key, ApplicationID: appID, Category: c}
	}
}
