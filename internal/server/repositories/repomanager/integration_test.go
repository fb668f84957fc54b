//go:build integration

package repomanager

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dmitrijs2005/merchantdesk/internal/common"
	"github.com/dmitrijs2005/merchantdesk/internal/dbx"
	"github.com/dmitrijs2005/merchantdesk/internal/server/models"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("merchantdesk_test"),
		postgres.WithUsername("merchantdesk"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, NewPostgresRepositoryManager().RunMigrations(ctx, db))
	return db
}

func TestIntegration_ApplicationLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	m := NewPostgresRepositoryManager()

	apps := m.Applications(db)
	docs := m.Documents(db)
	adm := m.Admins(db)

	draft, err := apps.Create(ctx, "user-1", "one@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, draft.Status)
	assert.Equal(t, "one@example.com", draft.ApplicantEmail)

	_, err = apps.Create(ctx, "user-1", "one@example.com")
	require.ErrorIs(t, err, common.ErrorAlreadyExists, "one open draft per applicant")

	pharmacy := models.BusinessPharmacy
	name := "Nile Pharma"
	_, err = apps.UpdateDetails(ctx, draft.ID, models.DetailsPatch{Type: &pharmacy, BusinessName: &name})
	require.NoError(t, err)
	hours := "24/7"
	stepped, err := apps.UpdateDetails(ctx, draft.ID, models.DetailsPatch{PharmacyHours: &hours})
	require.NoError(t, err)
	assert.Equal(t, models.BusinessPharmacy, stepped.Details.Type, "earlier step kept")
	assert.Equal(t, "Nile Pharma", stepped.Details.BusinessName)
	assert.Equal(t, "24/7", stepped.Details.PharmacyHours)

	bad := "franchise"
	_, err = apps.UpdateDetails(ctx, draft.ID, models.DetailsPatch{StoreType: &bad})
	require.Error(t, err, "store_type check constraint")

	key := "applications/1/1700000000000_cr.pdf"
	err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		locked, err := m.Applications(tx).GetByIDForUpdate(ctx, draft.ID)
		if err != nil {
			return err
		}
		_, err = m.Documents(tx).Create(ctx, &models.Document{
			FileKey: key, ApplicationID: locked.ID, Category: models.DocCommercialRegister, FileName: "cr.pdf", MimeType: "application/pdf", SizeBytes: 10,
		})
		return err
	})
	require.NoError(t, err)

	_, err = docs.Create(ctx, &models.Document{FileKey: key, ApplicationID: draft.ID, FileName: "x", MimeType: "application/pdf"})
	require.ErrorIs(t, err, common.ErrorAlreadyExists)

	owned, err := docs.GetByFileKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "user-1", owned.ApplicantID)
	assert.Equal(t, models.DocCommercialRegister, owned.Category)
	assert.Equal(t, models.StatusDraft, owned.ApplicationStatus)

	now := time.Now().UTC().Truncate(time.Microsecond)
	submitted, err := apps.Submit(ctx, draft.ID, "LXB-20250101-000001", now)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, submitted.Status)

	late := "late"
	_, err = apps.UpdateDetails(ctx, draft.ID, models.DetailsPatch{BusinessName: &late})
	require.ErrorIs(t, err, common.ErrorConflict)

	listed, err := apps.List(ctx, models.ApplicationFilter{Status: models.StatusPending})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	require.NoError(t, adm.Add(ctx, "Boss@Example.com"))
	ok, err := adm.Exists(ctx, "boss@example.COM")
	require.NoError(t, err)
	assert.True(t, ok)

	reviewed, err := apps.Review(ctx, draft.ID, models.StatusApproved, models.Review{ReviewedBy: "boss@example.com", ReviewedAt: now})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, reviewed.Status)

	_, err = apps.Review(ctx, draft.ID, models.StatusRejected, models.Review{ReviewedBy: "boss@example.com", ReviewedAt: now})
	require.ErrorIs(t, err, common.ErrorConflict)

	next, err := apps.Create(ctx, "user-1", "one@example.com")
	require.NoError(t, err, "a new draft is allowed once the previous one was submitted")
	assert.NotEqual(t, draft.ID, next.ID)
}
