package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/littlesprouts/admissions-api/internal/dto"
	"github.com/littlesprouts/admissions-api/internal/models"
	"github.com/littlesprouts/admissions-api/internal/repository"
)

type adminTestEnv struct {
	svc      AdminApplicationService
	repo     repository.ApplicationRepository
	redis    *miniredis.Miniredis
	uploads  *submitterStub
	notifier *notifierStub
}

func setupAdminService(t *testing.T) *adminTestEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Application{}))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := repository.NewApplicationRepository(db)
	uploads := &submitterStub{}
	notifier := &notifierStub{}
	svc := NewAdminApplicationService(repo, uploads, validator.New(), notifier, client, time.Minute, testLogger())

	return &adminTestEnv{svc: svc, repo: repo, redis: mr, uploads: uploads, notifier: notifier}
}

func seedApplication(t *testing.T, env *adminTestEnv, mutate func(*models.Application)) models.Application {
	t.Helper()

	app := models.Application{
		ChildFullName: "Amaya Perera",
		DateOfBirth:   "2022-04-18",
		Parent1Name:   "Nimal Perera",
		Parent1Email:  "nimal@example.com",
		Parent1Mobile: "+94771234567",
		ProgramType:   models.ProgramToddler,
		Status:        models.StatusPending,
		SubmittedBy:   models.SubmittedByWebsite,
	}
	if mutate != nil {
		mutate(&app)
	}
	require.NoError(t, env.repo.Create(context.Background(), &app))

	return app
}

func TestAdminListFiltersAndPaginates(t *testing.T) {
	env := setupAdminService(t)
	ctx := context.Background()

	seedApplication(t, env, nil)
	seedApplication(t, env, func(app *models.Application) {
		app.ChildFullName = "Bandu Silva"
		app.Status = models.StatusApproved
	})
	seedApplication(t, env, func(app *models.Application) {
		app.ChildFullName = "Chathura Fernando"
	})

	all, err := env.svc.List(ctx, dto.ApplicationListRequest{})
	require.NoError(t, err)
	require.Len(t, all.Items, 3)
	require.Equal(t, int64(3), all.Pagination.TotalItems)
	require.Equal(t, 1, all.Pagination.TotalPages)

	pending, err := env.svc.List(ctx, dto.ApplicationListRequest{Status: models.StatusPending})
	require.NoError(t, err)
	require.Len(t, pending.Items, 2)

	found, err := env.svc.List(ctx, dto.ApplicationListRequest{Search: "bandu"})
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	require.Equal(t, "Bandu Silva", found.Items[0].ChildFullName)

	paged, err := env.svc.List(ctx, dto.ApplicationListRequest{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, paged.Items, 1)
	require.Equal(t, 2, paged.Pagination.TotalPages)
}

func TestAdminGetResolvesLegacyDocuments(t *testing.T) {
	env := setupAdminService(t)
	ctx := context.Background()

	app := seedApplication(t, env, func(app *models.Application) {
		app.UploadedDocuments = map[string]interface{}{
			models.SlotChildPhoto: map[string]interface{}{
				"url":  "https://legacy.example/photo.png",
				"name": "photo.png",
			},
		}
	})

	fetched, err := env.svc.Get(ctx, app.ID)
	require.NoError(t, err)
	require.Equal(t, "https://legacy.example/photo.png", fetched.Documents[models.SlotChildPhoto].FileURL)
	require.Equal(t, "photo.png", fetched.Documents[models.SlotChildPhoto].FileName)

	_, err = env.svc.Get(ctx, 9999)
	require.ErrorIs(t, err, ErrApplicationNotFound)
}

func TestAdminUpdatePartialEdit(t *testing.T) {
	env := setupAdminService(t)
	ctx := context.Background()

	app := seedApplication(t, env, nil)

	notes := "Interview scheduled"
	updated, err := env.svc.Update(ctx, app.ID, dto.AdminApplicationUpdateRequest{Notes: &notes})
	require.NoError(t, err)
	require.Equal(t, "Interview scheduled", updated.Notes)
	// Untouched fields survive a partial edit.
	require.Equal(t, "Amaya Perera", updated.ChildFullName)
	require.Equal(t, models.StatusPending, updated.Status)
	require.Empty(t, env.notifier.statusChanges)
}

func TestAdminUpdateStatusChangeNotifies(t *testing.T) {
	env := setupAdminService(t)
	ctx := context.Background()

	app := seedApplication(t, env, nil)

	status := models.StatusApproved
	updated, err := env.svc.Update(ctx, app.ID, dto.AdminApplicationUpdateRequest{Status: &status})
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, updated.Status)
	require.Equal(t, []string{"pending->approved"}, env.notifier.statusChanges)

	// Re-saving the same status is not a transition.
	_, err = env.svc.Update(ctx, app.ID, dto.AdminApplicationUpdateRequest{Status: &status})
	require.NoError(t, err)
	require.Len(t, env.notifier.statusChanges, 1)
}

func TestAdminUpdateRejectsInvalidStatus(t *testing.T) {
	env := setupAdminService(t)

	app := seedApplication(t, env, nil)

	status := "archived"
	_, err := env.svc.Update(context.Background(), app.ID, dto.AdminApplicationUpdateRequest{Status: &status})
	require.Error(t, err)
}

func TestAdminUpdateWritesNormalisedDocuments(t *testing.T) {
	env := setupAdminService(t)
	ctx := context.Background()

	app := seedApplication(t, env, func(app *models.Application) {
		app.LegacyFields = map[string]interface{}{
			models.SlotBirthCertificate: "https://legacy.example/old-birth.pdf",
		}
	})

	updated, err := env.svc.Update(ctx, app.ID, dto.AdminApplicationUpdateRequest{
		Documents: map[string]models.DocumentRecord{
			models.SlotBirthCertificate: {FileName: "birth-v2.pdf", FileURL: "https://storage.example/birth-v2.pdf"},
			"diploma":                   {FileName: "ignored.pdf", FileURL: "https://storage.example/ignored.pdf"},
		},
	})
	require.NoError(t, err)
	// The saved record wins over the legacy column, and unknown slots are dropped.
	require.Equal(t, "https://storage.example/birth-v2.pdf", updated.Documents[models.SlotBirthCertificate].FileURL)
	require.NotContains(t, updated.Documents, "diploma")
}

func TestAdminUpdateSanitizesFreeText(t *testing.T) {
	env := setupAdminService(t)

	app := seedApplication(t, env, nil)

	notes := `<script>alert("x")</script>Follow up on Monday`
	updated, err := env.svc.Update(context.Background(), app.ID, dto.AdminApplicationUpdateRequest{Notes: &notes})
	require.NoError(t, err)
	require.Equal(t, "Follow up on Monday", updated.Notes)
}

func TestAdminDelete(t *testing.T) {
	env := setupAdminService(t)
	ctx := context.Background()

	app := seedApplication(t, env, nil)

	require.NoError(t, env.svc.Delete(ctx, app.ID))
	_, err := env.svc.Get(ctx, app.ID)
	require.ErrorIs(t, err, ErrApplicationNotFound)

	require.ErrorIs(t, env.svc.Delete(ctx, app.ID), ErrApplicationNotFound)
}

func TestAdminStatsCaching(t *testing.T) {
	env := setupAdminService(t)
	ctx := context.Background()

	seedApplication(t, env, nil)
	seedApplication(t, env, func(app *models.Application) { app.Status = models.StatusApproved })
	seedApplication(t, env, func(app *models.Application) { app.Status = models.StatusRejected })

	first, err := env.svc.Stats(ctx)
	require.NoError(t, err)
	require.False(t, first.CacheHit)
	require.Equal(t, int64(3), first.Total)
	require.Equal(t, int64(1), first.Pending)
	require.Equal(t, int64(1), first.Approved)
	require.Equal(t, int64(1), first.Rejected)

	second, err := env.svc.Stats(ctx)
	require.NoError(t, err)
	require.True(t, second.CacheHit)
	require.Equal(t, first.Total, second.Total)

	// A status edit invalidates the cache.
	app := seedApplication(t, env, nil)
	status := models.StatusApproved
	_, err = env.svc.Update(ctx, app.ID, dto.AdminApplicationUpdateRequest{Status: &status})
	require.NoError(t, err)

	third, err := env.svc.Stats(ctx)
	require.NoError(t, err)
	require.False(t, third.CacheHit)
	require.Equal(t, int64(4), third.Total)
	require.Equal(t, int64(2), third.Approved)
}

func TestAdminReplaceDocument(t *testing.T) {
	env := setupAdminService(t)
	ctx := context.Background()

	app := seedApplication(t, env, nil)

	record, err := env.svc.ReplaceDocument(ctx, app.ID, models.SlotPaymentReceipt, buildFileHeader(t, "payment-v2.png", pngHeader))
	require.NoError(t, err)
	require.Equal(t, "payment-v2.png", record.FileName)
	require.NotEmpty(t, record.FileURL)

	// Nothing persists until the edit is saved.
	fetched, err := env.svc.Get(ctx, app.ID)
	require.NoError(t, err)
	require.NotContains(t, fetched.Documents, models.SlotPaymentReceipt)

	_, err = env.svc.ReplaceDocument(ctx, app.ID, "diploma", buildFileHeader(t, "x.png", pngHeader))
	require.ErrorIs(t, err, ErrUnknownSlot)

	_, err = env.svc.ReplaceDocument(ctx, 9999, models.SlotChildPhoto, buildFileHeader(t, "x.png", pngHeader))
	require.ErrorIs(t, err, ErrApplicationNotFound)
}
