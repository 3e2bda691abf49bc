package service

import (
	"context"
	"mime/multipart"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/littlesprouts/admissions-api/internal/dto"
	"github.com/littlesprouts/admissions-api/internal/models"
	"github.com/littlesprouts/admissions-api/pkg/storage"
)

type submitterStub struct {
	mu         sync.Mutex
	submitErr  error
	submitted  []dto.ApplicationFields
	uploadedTo []storage.Bucket
	nextID     uint
}

func (s *submitterStub) SubmitResolved(_ context.Context, fields dto.ApplicationFields, documents map[string][]models.DocumentRecord, submittedBy string) (dto.ApplicationResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitErr != nil {
		return dto.ApplicationResponse{}, s.submitErr
	}
	s.submitted = append(s.submitted, fields)
	s.nextID++

	resolved := make(map[string]models.DocumentRecord, len(documents))
	for slot, records := range documents {
		if len(records) > 0 {
			resolved[slot] = records[0]
		}
	}

	response := dto.ApplicationResponse{ID: s.nextID, ApplicationFields: fields, Documents: resolved, Status: models.StatusPending, SubmittedBy: submittedBy}
	return response, nil
}

func (s *submitterStub) StoreUpload(_ context.Context, bucket storage.Bucket, file *multipart.FileHeader) (models.DocumentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadedTo = append(s.uploadedTo, bucket)
	return models.DocumentRecord{
		FileName:   file.Filename,
		FileURL:    "https://storage.example/" + file.Filename,
		UploadedAt: time.Now().UTC().Format(time.RFC3339),
		Size:       file.Size,
	}, nil
}

func setupWizard(t *testing.T) (*miniredis.Miniredis, *submitterStub, WizardService) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	submitter := &submitterStub{}
	svc := NewWizardService(client, submitter, time.Hour, testLogger())

	return mr, submitter, svc
}

func startWizard(t *testing.T, svc WizardService) WizardSession {
	t.Helper()

	session, err := svc.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, session.Step)
	require.Equal(t, WizardStageEditing, session.Stage)

	return session
}

// advanceToConfirm fills a valid form, walks to the last step and opens the
// confirmation stage.
func advanceToConfirm(t *testing.T, svc WizardService) WizardSession {
	t.Helper()
	ctx := context.Background()

	session := startWizard(t, svc)

	fields := validFields()
	for field, value := range map[string]string{
		"childFullName": fields.ChildFullName,
		"dateOfBirth":   fields.DateOfBirth,
		"parent1Name":   fields.Parent1Name,
		"parent1Email":  fields.Parent1Email,
		"parent1Mobile": fields.Parent1Mobile,
		"programType":   fields.ProgramType,
		"termsAccepted": "true",
	} {
		_, err := svc.UpdateField(ctx, session.ID, field, value)
		require.NoError(t, err)
	}
	_, err := svc.UpdateField(ctx, session.ID, "medicalConsent", "true")
	require.NoError(t, err)

	for slot := range slotLabels {
		_, err := svc.AttachFiles(ctx, session.ID, slot, []*multipart.FileHeader{buildFileHeader(t, slot+".png", pngHeader)})
		require.NoError(t, err)
	}

	for i := 0; i < 5; i++ {
		_, err := svc.Next(ctx, session.ID)
		require.NoError(t, err)
	}

	session, err = svc.Confirm(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, WizardStageConfirming, session.Stage)

	return session
}

func TestWizardGetMissingSession(t *testing.T) {
	_, _, svc := setupWizard(t)

	_, err := svc.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.Get(context.Background(), "")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestWizardSessionExpires(t *testing.T) {
	mr, _, svc := setupWizard(t)

	session := startWizard(t, svc)

	mr.FastForward(2 * time.Hour)

	_, err := svc.Get(context.Background(), session.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestWizardUpdateField(t *testing.T) {
	_, _, svc := setupWizard(t)
	ctx := context.Background()

	session := startWizard(t, svc)

	updated, err := svc.UpdateField(ctx, session.ID, "childFullName", "Amaya Perera")
	require.NoError(t, err)
	require.Equal(t, "Amaya Perera", updated.Form.Fields.ChildFullName)

	// Persisted, not just echoed.
	fetched, err := svc.Get(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, "Amaya Perera", fetched.Form.Fields.ChildFullName)

	_, err = svc.UpdateField(ctx, session.ID, "favouriteColour", "blue")
	require.ErrorIs(t, err, ErrUnknownField)
}

func TestWizardScheduleRequiresProgramType(t *testing.T) {
	_, _, svc := setupWizard(t)
	ctx := context.Background()

	session := startWizard(t, svc)

	_, err := svc.UpdateField(ctx, session.ID, "schedule", models.ScheduleFullDay)
	require.ErrorIs(t, err, ErrProgramTypeRequired)

	_, err = svc.UpdateField(ctx, session.ID, "programType", models.ProgramCasa)
	require.NoError(t, err)

	updated, err := svc.UpdateField(ctx, session.ID, "schedule", models.ScheduleFullDay)
	require.NoError(t, err)
	require.Equal(t, models.ScheduleFullDay, updated.Form.Fields.Schedule)
}

func TestWizardStepNavigationClamps(t *testing.T) {
	_, _, svc := setupWizard(t)
	ctx := context.Background()

	session := startWizard(t, svc)

	// Prev below the first step stays at the first step.
	current, err := svc.Prev(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, 1, current.Step)

	// Next beyond the last step stays at the last step.
	for i := 0; i < 10; i++ {
		current, err = svc.Next(ctx, session.ID)
		require.NoError(t, err)
	}
	require.Equal(t, 6, current.Step)

	current, err = svc.Prev(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, 5, current.Step)
}

func TestWizardAttachFilesReplacesSlot(t *testing.T) {
	_, submitter, svc := setupWizard(t)
	ctx := context.Background()

	session := startWizard(t, svc)

	updated, err := svc.AttachFiles(ctx, session.ID, models.SlotParentIDs, []*multipart.FileHeader{
		buildFileHeader(t, "id-front.png", pngHeader),
		buildFileHeader(t, "id-back.png", pngHeader),
	})
	require.NoError(t, err)
	require.Len(t, updated.Form.Attachments[models.SlotParentIDs], 2)

	// Re-picking replaces the slot instead of appending.
	updated, err = svc.AttachFiles(ctx, session.ID, models.SlotParentIDs, []*multipart.FileHeader{
		buildFileHeader(t, "id-combined.png", pngHeader),
	})
	require.NoError(t, err)
	require.Len(t, updated.Form.Attachments[models.SlotParentIDs], 1)
	require.Equal(t, "id-combined.png", updated.Form.Attachments[models.SlotParentIDs][0].FileName)

	_, err = svc.AttachFiles(ctx, session.ID, "diploma", nil)
	require.ErrorIs(t, err, ErrUnknownSlot)

	// Child photos land in the image bucket, everything else in documents.
	_, err = svc.AttachFiles(ctx, session.ID, models.SlotChildPhoto, []*multipart.FileHeader{
		buildFileHeader(t, "amaya.png", pngHeader),
	})
	require.NoError(t, err)
	require.Contains(t, submitter.uploadedTo, storage.BucketImages)
	require.Contains(t, submitter.uploadedTo, storage.BucketDocuments)
}

func TestWizardConfirmRequiresFinalStep(t *testing.T) {
	_, _, svc := setupWizard(t)
	ctx := context.Background()

	session := startWizard(t, svc)

	_, err := svc.Confirm(ctx, session.ID)
	require.ErrorIs(t, err, ErrNotFinalStep)
}

func TestWizardFinalSubmitRequiresConfirmation(t *testing.T) {
	_, _, svc := setupWizard(t)
	ctx := context.Background()

	session := startWizard(t, svc)

	_, err := svc.FinalSubmit(ctx, session.ID)
	require.ErrorIs(t, err, ErrConfirmationRequired)
}

func TestWizardFinalSubmitRequiresConsents(t *testing.T) {
	_, submitter, svc := setupWizard(t)
	ctx := context.Background()

	session := advanceToConfirm(t, svc)

	_, err := svc.UpdateField(ctx, session.ID, "medicalConsent", "false")
	require.NoError(t, err)

	_, err = svc.FinalSubmit(ctx, session.ID)
	require.ErrorIs(t, err, ErrConsentRequired)
	require.Empty(t, submitter.submitted)
}

func TestWizardFinalSubmitSuccess(t *testing.T) {
	_, submitter, svc := setupWizard(t)
	ctx := context.Background()

	session := advanceToConfirm(t, svc)

	submitted, err := svc.FinalSubmit(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, WizardStageSubmitted, submitted.Stage)
	require.NotNil(t, submitted.Snapshot)
	require.Equal(t, "Amaya Perera", submitted.Snapshot.ChildFullName)
	require.Equal(t, models.SubmittedByWebsite, submitted.Snapshot.SubmittedBy)
	require.Len(t, submitter.submitted, 1)

	// Double submission is rejected.
	_, err = svc.FinalSubmit(ctx, session.ID)
	require.ErrorIs(t, err, ErrAlreadySubmitted)
	require.Len(t, submitter.submitted, 1)
}

func TestWizardFinalSubmitFailureKeepsForm(t *testing.T) {
	_, submitter, svc := setupWizard(t)
	ctx := context.Background()

	session := advanceToConfirm(t, svc)
	before, err := svc.Get(ctx, session.ID)
	require.NoError(t, err)

	submitter.submitErr = &ValidationError{Missing: []string{"Parent Email"}}

	failed, err := svc.FinalSubmit(ctx, session.ID)
	require.Error(t, err)
	require.True(t, IsValidationError(err))

	// The confirmation stage stays open with the failure recorded, and the
	// form is exactly what the applicant typed.
	require.Equal(t, WizardStageConfirming, failed.Stage)
	require.NotEmpty(t, failed.Error)
	require.Equal(t, before.Form.Fields, failed.Form.Fields)
	require.Nil(t, failed.Snapshot)

	// A retry after the underlying problem clears succeeds.
	submitter.submitErr = nil
	retried, err := svc.FinalSubmit(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, WizardStageSubmitted, retried.Stage)
	require.Empty(t, retried.Error)
}

func TestWizardReset(t *testing.T) {
	_, _, svc := setupWizard(t)
	ctx := context.Background()

	session := advanceToConfirm(t, svc)
	submitted, err := svc.FinalSubmit(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, submitted.Snapshot)

	reset, err := svc.Reset(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, 1, reset.Step)
	require.Equal(t, WizardStageEditing, reset.Stage)
	require.Equal(t, dto.ApplicationFields{}, reset.Form.Fields)
	require.Empty(t, reset.Form.Attachments)
	require.Nil(t, reset.Snapshot)
	require.Empty(t, reset.Error)
}
