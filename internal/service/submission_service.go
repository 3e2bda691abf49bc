package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/littlesprouts/admissions-api/internal/dto"
	"github.com/littlesprouts/admissions-api/internal/models"
	"github.com/littlesprouts/admissions-api/internal/observability"
	"github.com/littlesprouts/admissions-api/internal/repository"
	"github.com/littlesprouts/admissions-api/pkg/storage"
)

var (
	// ErrApplicationNotFound indicates the application does not exist.
	ErrApplicationNotFound = errors.New("application not found")
	// ErrConsentRequired indicates one or both consent boxes were not ticked.
	ErrConsentRequired = errors.New("terms and medical consent must both be accepted")
	// ErrUploadTooLarge indicates the file exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the detected MIME type is not permitted.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
)

// ValidationError aggregates every missing required field and document so
// the applicant sees the full list at once, not just the first gap.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "Please fill in: " + strings.Join(e.Missing, ", ")
}

// IsValidationError reports whether err is an aggregate pre-flight failure.
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

type requiredField struct {
	label string
	value func(dto.ApplicationFields) string
}

// Required text fields, in the order they appear on the form.
var requiredFields = []requiredField{
	{"Child Full Name", func(f dto.ApplicationFields) string { return f.ChildFullName }},
	{"Parent/Guardian Name", func(f dto.ApplicationFields) string { return f.Parent1Name }},
	{"Parent Email", func(f dto.ApplicationFields) string { return f.Parent1Email }},
	{"Parent Mobile", func(f dto.ApplicationFields) string { return f.Parent1Mobile }},
	{"Program Type", func(f dto.ApplicationFields) string { return f.ProgramType }},
}

// Human labels for the five required document slots, in display order.
var slotLabels = map[string]string{
	models.SlotBirthCertificate:   "Birth Certificate",
	models.SlotChildPhoto:         "Child Photo",
	models.SlotParentIDs:          "Parent IDs",
	models.SlotImmunizationRecord: "Immunization Record",
	models.SlotPaymentReceipt:     "Payment Receipt",
}

// FileStorage abstracts the object-storage destination.
type FileStorage interface {
	Upload(ctx context.Context, bucket storage.Bucket, name string, reader io.Reader, size int64) (storage.UploadResult, error)
}

// Notifier publishes application lifecycle events.
type Notifier interface {
	ApplicationSubmitted(ctx context.Context, app dto.ApplicationResponse)
	ApplicationStatusChanged(ctx context.Context, app dto.ApplicationResponse, previousStatus string)
}

// SubmissionService accepts new admission applications. StoreUpload is
// shared with the wizard and the admin re-upload flow so every file in the
// system passes the same intake policy.
type SubmissionService interface {
	Submit(ctx context.Context, fields dto.ApplicationFields, files map[string][]*multipart.FileHeader, submittedBy string) (dto.ApplicationResponse, error)
	SubmitResolved(ctx context.Context, fields dto.ApplicationFields, documents map[string][]models.DocumentRecord, submittedBy string) (dto.ApplicationResponse, error)
	Get(ctx context.Context, id uint) (dto.ApplicationResponse, error)
	StoreUpload(ctx context.Context, bucket storage.Bucket, file *multipart.FileHeader) (models.DocumentRecord, error)
}

type submissionService struct {
	repo      repository.ApplicationRepository
	storage   FileStorage
	validator *validator.Validate
	notifier  Notifier
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	maxSize   int64
}

// NewSubmissionService constructs the submission service.
func NewSubmissionService(repo repository.ApplicationRepository, fileStorage FileStorage, validate *validator.Validate, notifier Notifier, maxSizeMB int, logger zerolog.Logger) SubmissionService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &submissionService{
		repo:      repo,
		storage:   fileStorage,
		validator: validate,
		notifier:  notifier,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "submission_service").Logger(),
		maxSize:   int64(maxSizeMB) * 1024 * 1024,
	}
}

// Submit validates the multipart intake, stores the first file of every
// slot, and persists the application. The pre-flight check runs before any
// storage or database work so a rejected application leaves no trace.
func (s *submissionService) Submit(ctx context.Context, fields dto.ApplicationFields, files map[string][]*multipart.FileHeader, submittedBy string) (dto.ApplicationResponse, error) {
	if err := s.preflight(fields, func(slot string) bool { return len(files[slot]) > 0 }); err != nil {
		return dto.ApplicationResponse{}, err
	}

	documents := make(map[string][]models.DocumentRecord, len(files))
	for _, slot := range models.DocumentSlots() {
		// Only the first file of each slot travels with the application.
		file := files[slot][0]

		bucket := storage.BucketDocuments
		if slot == models.SlotChildPhoto {
			bucket = storage.BucketImages
		}

		record, err := s.StoreUpload(ctx, bucket, file)
		if err != nil {
			return dto.ApplicationResponse{}, err
		}
		documents[slot] = []models.DocumentRecord{record}
	}

	return s.SubmitResolved(ctx, fields, documents, submittedBy)
}

// SubmitResolved persists an application whose documents are already in
// storage. The wizard final-submit path lands here.
func (s *submissionService) SubmitResolved(ctx context.Context, fields dto.ApplicationFields, documents map[string][]models.DocumentRecord, submittedBy string) (dto.ApplicationResponse, error) {
	if err := s.preflight(fields, func(slot string) bool { return len(documents[slot]) > 0 }); err != nil {
		return dto.ApplicationResponse{}, err
	}

	if err := s.validator.Struct(fields); err != nil {
		return dto.ApplicationResponse{}, err
	}

	fields.MedicalConditions = strings.TrimSpace(s.sanitizer.Sanitize(fields.MedicalConditions))
	fields.AuthorizedPickup = strings.TrimSpace(s.sanitizer.Sanitize(fields.AuthorizedPickup))

	documentMap := datatypes.JSONMap{}
	resolved := make(map[string]models.DocumentRecord, len(documents))
	for slot, records := range documents {
		if len(records) == 0 {
			continue
		}
		documentMap[slot] = records[0].AsMap()
		resolved[slot] = records[0]
	}

	if submittedBy != models.SubmittedByAdmin {
		submittedBy = models.SubmittedByWebsite
	}

	app := models.Application{
		Documents:   documentMap,
		Status:      models.StatusPending,
		SubmittedBy: submittedBy,
	}
	fields.ApplyToModel(&app)

	if err := s.repo.Create(ctx, &app); err != nil {
		return dto.ApplicationResponse{}, fmt.Errorf("failed to persist application: %w", err)
	}

	response := dto.NewApplicationResponse(app, resolved)

	if s.notifier != nil {
		s.notifier.ApplicationSubmitted(ctx, response)
	}

	observability.SubmissionsAccepted().WithLabelValues(submittedBy).Inc()
	s.logger.Info().
		Uint("application_id", app.ID).
		Str("submitted_by", submittedBy).
		Msg("application accepted")

	return response, nil
}

func (s *submissionService) Get(ctx context.Context, id uint) (dto.ApplicationResponse, error) {
	app, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ApplicationResponse{}, ErrApplicationNotFound
		}
		return dto.ApplicationResponse{}, err
	}

	return dto.NewApplicationResponse(app, ResolveAllDocuments(app)), nil
}

// preflight accumulates every missing required field and slot. Both
// consent flags must be true before an application may be accepted; the
// slot check deliberately treats any attached file as sufficient.
func (s *submissionService) preflight(fields dto.ApplicationFields, slotPresent func(string) bool) error {
	missing := make([]string, 0)

	for _, field := range requiredFields {
		if strings.TrimSpace(field.value(fields)) == "" {
			missing = append(missing, field.label)
		}
	}

	for _, slot := range models.DocumentSlots() {
		if !slotPresent(slot) {
			missing = append(missing, slotLabels[slot])
		}
	}

	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}

	if !fields.TermsAccepted || !fields.MedicalConsent {
		return ErrConsentRequired
	}

	return nil
}

// StoreUpload enforces the upload policy (size cap, image/pdf only) and
// stores the file, returning its document record.
func (s *submissionService) StoreUpload(ctx context.Context, bucket storage.Bucket, file *multipart.FileHeader) (models.DocumentRecord, error) {
	if file == nil {
		return models.DocumentRecord{}, errors.New("file is required")
	}

	if file.Size > s.maxSize {
		observability.UploadsRejected().WithLabelValues("size").Inc()
		return models.DocumentRecord{}, ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		return models.DocumentRecord{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		return models.DocumentRecord{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		observability.UploadsRejected().WithLabelValues("size").Inc()
		return models.DocumentRecord{}, ErrUploadTooLarge
	}

	mime := mimetype.Detect(buf.Bytes())
	if !isAllowedUploadType(mime.String()) {
		observability.UploadsRejected().WithLabelValues("type").Inc()
		return models.DocumentRecord{}, ErrUploadTypeNotAllowed
	}

	result, err := s.storage.Upload(ctx, bucket, file.Filename, bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		observability.UploadsRejected().WithLabelValues("storage").Inc()
		return models.DocumentRecord{}, fmt.Errorf("failed to store upload: %w", err)
	}

	observability.UploadsStored().WithLabelValues(string(bucket)).Inc()

	return models.DocumentRecord{
		FileName:   file.Filename,
		FileURL:    result.URL,
		FilePath:   result.Path,
		UploadedAt: time.Now().UTC().Format(time.RFC3339),
		Size:       int64(buf.Len()),
	}, nil
}

func isAllowedUploadType(mime string) bool {
	lower := strings.ToLower(strings.TrimSpace(mime))
	if strings.HasPrefix(lower, "image/") {
		return true
	}
	return lower == "application/pdf"
}
