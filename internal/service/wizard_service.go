package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/littlesprouts/admissions-api/internal/dto"
	"github.com/littlesprouts/admissions-api/internal/models"
	"github.com/littlesprouts/admissions-api/pkg/storage"
)

// Wizard stages. The confirmation stage models the terms modal: final
// submission is only reachable through it.
const (
	WizardStageEditing    = "editing"
	WizardStageConfirming = "confirming"
	WizardStageSubmitted  = "submitted"
)

const (
	wizardMinStep = 1
	wizardMaxStep = 6

	wizardKeyPrefix = "wizard:session:"
)

var (
	// ErrSessionNotFound indicates the wizard session expired or never existed.
	ErrSessionNotFound = errors.New("wizard session not found")
	// ErrUnknownField indicates an update named a field outside the form.
	ErrUnknownField = errors.New("unknown form field")
	// ErrUnknownSlot indicates an attachment named a slot outside the five document types.
	ErrUnknownSlot = errors.New("unknown document slot")
	// ErrProgramTypeRequired indicates the schedule was chosen before the program.
	ErrProgramTypeRequired = errors.New("program type must be selected before a schedule")
	// ErrNotFinalStep indicates confirmation was requested before step 6.
	ErrNotFinalStep = errors.New("application form is not on the final step")
	// ErrConfirmationRequired indicates final submit was invoked without the confirmation stage.
	ErrConfirmationRequired = errors.New("submission must be confirmed first")
	// ErrAlreadySubmitted indicates the session already holds an accepted application.
	ErrAlreadySubmitted = errors.New("application already submitted")
)

// WizardForm is the single mutable state object shared by all six steps.
type WizardForm struct {
	Fields      dto.ApplicationFields              `json:"fields"`
	Attachments map[string][]models.DocumentRecord `json:"attachments"`
}

// WizardSession is one applicant's in-progress application.
type WizardSession struct {
	ID        string                   `json:"id"`
	Step      int                      `json:"step"`
	Stage     string                   `json:"stage"`
	Form      WizardForm               `json:"form"`
	Error     string                   `json:"error,omitempty"`
	Snapshot  *dto.ApplicationResponse `json:"snapshot,omitempty"`
	CreatedAt time.Time                `json:"createdAt"`
}

// wizardSubmitter is the slice of the submission service the wizard needs.
type wizardSubmitter interface {
	SubmitResolved(ctx context.Context, fields dto.ApplicationFields, documents map[string][]models.DocumentRecord, submittedBy string) (dto.ApplicationResponse, error)
	StoreUpload(ctx context.Context, bucket storage.Bucket, file *multipart.FileHeader) (models.DocumentRecord, error)
}

// WizardService drives the multi-step application form.
type WizardService interface {
	Start(ctx context.Context) (WizardSession, error)
	Get(ctx context.Context, id string) (WizardSession, error)
	UpdateField(ctx context.Context, id, field, value string) (WizardSession, error)
	AttachFiles(ctx context.Context, id, slot string, files []*multipart.FileHeader) (WizardSession, error)
	Next(ctx context.Context, id string) (WizardSession, error)
	Prev(ctx context.Context, id string) (WizardSession, error)
	Confirm(ctx context.Context, id string) (WizardSession, error)
	FinalSubmit(ctx context.Context, id string) (WizardSession, error)
	Reset(ctx context.Context, id string) (WizardSession, error)
}

type wizardService struct {
	redis     *redis.Client
	submitter wizardSubmitter
	ttl       time.Duration
	logger    zerolog.Logger
}

// NewWizardService constructs the wizard service. Sessions live in Redis
// under a TTL so abandoned forms expire on their own.
func NewWizardService(redisClient *redis.Client, submitter wizardSubmitter, ttl time.Duration, logger zerolog.Logger) WizardService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &wizardService{
		redis:     redisClient,
		submitter: submitter,
		ttl:       ttl,
		logger:    logger.With().Str("component", "wizard_service").Logger(),
	}
}

func emptyForm() WizardForm {
	return WizardForm{
		Fields:      dto.ApplicationFields{},
		Attachments: make(map[string][]models.DocumentRecord),
	}
}

func (s *wizardService) Start(ctx context.Context) (WizardSession, error) {
	session := WizardSession{
		ID:        uuid.NewString(),
		Step:      wizardMinStep,
		Stage:     WizardStageEditing,
		Form:      emptyForm(),
		CreatedAt: time.Now().UTC(),
	}

	if err := s.save(ctx, session); err != nil {
		return WizardSession{}, err
	}

	return session, nil
}

func (s *wizardService) Get(ctx context.Context, id string) (WizardSession, error) {
	return s.load(ctx, id)
}

func (s *wizardService) UpdateField(ctx context.Context, id, field, value string) (WizardSession, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return WizardSession{}, err
	}

	if err := applyField(&session.Form.Fields, field, value); err != nil {
		return WizardSession{}, err
	}

	if err := s.save(ctx, session); err != nil {
		return WizardSession{}, err
	}

	return session, nil
}

// AttachFiles stores the picked files and replaces the slot's list
// wholesale; re-picking files never appends. Any displayed submission
// error is cleared, matching the form behaviour of re-trying after a fix.
func (s *wizardService) AttachFiles(ctx context.Context, id, slot string, files []*multipart.FileHeader) (WizardSession, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return WizardSession{}, err
	}

	if _, ok := slotLabels[slot]; !ok {
		return WizardSession{}, ErrUnknownSlot
	}

	bucket := storage.BucketDocuments
	if slot == models.SlotChildPhoto {
		bucket = storage.BucketImages
	}

	records := make([]models.DocumentRecord, 0, len(files))
	for _, file := range files {
		record, err := s.submitter.StoreUpload(ctx, bucket, file)
		if err != nil {
			return WizardSession{}, err
		}
		records = append(records, record)
	}

	session.Form.Attachments[slot] = records
	session.Error = ""

	if err := s.save(ctx, session); err != nil {
		return WizardSession{}, err
	}

	return session, nil
}

func (s *wizardService) Next(ctx context.Context, id string) (WizardSession, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return WizardSession{}, err
	}

	if session.Step < wizardMaxStep {
		session.Step++
	}
	session.Error = ""

	if err := s.save(ctx, session); err != nil {
		return WizardSession{}, err
	}

	return session, nil
}

func (s *wizardService) Prev(ctx context.Context, id string) (WizardSession, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return WizardSession{}, err
	}

	if session.Step > wizardMinStep {
		session.Step--
	}

	if err := s.save(ctx, session); err != nil {
		return WizardSession{}, err
	}

	return session, nil
}

// Confirm opens the confirmation stage. No network or persistence work
// happens here; the applicant reviews the condensed terms first.
func (s *wizardService) Confirm(ctx context.Context, id string) (WizardSession, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return WizardSession{}, err
	}

	if session.Stage == WizardStageSubmitted {
		return WizardSession{}, ErrAlreadySubmitted
	}
	if session.Step != wizardMaxStep {
		return WizardSession{}, ErrNotFinalStep
	}

	session.Stage = WizardStageConfirming

	if err := s.save(ctx, session); err != nil {
		return WizardSession{}, err
	}

	return session, nil
}

// FinalSubmit hands the form to the submission service. On failure the
// confirmation stage stays open with the error recorded and the form
// untouched, so the applicant can retry without losing anything. On
// success the form values are frozen into the snapshot.
func (s *wizardService) FinalSubmit(ctx context.Context, id string) (WizardSession, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return WizardSession{}, err
	}

	if session.Stage == WizardStageSubmitted {
		return WizardSession{}, ErrAlreadySubmitted
	}
	if session.Stage != WizardStageConfirming {
		return WizardSession{}, ErrConfirmationRequired
	}
	if !session.Form.Fields.TermsAccepted || !session.Form.Fields.MedicalConsent {
		return WizardSession{}, ErrConsentRequired
	}

	response, submitErr := s.submitter.SubmitResolved(ctx, session.Form.Fields, session.Form.Attachments, models.SubmittedByWebsite)
	if submitErr != nil {
		session.Error = submitErr.Error()
		if err := s.save(ctx, session); err != nil {
			return WizardSession{}, err
		}
		return session, submitErr
	}

	session.Snapshot = &response
	session.Stage = WizardStageSubmitted
	session.Error = ""

	if err := s.save(ctx, session); err != nil {
		return WizardSession{}, err
	}

	s.logger.Info().
		Str("session_id", session.ID).
		Uint("application_id", response.ID).
		Msg("wizard application submitted")

	return session, nil
}

// Reset returns the session to a blank form at step one. The snapshot is
// discarded; a generated receipt should be downloaded before resetting.
func (s *wizardService) Reset(ctx context.Context, id string) (WizardSession, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return WizardSession{}, err
	}

	session.Step = wizardMinStep
	session.Stage = WizardStageEditing
	session.Form = emptyForm()
	session.Error = ""
	session.Snapshot = nil

	if err := s.save(ctx, session); err != nil {
		return WizardSession{}, err
	}

	return session, nil
}

func (s *wizardService) save(ctx context.Context, session WizardSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode wizard session: %w", err)
	}

	if err := s.redis.Set(ctx, wizardKeyPrefix+session.ID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store wizard session: %w", err)
	}

	return nil
}

func (s *wizardService) load(ctx context.Context, id string) (WizardSession, error) {
	if strings.TrimSpace(id) == "" {
		return WizardSession{}, ErrSessionNotFound
	}

	payload, err := s.redis.Get(ctx, wizardKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return WizardSession{}, ErrSessionNotFound
		}
		return WizardSession{}, fmt.Errorf("failed to read wizard session: %w", err)
	}

	var session WizardSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return WizardSession{}, fmt.Errorf("failed to decode wizard session: %w", err)
	}
	if session.Form.Attachments == nil {
		session.Form.Attachments = make(map[string][]models.DocumentRecord)
	}

	return session, nil
}

// applyField merges one field value into the form. No validation happens
// here; gaps surface at pre-flight. The only exception is the schedule,
// which depends on the chosen program type.
func applyField(fields *dto.ApplicationFields, field, value string) error {
	switch field {
	case "childFullName":
		fields.ChildFullName = value
	case "dateOfBirth":
		fields.DateOfBirth = value
	case "gender":
		fields.Gender = value
	case "nationality":
		fields.Nationality = value
	case "homeAddress":
		fields.HomeAddress = value
	case "homeLanguage":
		fields.HomeLanguage = value
	case "parent1Name":
		fields.Parent1Name = value
	case "parent1NationalId":
		fields.Parent1NationalID = value
	case "parent1Mobile":
		fields.Parent1Mobile = value
	case "parent1Email":
		fields.Parent1Email = value
	case "parent2Name":
		fields.Parent2Name = value
	case "parent2NationalId":
		fields.Parent2NationalID = value
	case "parent2Mobile":
		fields.Parent2Mobile = value
	case "programType":
		fields.ProgramType = value
	case "schedule":
		if strings.TrimSpace(fields.ProgramType) == "" {
			return ErrProgramTypeRequired
		}
		fields.Schedule = value
	case "immunized":
		fields.Immunized = parseFormBool(value)
	case "medicalConditions":
		fields.MedicalConditions = value
	case "emergency1Name":
		fields.Emergency1Name = value
	case "emergency1Phone":
		fields.Emergency1Phone = value
	case "emergency2Name":
		fields.Emergency2Name = value
	case "emergency2Phone":
		fields.Emergency2Phone = value
	case "authorizedPickup":
		fields.AuthorizedPickup = value
	case "termsAccepted":
		fields.TermsAccepted = parseFormBool(value)
	case "medicalConsent":
		fields.MedicalConsent = parseFormBool(value)
	default:
		return ErrUnknownField
	}

	return nil
}

func parseFormBool(value string) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false
	}
	return parsed
}

// NewWizardSessionResponse converts a session into its transport shape.
func NewWizardSessionResponse(session WizardSession) dto.WizardSessionResponse {
	attachments := make(map[string][]dto.WizardAttachmentResponse, len(session.Form.Attachments))
	for slot, records := range session.Form.Attachments {
		attachments[slot] = dto.NewWizardAttachmentResponses(records)
	}

	return dto.WizardSessionResponse{
		ID:          session.ID,
		Step:        session.Step,
		Stage:       session.Stage,
		Form:        session.Form.Fields,
		Attachments: attachments,
		Error:       session.Error,
		Snapshot:    session.Snapshot,
	}
}
