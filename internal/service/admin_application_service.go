package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/littlesprouts/admissions-api/internal/dto"
	"github.com/littlesprouts/admissions-api/internal/models"
	"github.com/littlesprouts/admissions-api/internal/repository"
	"github.com/littlesprouts/admissions-api/pkg/storage"
)

const statsCacheKey = "admissions:stats"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// uploadIntake is the slice of the submission service the admin re-upload
// flow needs, so replaced documents pass the same size and type policy as
// public uploads.
type uploadIntake interface {
	StoreUpload(ctx context.Context, bucket storage.Bucket, file *multipart.FileHeader) (models.DocumentRecord, error)
}

// AdminApplicationService is the staff-facing view over applications:
// listing, editing, status changes, document replacement and dashboard
// statistics.
type AdminApplicationService interface {
	List(ctx context.Context, req dto.ApplicationListRequest) (dto.ApplicationListResponse, error)
	Get(ctx context.Context, id uint) (dto.ApplicationResponse, error)
	Update(ctx context.Context, id uint, req dto.AdminApplicationUpdateRequest) (dto.ApplicationResponse, error)
	Delete(ctx context.Context, id uint) error
	Stats(ctx context.Context) (dto.ApplicationStatsResponse, error)
	ReplaceDocument(ctx context.Context, id uint, slot string, file *multipart.FileHeader) (models.DocumentRecord, error)
}

type adminApplicationService struct {
	repo      repository.ApplicationRepository
	uploads   uploadIntake
	validator *validator.Validate
	notifier  Notifier
	redis     *redis.Client
	statsTTL  time.Duration
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewAdminApplicationService constructs the admin service. The Redis
// client is optional; without it statistics are computed on every call.
func NewAdminApplicationService(repo repository.ApplicationRepository, uploads uploadIntake, validate *validator.Validate, notifier Notifier, redisClient *redis.Client, statsTTL time.Duration, logger zerolog.Logger) AdminApplicationService {
	if statsTTL <= 0 {
		statsTTL = 5 * time.Minute
	}
	return &adminApplicationService{
		repo:      repo,
		uploads:   uploads,
		validator: validate,
		notifier:  notifier,
		redis:     redisClient,
		statsTTL:  statsTTL,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "admin_application_service").Logger(),
	}
}

func (s *adminApplicationService) List(ctx context.Context, req dto.ApplicationListRequest) (dto.ApplicationListResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	apps, total, err := s.repo.List(ctx, repository.ApplicationFilter{
		Status:   req.Status,
		Search:   req.Search,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return dto.ApplicationListResponse{}, fmt.Errorf("failed to list applications: %w", err)
	}

	items := make([]dto.ApplicationResponse, 0, len(apps))
	for _, app := range apps {
		items = append(items, dto.NewApplicationResponse(app, ResolveAllDocuments(app)))
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))

	return dto.ApplicationListResponse{
		Items: items,
		Pagination: dto.PaginationMeta{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: totalPages,
		},
	}, nil
}

func (s *adminApplicationService) Get(ctx context.Context, id uint) (dto.ApplicationResponse, error) {
	app, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ApplicationResponse{}, ErrApplicationNotFound
		}
		return dto.ApplicationResponse{}, fmt.Errorf("failed to fetch application: %w", err)
	}

	return dto.NewApplicationResponse(app, ResolveAllDocuments(app)), nil
}

// Update applies a partial edit. Only fields present in the payload
// change; edits are last-write-wins. A status transition additionally
// publishes a lifecycle event.
func (s *adminApplicationService) Update(ctx context.Context, id uint, req dto.AdminApplicationUpdateRequest) (dto.ApplicationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ApplicationResponse{}, err
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ApplicationResponse{}, ErrApplicationNotFound
		}
		return dto.ApplicationResponse{}, fmt.Errorf("failed to fetch application: %w", err)
	}

	updates := s.buildUpdates(req)
	if len(updates) == 0 {
		return dto.NewApplicationResponse(current, ResolveAllDocuments(current)), nil
	}

	updated, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ApplicationResponse{}, ErrApplicationNotFound
		}
		return dto.ApplicationResponse{}, fmt.Errorf("failed to update application: %w", err)
	}

	s.invalidateStats(ctx)

	response := dto.NewApplicationResponse(updated, ResolveAllDocuments(updated))
	if req.Status != nil && *req.Status != current.Status {
		s.logger.Info().
			Uint("application_id", id).
			Str("from", current.Status).
			Str("to", *req.Status).
			Msg("application status changed")
		s.notifier.ApplicationStatusChanged(ctx, response, current.Status)
	}

	return response, nil
}

func (s *adminApplicationService) buildUpdates(req dto.AdminApplicationUpdateRequest) map[string]interface{} {
	updates := map[string]interface{}{}

	setString := func(column string, value *string) {
		if value != nil {
			updates[column] = *value
		}
	}
	setSanitized := func(column string, value *string) {
		if value != nil {
			updates[column] = s.sanitizer.Sanitize(*value)
		}
	}

	setString("child_full_name", req.ChildFullName)
	setString("date_of_birth", req.DateOfBirth)
	setString("gender", req.Gender)
	setString("nationality", req.Nationality)
	setString("home_address", req.HomeAddress)
	setString("home_language", req.HomeLanguage)
	setString("parent1_name", req.Parent1Name)
	setString("parent1_national_id", req.Parent1NationalID)
	setString("parent1_mobile", req.Parent1Mobile)
	setString("parent1_email", req.Parent1Email)
	setString("parent2_name", req.Parent2Name)
	setString("parent2_national_id", req.Parent2NationalID)
	setString("parent2_mobile", req.Parent2Mobile)
	setString("program_type", req.ProgramType)
	setString("schedule", req.Schedule)
	setSanitized("medical_conditions", req.MedicalConditions)
	setString("emergency1_name", req.Emergency1Name)
	setString("emergency1_phone", req.Emergency1Phone)
	setString("emergency2_name", req.Emergency2Name)
	setString("emergency2_phone", req.Emergency2Phone)
	setSanitized("authorized_pickup", req.AuthorizedPickup)
	setString("status", req.Status)
	setSanitized("notes", req.Notes)

	if req.Immunized != nil {
		updates["immunized"] = *req.Immunized
	}

	// Saving documents writes the normalised shape to the current column;
	// whatever legacy columns held for those slots stops mattering.
	if req.Documents != nil {
		documents := datatypes.JSONMap{}
		for slot, record := range req.Documents {
			if _, known := slotLabels[slot]; !known {
				continue
			}
			documents[slot] = record.AsMap()
		}
		updates["documents"] = documents
	}

	return updates
}

func (s *adminApplicationService) Delete(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrApplicationNotFound
		}
		return fmt.Errorf("failed to delete application: %w", err)
	}

	s.invalidateStats(ctx)
	s.logger.Info().Uint("application_id", id).Msg("application deleted")

	return nil
}

// Stats returns per-status counts for the dashboard, cached briefly in
// Redis so a busy admin screen does not hammer the database.
func (s *adminApplicationService) Stats(ctx context.Context) (dto.ApplicationStatsResponse, error) {
	if s.redis != nil {
		if payload, err := s.redis.Get(ctx, statsCacheKey).Bytes(); err == nil {
			var cached dto.ApplicationStatsResponse
			if err := json.Unmarshal(payload, &cached); err == nil {
				cached.CacheHit = true
				return cached, nil
			}
		}
	}

	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return dto.ApplicationStatsResponse{}, fmt.Errorf("failed to count applications: %w", err)
	}

	stats := dto.ApplicationStatsResponse{
		Pending:     counts[models.StatusPending],
		Approved:    counts[models.StatusApproved],
		Rejected:    counts[models.StatusRejected],
		GeneratedAt: time.Now().UTC(),
	}
	for _, count := range counts {
		stats.Total += count
	}

	if s.redis != nil {
		if payload, err := json.Marshal(stats); err == nil {
			if err := s.redis.Set(ctx, statsCacheKey, payload, s.statsTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to cache application stats")
			}
		}
	}

	return stats, nil
}

// ReplaceDocument uploads a replacement file for one slot and returns the
// stored record. Nothing is persisted here: the record is applied to the
// application when the edit form is saved.
func (s *adminApplicationService) ReplaceDocument(ctx context.Context, id uint, slot string, file *multipart.FileHeader) (models.DocumentRecord, error) {
	if _, known := slotLabels[slot]; !known {
		return models.DocumentRecord{}, ErrUnknownSlot
	}

	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.DocumentRecord{}, ErrApplicationNotFound
		}
		return models.DocumentRecord{}, fmt.Errorf("failed to fetch application: %w", err)
	}

	bucket := storage.BucketDocuments
	if slot == models.SlotChildPhoto {
		bucket = storage.BucketImages
	}

	record, err := s.uploads.StoreUpload(ctx, bucket, file)
	if err != nil {
		return models.DocumentRecord{}, err
	}

	s.logger.Info().Uint("application_id", id).Str("slot", slot).Msg("replacement document stored")

	return record, nil
}

func (s *adminApplicationService) invalidateStats(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, statsCacheKey).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate stats cache")
	}
}
