package dto

import (
	"time"

	"github.com/littlesprouts/admissions-api/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int   `json:"totalPages"`
}

// ApplicationFields carries every user-entered field of an admission
// application. Field names follow the public form contract, so both JSON
// bodies and multipart form values bind to the same struct.
type ApplicationFields struct {
	ChildFullName string `json:"childFullName" form:"childFullName"`
	DateOfBirth   string `json:"dateOfBirth" form:"dateOfBirth"`
	Gender        string `json:"gender" form:"gender" validate:"omitempty,oneof=male female"`
	Nationality   string `json:"nationality" form:"nationality"`
	HomeAddress   string `json:"homeAddress" form:"homeAddress"`
	HomeLanguage  string `json:"homeLanguage" form:"homeLanguage"`

	Parent1Name       string `json:"parent1Name" form:"parent1Name"`
	Parent1NationalID string `json:"parent1NationalId" form:"parent1NationalId"`
	Parent1Mobile     string `json:"parent1Mobile" form:"parent1Mobile"`
	Parent1Email      string `json:"parent1Email" form:"parent1Email" validate:"omitempty,email"`
	Parent2Name       string `json:"parent2Name" form:"parent2Name"`
	Parent2NationalID string `json:"parent2NationalId" form:"parent2NationalId"`
	Parent2Mobile     string `json:"parent2Mobile" form:"parent2Mobile"`

	ProgramType string `json:"programType" form:"programType" validate:"omitempty,oneof=toddler casa"`
	Schedule    string `json:"schedule" form:"schedule" validate:"omitempty,oneof=half_day full_day"`

	Immunized         bool   `json:"immunized" form:"immunized"`
	MedicalConditions string `json:"medicalConditions" form:"medicalConditions"`
	Emergency1Name    string `json:"emergency1Name" form:"emergency1Name"`
	Emergency1Phone   string `json:"emergency1Phone" form:"emergency1Phone"`
	Emergency2Name    string `json:"emergency2Name" form:"emergency2Name"`
	Emergency2Phone   string `json:"emergency2Phone" form:"emergency2Phone"`
	AuthorizedPickup  string `json:"authorizedPickup" form:"authorizedPickup"`

	TermsAccepted  bool `json:"termsAccepted" form:"termsAccepted"`
	MedicalConsent bool `json:"medicalConsent" form:"medicalConsent"`
}

// ApplicationResponse serialises one application with its documents
// already resolved to the normalised shape.
type ApplicationResponse struct {
	ID uint `json:"id"`

	ApplicationFields

	Documents map[string]models.DocumentRecord `json:"documents"`

	Status      string    `json:"status"`
	Notes       string    `json:"notes"`
	SubmittedBy string    `json:"submittedBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ApplicationListRequest defines filters for listing applications.
type ApplicationListRequest struct {
	Status   string
	Search   string
	Page     int
	PageSize int
}

// ApplicationListResponse wraps a paginated application listing.
type ApplicationListResponse struct {
	Items      []ApplicationResponse `json:"items"`
	Pagination PaginationMeta        `json:"pagination"`
}

// AdminApplicationUpdateRequest captures partial update payloads. Document
// replacements arrive here as resolved records keyed by slot, produced by
// the re-upload endpoint and echoed back on save.
type AdminApplicationUpdateRequest struct {
	ChildFullName *string `json:"childFullName" validate:"omitempty,min=1"`
	DateOfBirth   *string `json:"dateOfBirth"`
	Gender        *string `json:"gender" validate:"omitempty,oneof=male female"`
	Nationality   *string `json:"nationality"`
	HomeAddress   *string `json:"homeAddress"`
	HomeLanguage  *string `json:"homeLanguage"`

	Parent1Name       *string `json:"parent1Name" validate:"omitempty,min=1"`
	Parent1NationalID *string `json:"parent1NationalId"`
	Parent1Mobile     *string `json:"parent1Mobile"`
	Parent1Email      *string `json:"parent1Email" validate:"omitempty,email"`
	Parent2Name       *string `json:"parent2Name"`
	Parent2NationalID *string `json:"parent2NationalId"`
	Parent2Mobile     *string `json:"parent2Mobile"`

	ProgramType *string `json:"programType" validate:"omitempty,oneof=toddler casa"`
	Schedule    *string `json:"schedule" validate:"omitempty,oneof=half_day full_day"`

	Immunized         *bool   `json:"immunized"`
	MedicalConditions *string `json:"medicalConditions"`
	Emergency1Name    *string `json:"emergency1Name"`
	Emergency1Phone   *string `json:"emergency1Phone"`
	Emergency2Name    *string `json:"emergency2Name"`
	Emergency2Phone   *string `json:"emergency2Phone"`
	AuthorizedPickup  *string `json:"authorizedPickup"`

	Status *string `json:"status" validate:"omitempty,oneof=pending approved rejected"`
	Notes  *string `json:"notes" validate:"omitempty,max=5000"`

	Documents map[string]models.DocumentRecord `json:"documents" validate:"omitempty"`
}

// ApplicationStatsResponse aggregates per-status counts for the admin
// dashboard.
type ApplicationStatsResponse struct {
	Total       int64     `json:"total"`
	Pending     int64     `json:"pending"`
	Approved    int64     `json:"approved"`
	Rejected    int64     `json:"rejected"`
	GeneratedAt time.Time `json:"generatedAt"`
	CacheHit    bool      `json:"cacheHit"`
}

// FieldsFromModel extracts the form fields back out of a stored record.
func FieldsFromModel(app models.Application) ApplicationFields {
	return ApplicationFields{
		ChildFullName:     app.ChildFullName,
		DateOfBirth:       app.DateOfBirth,
		Gender:            app.Gender,
		Nationality:       app.Nationality,
		HomeAddress:       app.HomeAddress,
		HomeLanguage:      app.HomeLanguage,
		Parent1Name:       app.Parent1Name,
		Parent1NationalID: app.Parent1NationalID,
		Parent1Mobile:     app.Parent1Mobile,
		Parent1Email:      app.Parent1Email,
		Parent2Name:       app.Parent2Name,
		Parent2NationalID: app.Parent2NationalID,
		Parent2Mobile:     app.Parent2Mobile,
		ProgramType:       app.ProgramType,
		Schedule:          app.Schedule,
		Immunized:         app.Immunized,
		MedicalConditions: app.MedicalConditions,
		Emergency1Name:    app.Emergency1Name,
		Emergency1Phone:   app.Emergency1Phone,
		Emergency2Name:    app.Emergency2Name,
		Emergency2Phone:   app.Emergency2Phone,
		AuthorizedPickup:  app.AuthorizedPickup,
		TermsAccepted:     app.TermsAccepted,
		MedicalConsent:    app.MedicalConsent,
	}
}

// ApplyToModel copies the form fields onto a model record.
func (f ApplicationFields) ApplyToModel(app *models.Application) {
	app.ChildFullName = f.ChildFullName
	app.DateOfBirth = f.DateOfBirth
	app.Gender = f.Gender
	app.Nationality = f.Nationality
	app.HomeAddress = f.HomeAddress
	app.HomeLanguage = f.HomeLanguage
	app.Parent1Name = f.Parent1Name
	app.Parent1NationalID = f.Parent1NationalID
	app.Parent1Mobile = f.Parent1Mobile
	app.Parent1Email = f.Parent1Email
	app.Parent2Name = f.Parent2Name
	app.Parent2NationalID = f.Parent2NationalID
	app.Parent2Mobile = f.Parent2Mobile
	app.ProgramType = f.ProgramType
	app.Schedule = f.Schedule
	app.Immunized = f.Immunized
	app.MedicalConditions = f.MedicalConditions
	app.Emergency1Name = f.Emergency1Name
	app.Emergency1Phone = f.Emergency1Phone
	app.Emergency2Name = f.Emergency2Name
	app.Emergency2Phone = f.Emergency2Phone
	app.AuthorizedPickup = f.AuthorizedPickup
	app.TermsAccepted = f.TermsAccepted
	app.MedicalConsent = f.MedicalConsent
}

// NewApplicationResponse converts a model into a response DTO. Documents
// must already be resolved by the caller.
func NewApplicationResponse(app models.Application, documents map[string]models.DocumentRecord) ApplicationResponse {
	if documents == nil {
		documents = map[string]models.DocumentRecord{}
	}
	return ApplicationResponse{
		ID:                app.ID,
		ApplicationFields: FieldsFromModel(app),
		Documents:         documents,
		Status:            app.Status,
		Notes:             app.Notes,
		SubmittedBy:       app.SubmittedBy,
		CreatedAt:         app.CreatedAt,
		UpdatedAt:         app.UpdatedAt,
	}
}
