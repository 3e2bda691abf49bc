package models

import (
	"time"

	"gorm.io/datatypes"
)

// Application statuses assigned by the admissions office.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Submission sources.
const (
	SubmittedByWebsite = "website"
	SubmittedByAdmin   = "admin"
)

// Program types and schedules offered by the school.
const (
	ProgramToddler = "toddler"
	ProgramCasa    = "casa"

	ScheduleHalfDay = "half_day"
	ScheduleFullDay = "full_day"
)

// Document slots every application must supply.
const (
	SlotBirthCertificate   = "birthCertificate"
	SlotChildPhoto         = "childPhoto"
	SlotParentIDs          = "parentIds"
	SlotImmunizationRecord = "immunizationRecord"
	SlotPaymentReceipt     = "paymentReceipt"
)

// DocumentSlots returns the five required slots in display order.
func DocumentSlots() []string {
	return []string{
		SlotBirthCertificate,
		SlotChildPhoto,
		SlotParentIDs,
		SlotImmunizationRecord,
		SlotPaymentReceipt,
	}
}

// Application is an admission application for one child.
//
// Documents holds the current per-slot upload metadata. UploadedDocuments
// and LegacyFields carry the two older storage shapes still present on
// records imported from earlier deployments; they are read through the
// document resolver and never written by new code.
type Application struct {
	ID uint `gorm:"primaryKey" json:"id"`

	ChildFullName string `gorm:"size:255;not null" json:"childFullName"`
	DateOfBirth   string `gorm:"size:32" json:"dateOfBirth"`
	Gender        string `gorm:"size:16" json:"gender"`
	Nationality   string `gorm:"size:128" json:"nationality"`
	HomeAddress   string `gorm:"type:text" json:"homeAddress"`
	HomeLanguage  string `gorm:"size:128" json:"homeLanguage"`

	Parent1Name       string `gorm:"size:255" json:"parent1Name"`
	Parent1NationalID string `gorm:"size:64" json:"parent1NationalId"`
	Parent1Mobile     string `gorm:"size:32" json:"parent1Mobile"`
	Parent1Email      string `gorm:"size:255" json:"parent1Email"`
	Parent2Name       string `gorm:"size:255" json:"parent2Name"`
	Parent2NationalID string `gorm:"size:64" json:"parent2NationalId"`
	Parent2Mobile     string `gorm:"size:32" json:"parent2Mobile"`

	ProgramType string `gorm:"size:32" json:"programType"`
	Schedule    string `gorm:"size:32" json:"schedule"`

	Immunized         bool   `json:"immunized"`
	MedicalConditions string `gorm:"type:text" json:"medicalConditions"`
	Emergency1Name    string `gorm:"size:255" json:"emergency1Name"`
	Emergency1Phone   string `gorm:"size:32" json:"emergency1Phone"`
	Emergency2Name    string `gorm:"size:255" json:"emergency2Name"`
	Emergency2Phone   string `gorm:"size:32" json:"emergency2Phone"`
	AuthorizedPickup  string `gorm:"type:text" json:"authorizedPickup"`

	Documents         datatypes.JSONMap `json:"documents"`
	UploadedDocuments datatypes.JSONMap `json:"uploadedDocuments,omitempty"`
	LegacyFields      datatypes.JSONMap `json:"-"`

	TermsAccepted  bool `json:"termsAccepted"`
	MedicalConsent bool `json:"medicalConsent"`

	Status      string    `gorm:"size:32;not null;default:pending;index" json:"status"`
	Notes       string    `gorm:"type:text" json:"notes"`
	SubmittedBy string    `gorm:"size:32;not null;default:website" json:"submittedBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DocumentRecord is the normalised metadata for one uploaded document.
type DocumentRecord struct {
	FileName   string `json:"fileName"`
	FileURL    string `json:"fileUrl"`
	FilePath   string `json:"filePath,omitempty"`
	UploadedAt string `json:"uploadedAt,omitempty"`
	Size       int64  `json:"size,omitempty"`
}

// AsMap converts the record into the JSON map shape stored in the
// documents column.
func (d DocumentRecord) AsMap() map[string]interface{} {
	out := map[string]interface{}{
		"fileName": d.FileName,
		"fileUrl":  d.FileURL,
	}
	if d.FilePath != "" {
		out["filePath"] = d.FilePath
	}
	if d.UploadedAt != "" {
		out["uploadedAt"] = d.UploadedAt
	}
	if d.Size > 0 {
		out["size"] = d.Size
	}
	return out
}
