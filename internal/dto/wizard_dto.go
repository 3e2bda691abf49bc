package dto

import (
	"github.com/littlesprouts/admissions-api/internal/models"
)

// WizardFieldUpdateRequest patches a single form field in a wizard session.
type WizardFieldUpdateRequest struct {
	Field string `json:"field" validate:"required,min=1"`
	Value string `json:"value"`
}

// WizardAttachmentResponse describes one uploaded file held by a slot.
type WizardAttachmentResponse struct {
	FileName   string `json:"fileName"`
	FileURL    string `json:"fileUrl"`
	FilePath   string `json:"filePath,omitempty"`
	UploadedAt string `json:"uploadedAt,omitempty"`
	Size       int64  `json:"size,omitempty"`
}

// WizardSessionResponse serialises the wizard state returned after every
// mutation, so clients can re-render without a second fetch.
type WizardSessionResponse struct {
	ID          string                                `json:"id"`
	Step        int                                   `json:"step"`
	Stage       string                                `json:"stage"`
	Form        ApplicationFields                     `json:"form"`
	Attachments map[string][]WizardAttachmentResponse `json:"attachments"`
	Error       string                                `json:"error,omitempty"`
	Snapshot    *ApplicationResponse                  `json:"snapshot,omitempty"`
}

// NewWizardAttachmentResponses converts stored document records into the
// wizard attachment shape.
func NewWizardAttachmentResponses(records []models.DocumentRecord) []WizardAttachmentResponse {
	out := make([]WizardAttachmentResponse, 0, len(records))
	for _, record := range records {
		out = append(out, WizardAttachmentResponse{
			FileName:   record.FileName,
			FileURL:    record.FileURL,
			FilePath:   record.FilePath,
			UploadedAt: record.UploadedAt,
			Size:       record.Size,
		})
	}
	return out
}
