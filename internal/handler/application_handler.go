package handler

import (
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/littlesprouts/admissions-api/internal/dto"
	"github.com/littlesprouts/admissions-api/internal/models"
	"github.com/littlesprouts/admissions-api/internal/service"
	"github.com/littlesprouts/admissions-api/internal/utils"
)

// ApplicationHandler serves the public admission endpoints: the one-shot
// multipart submission and the receipt download.
type ApplicationHandler struct {
	submissions service.SubmissionService
	receipts    service.ReceiptService
	logger      zerolog.Logger
}

func NewApplicationHandler(submissions service.SubmissionService, receipts service.ReceiptService, logger zerolog.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		submissions: submissions,
		receipts:    receipts,
		logger:      logger.With().Str("component", "application_handler").Logger(),
	}
}

func (h *ApplicationHandler) Register(router fiber.Router) {
	router.Post("/applications", h.Submit)
	router.Get("/applications/:id/receipt", h.Receipt)
}

// Submit accepts the whole application in one multipart request: every
// form field plus one file part per document slot.
func (h *ApplicationHandler) Submit(c *fiber.Ctx) error {
	var fields dto.ApplicationFields
	if err := c.BodyParser(&fields); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid form payload")
	}

	files := map[string][]*multipart.FileHeader{}
	if form, err := c.MultipartForm(); err == nil && form != nil {
		for _, slot := range models.DocumentSlots() {
			files[slot] = form.File[slot]
		}
	}

	response, err := h.submissions.Submit(c.UserContext(), fields, files, models.SubmittedByWebsite)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendDataWithStatus(c, fiber.StatusCreated, response, "Application submitted successfully")
}

// Receipt streams the admission receipt PDF for a stored application.
func (h *ApplicationHandler) Receipt(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid id")
	}

	app, err := h.submissions.Get(c.UserContext(), id)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	receipt, err := h.receipts.Generate(c.UserContext(), app)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+receipt.FileName+`"`)
	return c.Send(receipt.Content)
}
