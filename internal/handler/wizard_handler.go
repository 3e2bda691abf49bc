package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/littlesprouts/admissions-api/internal/dto"
	"github.com/littlesprouts/admissions-api/internal/service"
	"github.com/littlesprouts/admissions-api/internal/utils"
)

// WizardHandler exposes the step-by-step application form. Every mutation
// returns the full session state so the client can re-render from it.
type WizardHandler struct {
	wizard   service.WizardService
	receipts service.ReceiptService
	logger   zerolog.Logger
}

func NewWizardHandler(wizard service.WizardService, receipts service.ReceiptService, logger zerolog.Logger) *WizardHandler {
	return &WizardHandler{
		wizard:   wizard,
		receipts: receipts,
		logger:   logger.With().Str("component", "wizard_handler").Logger(),
	}
}

func (h *WizardHandler) Register(router fiber.Router) {
	wizard := router.Group("/wizard")
	wizard.Post("/", h.Start)
	wizard.Get("/:id", h.Get)
	wizard.Patch("/:id/fields", h.UpdateField)
	wizard.Post("/:id/documents/:slot", h.AttachFiles)
	wizard.Post("/:id/next", h.Next)
	wizard.Post("/:id/prev", h.Prev)
	wizard.Post("/:id/confirm", h.Confirm)
	wizard.Post("/:id/submit", h.FinalSubmit)
	wizard.Post("/:id/reset", h.Reset)
	wizard.Get("/:id/receipt", h.Receipt)
}

func (h *WizardHandler) Start(c *fiber.Ctx) error {
	session, err := h.wizard.Start(c.UserContext())
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendDataWithStatus(c, fiber.StatusCreated, service.NewWizardSessionResponse(session), "")
}

func (h *WizardHandler) Get(c *fiber.Ctx) error {
	session, err := h.wizard.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendData(c, service.NewWizardSessionResponse(session))
}

func (h *WizardHandler) UpdateField(c *fiber.Ctx) error {
	var req dto.WizardFieldUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request payload")
	}
	if strings.TrimSpace(req.Field) == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "field is required")
	}

	session, err := h.wizard.UpdateField(c.UserContext(), c.Params("id"), req.Field, req.Value)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendData(c, service.NewWizardSessionResponse(session))
}

func (h *WizardHandler) AttachFiles(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "multipart form expected")
	}

	files := form.File["files"]
	if len(files) == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "at least one file is required")
	}

	session, err := h.wizard.AttachFiles(c.UserContext(), c.Params("id"), c.Params("slot"), files)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendData(c, service.NewWizardSessionResponse(session))
}

func (h *WizardHandler) Next(c *fiber.Ctx) error {
	session, err := h.wizard.Next(c.UserContext(), c.Params("id"))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendData(c, service.NewWizardSessionResponse(session))
}

func (h *WizardHandler) Prev(c *fiber.Ctx) error {
	session, err := h.wizard.Prev(c.UserContext(), c.Params("id"))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendData(c, service.NewWizardSessionResponse(session))
}

func (h *WizardHandler) Confirm(c *fiber.Ctx) error {
	session, err := h.wizard.Confirm(c.UserContext(), c.Params("id"))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendData(c, service.NewWizardSessionResponse(session))
}

// FinalSubmit hands the confirmed form to the submission pipeline. A
// failed submission still returns the session so the client can show the
// recorded error beside the open confirmation.
func (h *WizardHandler) FinalSubmit(c *fiber.Ctx) error {
	session, err := h.wizard.FinalSubmit(c.UserContext(), c.Params("id"))
	if err != nil {
		if session.ID != "" {
			status := fiber.StatusBadRequest
			if !service.IsValidationError(err) {
				status = fiber.StatusInternalServerError
			}
			return c.Status(status).JSON(utils.DataEnvelope{
				Data:    service.NewWizardSessionResponse(session),
				Message: err.Error(),
			})
		}
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendData(c, service.NewWizardSessionResponse(session))
}

func (h *WizardHandler) Reset(c *fiber.Ctx) error {
	session, err := h.wizard.Reset(c.UserContext(), c.Params("id"))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendData(c, service.NewWizardSessionResponse(session))
}

// Receipt renders the PDF for a submitted session's snapshot.
func (h *WizardHandler) Receipt(c *fiber.Ctx) error {
	session, err := h.wizard.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	if session.Stage != service.WizardStageSubmitted || session.Snapshot == nil {
		return utils.SendError(c, fiber.StatusConflict, "application has not been submitted yet")
	}

	receipt, err := h.receipts.Generate(c.UserContext(), *session.Snapshot)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+receipt.FileName+`"`)
	return c.Send(receipt.Content)
}
