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

// AdminApplicationHandler serves the staff back office: listing, editing,
// document replacement, stats and admin-entered applications.
type AdminApplicationHandler struct {
	admin       service.AdminApplicationService
	submissions service.SubmissionService
	receipts    service.ReceiptService
	logger      zerolog.Logger
}

func NewAdminApplicationHandler(admin service.AdminApplicationService, submissions service.SubmissionService, receipts service.ReceiptService, logger zerolog.Logger) *AdminApplicationHandler {
	return &AdminApplicationHandler{
		admin:       admin,
		submissions: submissions,
		receipts:    receipts,
		logger:      logger.With().Str("component", "admin_application_handler").Logger(),
	}
}

func (h *AdminApplicationHandler) Register(router fiber.Router) {
	applications := router.Group("/applications")
	applications.Get("/", h.List)
	applications.Post("/", h.Create)
	applications.Get("/stats", h.Stats)
	applications.Get("/:id", h.Get)
	applications.Put("/:id", h.Update)
	applications.Delete("/:id", h.Delete)
	applications.Post("/:id/documents/:slot", h.ReplaceDocument)
	applications.Get("/:id/receipt", h.Receipt)
}

func (h *AdminApplicationHandler) List(c *fiber.Ctx) error {
	req := dto.ApplicationListRequest{
		Status:   c.Query("status"),
		Search:   c.Query("search"),
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "pageSize", 20),
	}

	response, err := h.admin.List(c.UserContext(), req)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendData(c, response)
}

// Create accepts an application entered by staff, for families who apply
// in person. The intake pipeline is the same one the public form uses;
// only the recorded source differs.
func (h *AdminApplicationHandler) Create(c *fiber.Ctx) error {
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

	response, err := h.submissions.Submit(c.UserContext(), fields, files, models.SubmittedByAdmin)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendDataWithStatus(c, fiber.StatusCreated, response, "Application created")
}

func (h *AdminApplicationHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.admin.Stats(c.UserContext())
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendData(c, stats)
}

func (h *AdminApplicationHandler) Get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid id")
	}

	response, err := h.admin.Get(c.UserContext(), id)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendData(c, response)
}

func (h *AdminApplicationHandler) Update(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid id")
	}

	var req dto.AdminApplicationUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request payload")
	}

	response, err := h.admin.Update(c.UserContext(), id, req)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendDataWithStatus(c, fiber.StatusOK, response, "Application updated")
}

func (h *AdminApplicationHandler) Delete(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid id")
	}

	if err := h.admin.Delete(c.UserContext(), id); err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendDataWithStatus(c, fiber.StatusOK, nil, "Application deleted")
}

// ReplaceDocument stores a replacement file for one slot and echoes the
// stored record back. The edit form includes it in the next save.
func (h *AdminApplicationHandler) ReplaceDocument(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid id")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	record, err := h.admin.ReplaceDocument(c.UserContext(), id, c.Params("slot"), file)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendData(c, record)
}

func (h *AdminApplicationHandler) Receipt(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid id")
	}

	app, err := h.admin.Get(c.UserContext(), id)
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
