package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/littlesprouts/admissions-api/internal/service"
	"github.com/littlesprouts/admissions-api/internal/utils"
)

// parseIDParam reads a positive integer route parameter.
func parseIDParam(c *fiber.Ctx, name string) (uint, error) {
	raw := strings.TrimSpace(c.Params(name))
	value, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || value == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return uint(value), nil
}

// parseQueryInt reads an integer query parameter, falling back to the
// default on absence or garbage.
func parseQueryInt(c *fiber.Ctx, name string, fallback int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// sendServiceError maps service failures onto HTTP responses. Validation
// problems carry their message straight through so the form can display
// the aggregated "Please fill in" text.
func sendServiceError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var fieldErrors validator.ValidationErrors

	switch {
	case service.IsValidationError(err),
		errors.Is(err, service.ErrConsentRequired),
		errors.Is(err, service.ErrUploadTypeNotAllowed),
		errors.Is(err, service.ErrUnknownField),
		errors.Is(err, service.ErrUnknownSlot),
		errors.Is(err, service.ErrProgramTypeRequired),
		errors.Is(err, service.ErrNotFinalStep),
		errors.Is(err, service.ErrConfirmationRequired):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.As(err, &fieldErrors):
		return utils.SendError(c, fiber.StatusBadRequest, "invalid field values")
	case errors.Is(err, service.ErrAlreadySubmitted):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrUploadTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrApplicationNotFound),
		errors.Is(err, service.ErrSessionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	default:
		logger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "something went wrong, please try again")
	}
}
