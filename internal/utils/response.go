package utils

import "github.com/gofiber/fiber/v2"

// DataEnvelope wraps successful responses. Clients read the record from
// the data key.
type DataEnvelope struct {
	Data    interface{} `json:"data"`
	Message string      `json:"message,omitempty"`
}

// ErrorEnvelope wraps failed responses with a human-readable message.
type ErrorEnvelope struct {
	Message string `json:"message"`
}

// SendData sends a successful JSON response wrapping the payload in the
// data envelope.
func SendData(c *fiber.Ctx, data interface{}) error {
	return SendDataWithStatus(c, fiber.StatusOK, data, "")
}

// SendDataWithStatus sends a success payload using the provided HTTP
// status code and optional message.
func SendDataWithStatus(c *fiber.Ctx, status int, data interface{}, message string) error {
	if status == 0 {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(DataEnvelope{
		Data:    data,
		Message: message,
	})
}

// SendError sends an error JSON response with the given status code.
func SendError(c *fiber.Ctx, status int, message string) error {
	if message == "" {
		message = "error"
	}

	return c.Status(status).JSON(ErrorEnvelope{
		Message: message,
	})
}
