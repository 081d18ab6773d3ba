package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

const messageInternalServerError = "Internal server error"

func apiError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"message": message})
}

// ErrorHandler renders errors that escape handlers and middleware in the
// same JSON shape the handlers use.
func (handler *Handler) ErrorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		if fiberErr.Code >= fiber.StatusInternalServerError {
			handler.logger.WithError(err).WithField("path", c.Path()).Error("request failed")
			return apiError(c, fiberErr.Code, messageInternalServerError)
		}
		return apiError(c, fiberErr.Code, fiberErr.Message)
	}

	handler.logger.WithError(err).WithField("path", c.Path()).Error("request failed")
	return apiError(c, fiber.StatusInternalServerError, messageInternalServerError)
}
