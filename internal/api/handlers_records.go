package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/terraincognita07/healthintake/internal/models"
	"github.com/terraincognita07/healthintake/internal/services"
)

func (handler *Handler) SubmitRecord(c *fiber.Ctx) error {
	fields, attachment, err := readSubmission(c)
	if err != nil {
		if errors.Is(err, errMalformedSubmission) {
			return apiError(c, fiber.StatusBadRequest, "Malformed submission body")
		}
		handler.logger.WithError(err).Error("read submission")
		return apiError(c, fiber.StatusInternalServerError, messageInternalServerError)
	}

	record, err := handler.intake.SubmitRecord(c.UserContext(), fields, attachment)
	if err != nil {
		return handler.submitError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":           models.FeedbackSubmitted,
		"id":                record.ID,
		"medicalReportPath": record.MedicalReportPath,
	})
}

func (handler *Handler) submitError(c *fiber.Ctx, err error) error {
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": validationErr.Message,
			"errors":  validationErr.Fields,
		})
	}

	entry := handler.logger.WithError(err)
	var storageErr *services.StorageError
	if errors.As(err, &storageErr) {
		entry = entry.WithField("op", storageErr.Op)
	}
	entry.Error("submit health record")
	return apiError(c, fiber.StatusInternalServerError, messageInternalServerError)
}

func (handler *Handler) ListRecords(c *fiber.Ctx) error {
	records, err := handler.intake.ListRecords(c.UserContext())
	if err != nil {
		handler.logger.WithError(err).Error("list health records")
		return apiError(c, fiber.StatusInternalServerError, messageInternalServerError)
	}
	return c.JSON(records)
}
