package api

import (
	"bytes"

	"github.com/gofiber/fiber/v2"
	"github.com/terraincognita07/healthintake/internal/models"
)

func (handler *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (handler *Handler) ShowForm(c *fiber.Ctx) error {
	return handler.render(c, "form", fiber.Map{
		"Title":           handler.appName,
		"AppName":         handler.appName,
		"Sections":        handler.catalog.Sections,
		"AttachmentField": models.FieldMedicalReport,
		"SuccessMessage":  models.FeedbackSubmitted,
		"FailureMessage":  models.FeedbackFailed,
	})
}

func (handler *Handler) NotFound(c *fiber.Ctx) error {
	return apiError(c, fiber.StatusNotFound, "Not found")
}

func (handler *Handler) render(c *fiber.Ctx, name string, data fiber.Map) error {
	tmpl, ok := handler.templates[name]
	if !ok {
		return c.Status(fiber.StatusInternalServerError).SendString("template not found")
	}
	var output bytes.Buffer
	if err := tmpl.ExecuteTemplate(&output, "base", data); err != nil {
		handler.logger.WithError(err).WithField("template", name).Error("render template")
		return c.Status(fiber.StatusInternalServerError).SendString("failed to render template")
	}
	c.Type("html", "utf-8")
	return c.Send(output.Bytes())
}
