package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/terraincognita07/healthintake/internal/models"
	"github.com/terraincognita07/healthintake/internal/services"
)

var errMalformedSubmission = errors.New("malformed submission body")

// readSubmission collects form values and the optional medicalReport file
// from a multipart, urlencoded or JSON body. Only the first value of a
// repeated field is kept.
func readSubmission(c *fiber.Ctx) (map[string]string, *services.Attachment, error) {
	contentType := strings.ToLower(string(c.Request().Header.ContentType()))

	switch {
	case strings.HasPrefix(contentType, fiber.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", errMalformedSubmission, err)
		}
		fields := make(map[string]string, len(form.Value))
		for name, values := range form.Value {
			if len(values) > 0 {
				fields[name] = values[0]
			}
		}
		attachment, err := readAttachment(form.File[models.FieldMedicalReport])
		if err != nil {
			return nil, nil, err
		}
		return fields, attachment, nil

	case strings.HasPrefix(contentType, fiber.MIMEApplicationJSON):
		payload := map[string]interface{}{}
		if err := c.BodyParser(&payload); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", errMalformedSubmission, err)
		}
		fields := make(map[string]string, len(payload))
		for name, value := range payload {
			if value != nil {
				fields[name] = fmt.Sprint(value)
			}
		}
		return fields, nil, nil

	default:
		fields := make(map[string]string)
		c.Request().PostArgs().VisitAll(func(key []byte, value []byte) {
			name := string(key)
			if _, exists := fields[name]; !exists {
				fields[name] = string(value)
			}
		})
		return fields, nil, nil
	}
}

func readAttachment(headers []*multipart.FileHeader) (*services.Attachment, error) {
	if len(headers) == 0 || strings.TrimSpace(headers[0].Filename) == "" {
		return nil, nil
	}
	header := headers[0]

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open uploaded file: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read uploaded file: %w", err)
	}
	return &services.Attachment{Name: header.Filename, Content: content}, nil
}
