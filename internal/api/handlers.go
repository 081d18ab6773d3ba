package api

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"

	"github.com/sirupsen/logrus"
	"github.com/terraincognita07/healthintake/internal/models"
	"github.com/terraincognita07/healthintake/internal/services"
)

type RecordIntake interface {
	SubmitRecord(ctx context.Context, fields map[string]string, attachment *services.Attachment) (models.HealthRecord, error)
	ListRecords(ctx context.Context) ([]models.HealthRecord, error)
}

type Handler struct {
	intake    RecordIntake
	catalog   models.FieldCatalog
	appName   string
	logger    *logrus.Logger
	templates map[string]*template.Template
}

func NewHandler(intake RecordIntake, catalog models.FieldCatalog, templateFiles fs.FS, appName string, logger *logrus.Logger) (*Handler, error) {
	if intake == nil {
		return nil, errors.New("record intake is required")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	templates, err := parsePageTemplates(templateFiles, []string{"form"})
	if err != nil {
		return nil, err
	}

	return &Handler{
		intake:    intake,
		catalog:   catalog,
		appName:   appName,
		logger:    logger,
		templates: templates,
	}, nil
}

func parsePageTemplates(templateFiles fs.FS, pages []string) (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		parsed, err := template.New("base").ParseFS(templateFiles, "base.html", page+".html")
		if err != nil {
			return nil, fmt.Errorf("parse page template %s: %w", page, err)
		}
		templates[page] = parsed
	}
	return templates, nil
}
