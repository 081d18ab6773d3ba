package services

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/terraincognita07/healthintake/internal/models"
	"golang.org/x/crypto/blake2b"
)

type RecordRepository interface {
	Create(ctx context.Context, record *models.HealthRecord) error
	ListAll(ctx context.Context) ([]models.HealthRecord, error)
}

type FileStore interface {
	Store(ctx context.Context, name string, content []byte) (string, error)
	Delete(ctx context.Context, storedPath string) error
}

type EventPublisher interface {
	PublishRecordCreated(ctx context.Context, record models.HealthRecord) error
}

// Attachment is an uploaded medical report. An empty Name means no file was chosen.
type Attachment struct {
	Name    string
	Content []byte
}

type IntakeService struct {
	records  RecordRepository
	files    FileStore
	events   EventPublisher
	logger   *logrus.Logger
	rules    InputRules
	now      func() time.Time
	newID    func() string
}

func NewIntakeService(records RecordRepository, files FileStore, logger *logrus.Logger) *IntakeService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &IntakeService{
		records:  records,
		files:    files,
		logger:   logger,
		rules:    InputRules{Required: append([]string{}, ServerRequiredFields...)},
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (service *IntakeService) WithEvents(events EventPublisher) *IntakeService {
	service.events = events
	return service
}

// WithRequiredFields replaces the set of fields that must be present.
// The server-required fields are always kept.
func (service *IntakeService) WithRequiredFields(names []string) *IntakeService {
	required := append([]string{}, ServerRequiredFields...)
	seen := make(map[string]struct{}, len(required))
	for _, name := range required {
		seen[name] = struct{}{}
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if _, exists := seen[name]; exists || name == "" {
			continue
		}
		seen[name] = struct{}{}
		required = append(required, name)
	}
	service.rules.Required = required
	return service
}

// WithStrictValidation requires every field the catalog marks as required
// and turns on the free text format rules.
func (service *IntakeService) WithStrictValidation(catalog models.FieldCatalog) *IntakeService {
	service.rules.StrictFormats = true
	return service.WithRequiredFields(RequiredFieldNames(catalog, true))
}

func (service *IntakeService) RequiredFields() []string {
	return append([]string{}, service.rules.Required...)
}

// SubmitRecord validates the form values, stores the attachment if any and
// inserts the record. The attachment is removed again when the insert fails.
func (service *IntakeService) SubmitRecord(ctx context.Context, fields map[string]string, attachment *Attachment) (models.HealthRecord, error) {
	record, err := ParseRecordInput(fields, service.rules)
	if err != nil {
		return models.HealthRecord{}, err
	}

	if attachment != nil && strings.TrimSpace(attachment.Name) != "" {
		storedPath, err := service.files.Store(ctx, attachment.Name, attachment.Content)
		if err != nil {
			return models.HealthRecord{}, &StorageError{Op: "store attachment", Err: err}
		}
		record.MedicalReportPath = storedPath
		record.MedicalReportChecksum = AttachmentChecksum(attachment.Content)
	}

	record.ID = service.newID()
	record.CreatedAt = service.now().UTC()

	if err := service.records.Create(ctx, &record); err != nil {
		if record.MedicalReportPath != "" {
			if deleteErr := service.files.Delete(context.WithoutCancel(ctx), record.MedicalReportPath); deleteErr != nil {
				service.logger.WithError(deleteErr).WithField("path", record.MedicalReportPath).Error("remove orphaned attachment")
			}
		}
		return models.HealthRecord{}, &StorageError{Op: "insert record", Err: err}
	}

	service.logger.WithFields(logrus.Fields{
		"record_id":      record.ID,
		"has_attachment": record.HasAttachment(),
	}).Info("health record stored")

	if service.events != nil {
		if err := service.events.PublishRecordCreated(ctx, record); err != nil {
			service.logger.WithError(err).WithField("record_id", record.ID).Warn("publish record.created")
		}
	}
	return record, nil
}

func (service *IntakeService) ListRecords(ctx context.Context) ([]models.HealthRecord, error) {
	records, err := service.records.ListAll(ctx)
	if err != nil {
		return nil, &StorageError{Op: "list records", Err: err}
	}
	if records == nil {
		records = []models.HealthRecord{}
	}
	return records, nil
}

// AttachmentChecksum is the hex BLAKE2b-256 digest of the attachment bytes.
func AttachmentChecksum(content []byte) string {
	sum := blake2b.Sum256(content)
	return hex.EncodeToString(sum[:])
}
