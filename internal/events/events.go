package events

import (
	"context"
	"time"

	"github.com/terraincognita07/healthintake/internal/models"
)

const RecordCreatedType = "record.created"

// RecordCreatedEvent announces a stored record. It carries no health data.
type RecordCreatedEvent struct {
	Type          string    `json:"type"`
	RecordID      string    `json:"recordId"`
	HasAttachment bool      `json:"hasAttachment"`
	CreatedAt     time.Time `json:"createdAt"`
}

func NewRecordCreatedEvent(record models.HealthRecord) RecordCreatedEvent {
	return RecordCreatedEvent{
		Type:          RecordCreatedType,
		RecordID:      record.ID,
		HasAttachment: record.HasAttachment(),
		CreatedAt:     record.CreatedAt.UTC(),
	}
}

type Publisher interface {
	PublishRecordCreated(ctx context.Context, record models.HealthRecord) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishRecordCreated(context.Context, models.HealthRecord) error {
	return nil
}

func (NopPublisher) Close() error {
	return nil
}
