package db

import (
	"context"

	"github.com/terraincognita07/healthintake/internal/models"
	"gorm.io/gorm"
)

type HealthRecordRepository struct {
	database *gorm.DB
}

func NewHealthRecordRepository(database *gorm.DB) *HealthRecordRepository {
	return &HealthRecordRepository{database: database}
}

func (repo *HealthRecordRepository) Create(ctx context.Context, record *models.HealthRecord) error {
	return repo.database.WithContext(ctx).Create(record).Error
}

func (repo *HealthRecordRepository) ListAll(ctx context.Context) ([]models.HealthRecord, error) {
	records := make([]models.HealthRecord, 0)
	if err := repo.database.WithContext(ctx).Order("created_at ASC, id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
