package db

import "gorm.io/gorm"

type Repositories struct {
	HealthRecords *HealthRecordRepository
}

func NewRepositories(database *gorm.DB) *Repositories {
	return &Repositories{
		HealthRecords: NewHealthRecordRepository(database),
	}
}
