package mongostore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/terraincognita07/healthintake/internal/models"
)

func newRecordRepositoryForTest(t *testing.T) *RecordRepository {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI is not set")
	}

	ctx := context.Background()
	client, err := Connect(ctx, uri)
	if err != nil {
		t.Fatalf("Connect() unexpected error: %v", err)
	}

	database := fmt.Sprintf("healthintake_test_%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_ = client.Database(database).Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	repo := NewRecordRepository(client, database)
	if err := repo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes() unexpected error: %v", err)
	}
	return repo
}

func TestRecordRepositoryListAllOnEmptyCollection(t *testing.T) {
	repo := newRecordRepositoryForTest(t)

	records, err := repo.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll() unexpected error: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", records)
	}
}

func TestRecordRepositoryCreateAndListInInsertionOrder(t *testing.T) {
	repo := newRecordRepositoryForTest(t)
	base := time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)
	weight := 61.5

	for index, name := range []string{"First Patient", "Second Patient"} {
		record := models.HealthRecord{
			ID:                fmt.Sprintf("rec-%d", index),
			FullName:          name,
			Age:               30 + index,
			Gender:            models.GenderFemale,
			Weight:            &weight,
			MedicalReportPath: "uploads/1-abcd1234-report.pdf",
			CreatedAt:         base.Add(time.Duration(index) * time.Minute),
		}
		if err := repo.Create(context.Background(), &record); err != nil {
			t.Fatalf("Create() unexpected error: %v", err)
		}
	}

	records, err := repo.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll() unexpected error: %v", err)
	}
	if len(records) != 2 || records[0].FullName != "First Patient" || records[1].FullName != "Second Patient" {
		t.Fatalf("unexpected listing: %+v", records)
	}
	if records[0].Weight == nil || *records[0].Weight != weight || records[0].Height != nil {
		t.Fatalf("unexpected measurements: %+v", records[0])
	}
	if records[0].MedicalReportPath != "uploads/1-abcd1234-report.pdf" {
		t.Fatalf("unexpected medical report path %q", records[0].MedicalReportPath)
	}
}

func TestRecordRepositoryRejectsDuplicateID(t *testing.T) {
	repo := newRecordRepositoryForTest(t)

	record := models.HealthRecord{ID: "dup", FullName: "A", Gender: models.GenderMale, CreatedAt: time.Now().UTC()}
	if err := repo.Create(context.Background(), &record); err != nil {
		t.Fatalf("first Create() unexpected error: %v", err)
	}
	if err := repo.Create(context.Background(), &record); err == nil {
		t.Fatal("expected duplicate key error")
	}
}
