package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/terraincognita07/healthintake/internal/db"
	"github.com/terraincognita07/healthintake/internal/models"
	"github.com/terraincognita07/healthintake/internal/services"
	"github.com/terraincognita07/healthintake/internal/storage"
	"github.com/terraincognita07/healthintake/internal/templates"
)

type testApp struct {
	app     *fiber.App
	service *services.IntakeService
	files   *storage.DiskFileStore
}

type multipartFile struct {
	field   string
	name    string
	content []byte
}

func newQuietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestApp(t *testing.T) testApp {
	t.Helper()

	root := t.TempDir()
	database, err := db.OpenSQLite(filepath.Join(root, "health.db"), newQuietLogger())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close(database)
	})

	files, err := storage.NewDiskFileStore(filepath.Join(root, "uploads"))
	if err != nil {
		t.Fatalf("NewDiskFileStore() unexpected error: %v", err)
	}

	service := services.NewIntakeService(db.NewRepositories(database).HealthRecords, files, newQuietLogger())
	return testApp{
		app:     newAppWithIntake(t, service, files.Dir()),
		service: service,
		files:   files,
	}
}

func newAppWithIntake(t *testing.T, intake RecordIntake, uploadDir string) *fiber.App {
	t.Helper()

	catalog, err := models.DefaultFieldCatalog()
	if err != nil {
		t.Fatalf("DefaultFieldCatalog() unexpected error: %v", err)
	}
	handler, err := NewHandler(intake, catalog, templates.Files, "Health Intake", newQuietLogger())
	if err != nil {
		t.Fatalf("NewHandler() unexpected error: %v", err)
	}
	return NewApp(handler, AppConfig{
		AppName:       "Health Intake",
		BodyLimit:     2 * 1024 * 1024,
		AllowedOrigin: "http://localhost:3000",
		UploadDir:     uploadDir,
		AccessLog:     io.Discard,
	})
}

func multipartRequest(t *testing.T, fields map[string]string, files ...multipartFile) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("write field %s: %v", name, err)
		}
	}
	for _, file := range files {
		part, err := writer.CreateFormFile(file.field, file.name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(file.content); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	request := httptest.NewRequest(http.MethodPost, "/submit", &body)
	request.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	return request
}

func doRequest(t *testing.T, app *fiber.App, request *http.Request) (*http.Response, []byte) {
	t.Helper()

	response, err := app.Test(request, -1)
	if err != nil {
		t.Fatalf("%s %s failed: %v", request.Method, request.URL.Path, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return response, body
}

func decodeJSON(t *testing.T, body []byte, target interface{}) {
	t.Helper()

	if err := sonic.Unmarshal(body, target); err != nil {
		t.Fatalf("decode response body %q: %v", string(body), err)
	}
}

type submitResponse struct {
	Message           string            `json:"message"`
	ID                string            `json:"id"`
	MedicalReportPath string            `json:"medicalReportPath"`
	Errors            map[string]string `json:"errors"`
}

type failingIntake struct {
	err error
}

func (intake failingIntake) SubmitRecord(context.Context, map[string]string, *services.Attachment) (models.HealthRecord, error) {
	return models.HealthRecord{}, intake.err
}

func (intake failingIntake) ListRecords(context.Context) ([]models.HealthRecord, error) {
	return nil, intake.err
}

var errStoreUnreachable = errors.New("store unreachable")

// serveTestApp runs the app on a loopback listener for tests that need
// real concurrent connections.
func serveTestApp(t *testing.T, app *fiber.App) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		_ = app.Listener(listener)
	}()
	t.Cleanup(func() {
		_ = app.Shutdown()
	})
	return "http://" + listener.Addr().String()
}
