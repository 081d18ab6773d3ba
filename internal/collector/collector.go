package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/terraincognita07/healthintake/internal/models"
)

const DefaultTimeout = 30 * time.Second

var ErrSubmissionInProgress = errors.New("submission already in progress")

// TransportError is a failed submission as seen by the client: either the
// request never completed or the service answered with a non-2xx status.
type TransportError struct {
	StatusCode int
	Message    string
	Err        error
}

func (err *TransportError) Error() string {
	if err.StatusCode == 0 {
		return fmt.Sprintf("submit form: %v", err.Err)
	}
	if err.Message != "" {
		return fmt.Sprintf("submit form: status %d: %s", err.StatusCode, err.Message)
	}
	return fmt.Sprintf("submit form: status %d", err.StatusCode)
}

func (err *TransportError) Unwrap() error {
	return err.Err
}

type Attachment struct {
	Name    string
	Content []byte
}

type Feedback struct {
	Success bool
	Message string
}

type SubmitResult struct {
	Message           string `json:"message"`
	ID                string `json:"id"`
	MedicalReportPath string `json:"medicalReportPath"`
}

// Collector holds the state of one intake form and posts it to the service.
type Collector struct {
	endpoint   string
	fieldNames []string
	timeout    time.Duration

	mu         sync.Mutex
	values     map[string]string
	attachment *Attachment
	submitting bool
	feedback   Feedback
}

func New(baseURL string, catalog models.FieldCatalog) *Collector {
	names := catalog.FieldNames()
	values := make(map[string]string, len(names))
	for _, name := range names {
		values[name] = ""
	}
	return &Collector{
		endpoint:   strings.TrimRight(baseURL, "/") + "/submit",
		fieldNames: names,
		timeout:    DefaultTimeout,
		values:     values,
	}
}

func (collector *Collector) WithTimeout(timeout time.Duration) *Collector {
	if timeout > 0 {
		collector.timeout = timeout
	}
	return collector
}

// UpdateField sets a field value. Names outside the catalog are ignored and
// reported with false.
func (collector *Collector) UpdateField(name string, value string) bool {
	collector.mu.Lock()
	defer collector.mu.Unlock()

	if _, ok := collector.values[name]; !ok {
		return false
	}
	collector.values[name] = value
	return true
}

func (collector *Collector) Value(name string) string {
	collector.mu.Lock()
	defer collector.mu.Unlock()
	return collector.values[name]
}

func (collector *Collector) Values() map[string]string {
	collector.mu.Lock()
	defer collector.mu.Unlock()

	values := make(map[string]string, len(collector.values))
	for name, value := range collector.values {
		values[name] = value
	}
	return values
}

func (collector *Collector) SelectFile(name string, content []byte) {
	collector.mu.Lock()
	defer collector.mu.Unlock()
	collector.attachment = &Attachment{Name: name, Content: content}
}

func (collector *Collector) ClearFile() {
	collector.mu.Lock()
	defer collector.mu.Unlock()
	collector.attachment = nil
}

func (collector *Collector) Attachment() *Attachment {
	collector.mu.Lock()
	defer collector.mu.Unlock()
	if collector.attachment == nil {
		return nil
	}
	copied := *collector.attachment
	return &copied
}

func (collector *Collector) Submitting() bool {
	collector.mu.Lock()
	defer collector.mu.Unlock()
	return collector.submitting
}

func (collector *Collector) Feedback() Feedback {
	collector.mu.Lock()
	defer collector.mu.Unlock()
	return collector.feedback
}

// Submit posts the current form as multipart data. Overlapping calls are
// rejected with ErrSubmissionInProgress. On success the form is cleared; on
// failure the values stay so the user can retry.
func (collector *Collector) Submit(ctx context.Context) (SubmitResult, error) {
	values, attachment, err := collector.begin()
	if err != nil {
		return SubmitResult{}, err
	}

	result, err := collector.post(ctx, values, attachment)

	collector.mu.Lock()
	defer collector.mu.Unlock()
	collector.submitting = false
	if err != nil {
		collector.feedback = Feedback{Success: false, Message: models.FeedbackFailed}
		return SubmitResult{}, err
	}
	for _, name := range collector.fieldNames {
		collector.values[name] = ""
	}
	collector.attachment = nil
	collector.feedback = Feedback{Success: true, Message: models.FeedbackSubmitted}
	return result, nil
}

func (collector *Collector) begin() (map[string]string, *Attachment, error) {
	collector.mu.Lock()
	defer collector.mu.Unlock()

	if collector.submitting {
		return nil, nil, ErrSubmissionInProgress
	}
	collector.submitting = true

	values := make(map[string]string, len(collector.values))
	for name, value := range collector.values {
		values[name] = value
	}
	var attachment *Attachment
	if collector.attachment != nil {
		copied := *collector.attachment
		attachment = &copied
	}
	return values, attachment, nil
}

func (collector *Collector) post(ctx context.Context, values map[string]string, attachment *Attachment) (SubmitResult, error) {
	if err := ctx.Err(); err != nil {
		return SubmitResult{}, &TransportError{Err: err}
	}

	timeout := collector.timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return SubmitResult{}, &TransportError{Err: context.DeadlineExceeded}
		}
		if remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.Post(collector.endpoint)
	if attachment != nil && attachment.Name != "" {
		agent.FileData(&fiber.FormFile{
			Fieldname: models.FieldMedicalReport,
			Name:      attachment.Name,
			Content:   attachment.Content,
		})
	}

	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	for _, name := range collector.fieldNames {
		args.Set(name, values[name])
	}

	code, body, errs := agent.MultipartForm(args).Timeout(timeout).Bytes()
	if len(errs) > 0 {
		return SubmitResult{}, &TransportError{Err: errors.Join(errs...)}
	}

	result := SubmitResult{}
	decodeErr := sonic.Unmarshal(body, &result)
	if code < fiber.StatusOK || code >= fiber.StatusMultipleChoices {
		return SubmitResult{}, &TransportError{StatusCode: code, Message: result.Message}
	}
	if decodeErr != nil {
		result = SubmitResult{}
	}
	return result, nil
}
