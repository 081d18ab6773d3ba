package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/terraincognita07/healthintake/internal/collector"
	"github.com/terraincognita07/healthintake/internal/models"
)

// FormRunner fills a collector from line-oriented input and submits it.
// Prompts and re-prompts are only shown when Interactive is set.
type FormRunner struct {
	Interactive bool

	in        *bufio.Reader
	out       io.Writer
	catalog   models.FieldCatalog
	collector *collector.Collector
	readFile  func(string) ([]byte, error)
}

func NewFormRunner(in io.Reader, out io.Writer, catalog models.FieldCatalog, formCollector *collector.Collector) *FormRunner {
	interactive := false
	if file, ok := in.(*os.File); ok {
		interactive = isTerminal(file)
	}
	return &FormRunner{
		Interactive: interactive,
		in:          bufio.NewReader(in),
		out:         out,
		catalog:     catalog,
		collector:   formCollector,
		readFile:    os.ReadFile,
	}
}

// Run prompts for every catalog field, attaches reportPath when given and
// submits. After a failed submission the user may retry with the same values.
func (runner *FormRunner) Run(ctx context.Context, reportPath string) error {
	for _, section := range runner.catalog.Sections {
		runner.printf("\n== %s ==\n", section.Title)
		for _, field := range section.Fields {
			value, err := runner.askField(field)
			if err != nil {
				return err
			}
			runner.collector.UpdateField(field.Name, value)
		}
	}

	if strings.TrimSpace(reportPath) != "" {
		content, err := runner.readFile(reportPath)
		if err != nil {
			return fmt.Errorf("read medical report: %w", err)
		}
		runner.collector.SelectFile(filepath.Base(reportPath), content)
	}

	for {
		result, err := runner.collector.Submit(ctx)
		feedback := runner.collector.Feedback()
		fmt.Fprintln(runner.out, feedback.Message)
		if err == nil {
			fmt.Fprintf(runner.out, "Record ID: %s\n", result.ID)
			if result.MedicalReportPath != "" {
				fmt.Fprintf(runner.out, "Medical report: %s\n", result.MedicalReportPath)
			}
			return nil
		}

		var transportErr *collector.TransportError
		if errors.As(err, &transportErr) && transportErr.Message != "" {
			fmt.Fprintf(runner.out, "Server said: %s\n", transportErr.Message)
		}
		retry, readErr := runner.confirm("Retry? [y/N]: ")
		if readErr != nil || !retry {
			return err
		}
	}
}

func (runner *FormRunner) askField(field models.FormField) (string, error) {
	for {
		runner.printf("%s", fieldPrompt(field))
		value, exhausted, err := runner.readLine()
		if err != nil {
			return "", err
		}

		problem := fieldProblem(field, value)
		if problem == "" || !runner.Interactive || exhausted {
			return value, nil
		}
		runner.printf("  %s\n", problem)
	}
}

func (runner *FormRunner) confirm(prompt string) (bool, error) {
	fmt.Fprint(runner.out, prompt)
	answer, _, err := runner.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// readLine returns one trimmed line and whether the input is exhausted.
func (runner *FormRunner) readLine() (string, bool, error) {
	line, err := runner.in.ReadString('\n')
	if errors.Is(err, io.EOF) {
		return strings.TrimSpace(line), true, nil
	}
	if err != nil {
		return "", false, err
	}
	return strings.TrimSpace(line), false, nil
}

func (runner *FormRunner) printf(format string, args ...interface{}) {
	if runner.Interactive {
		fmt.Fprintf(runner.out, format, args...)
	}
}

func fieldPrompt(field models.FormField) string {
	var prompt strings.Builder
	prompt.WriteString(field.Label)
	if len(field.Options) > 0 {
		prompt.WriteString(" [")
		prompt.WriteString(strings.Join(field.Options, "/"))
		prompt.WriteString("]")
	}
	if field.Input == models.InputDate {
		prompt.WriteString(" (YYYY-MM-DD)")
	}
	if field.Required {
		prompt.WriteString(" *")
	}
	prompt.WriteString(": ")
	return prompt.String()
}

func fieldProblem(field models.FormField, value string) string {
	if value == "" {
		if field.Required {
			return "This field is required."
		}
		return ""
	}
	if len(field.Options) > 0 {
		for _, option := range field.Options {
			if option == value {
				return ""
			}
		}
		return fmt.Sprintf("Choose one of: %s.", strings.Join(field.Options, ", "))
	}
	return ""
}
