package services

import (
	"errors"
	"math"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/terraincognita07/healthintake/internal/models"
)

// ServerRequiredFields are enforced on every submission regardless of mode.
var ServerRequiredFields = []string{models.FieldFullName, models.FieldAge, models.FieldGender}

// InputRules selects what ParseRecordInput enforces beyond parsing.
type InputRules struct {
	Required      []string
	StrictFormats bool
}

// ParseRecordInput turns raw form values into a validated record. The
// required names are checked for presence first, then numeric fields are
// parsed and the whole record is range checked. Free text formats are only
// checked with StrictFormats.
func ParseRecordInput(fields map[string]string, rules InputRules) (models.HealthRecord, error) {
	value := func(name string) string {
		return strings.TrimSpace(fields[name])
	}

	missing := make(map[string]string)
	for _, name := range rules.Required {
		if value(name) == "" {
			missing[name] = "is required"
		}
	}
	if len(missing) > 0 {
		return models.HealthRecord{}, &ValidationError{Message: MessageMissingRequiredFields, Fields: missing}
	}

	record := models.HealthRecord{
		FullName:           value(models.FieldFullName),
		Gender:             value(models.FieldGender),
		MobileNumber:       value(models.FieldMobileNumber),
		Allergies:          value(models.FieldAllergies),
		Surgeries:          value(models.FieldSurgeries),
		MedicalTreatment:   value(models.FieldMedicalTreatment),
		BloodType:          value(models.FieldBloodType),
		AlcoholOrSmoke:     value(models.FieldAlcoholOrSmoke),
		DietarySupplements: value(models.FieldDietarySupplements),
		Purpose:            value(models.FieldPurpose),
		HealthCheckupDate:  value(models.FieldHealthCheckupDate),
	}

	invalid := make(map[string]string)
	if raw := value(models.FieldAge); raw != "" {
		age, err := strconv.Atoi(raw)
		if err != nil {
			invalid[models.FieldAge] = "must be a whole number"
		} else {
			record.Age = age
		}
	}
	record.Height = parseMeasurement(value(models.FieldHeight), models.FieldHeight, invalid)
	record.Weight = parseMeasurement(value(models.FieldWeight), models.FieldWeight, invalid)

	if err := mergeFieldErrors(invalid, record.Validate()); err != nil {
		return models.HealthRecord{}, err
	}
	if rules.StrictFormats {
		if err := mergeFieldErrors(invalid, record.ValidateFormats()); err != nil {
			return models.HealthRecord{}, err
		}
	}
	if len(invalid) > 0 {
		return models.HealthRecord{}, &ValidationError{Message: MessageInvalidFieldValues, Fields: invalid}
	}
	return record, nil
}

// mergeFieldErrors copies ozzo field errors into invalid, keeping parse
// errors already recorded. Errors of any other kind are returned.
func mergeFieldErrors(invalid map[string]string, err error) error {
	if err == nil {
		return nil
	}
	var fieldErrors validation.Errors
	if !errors.As(err, &fieldErrors) {
		return err
	}
	for name, fieldErr := range fieldErrors {
		if _, exists := invalid[name]; !exists {
			invalid[name] = fieldErr.Error()
		}
	}
	return nil
}

func parseMeasurement(raw string, name string, invalid map[string]string) *float64 {
	if raw == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		invalid[name] = "must be a number"
		return nil
	}
	return &parsed
}

// RequiredFieldNames lists the fields a submission must carry. Strict mode
// adds every field the form itself marks as required.
func RequiredFieldNames(catalog models.FieldCatalog, strict bool) []string {
	if !strict {
		return append([]string{}, ServerRequiredFields...)
	}
	return catalog.RequiredFieldNames()
}
