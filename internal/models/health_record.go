package models

import (
	"errors"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	GenderMale   = "Male"
	GenderFemale = "Female"
	GenderOther  = "Other"

	HabitYes = "Yes"
	HabitNo  = "No"
)

// Wire names of the intake form fields.
const (
	FieldFullName           = "fullName"
	FieldAge                = "age"
	FieldGender             = "gender"
	FieldMobileNumber       = "mobileNumber"
	FieldHeight             = "height"
	FieldWeight             = "weight"
	FieldAllergies          = "allergies"
	FieldSurgeries          = "surgeries"
	FieldMedicalTreatment   = "medicalTreatment"
	FieldBloodType          = "bloodType"
	FieldAlcoholOrSmoke     = "alcoholOrSmoke"
	FieldDietarySupplements = "dietarySupplements"
	FieldPurpose            = "purpose"
	FieldHealthCheckupDate  = "healthCheckupDate"
	FieldMedicalReport      = "medicalReport"
)

const (
	MaxAge             = 150
	MaxHeightCM        = 300
	MaxWeightKG        = 500
	maxNameLength      = 200
	maxTextLength      = 2000
	maxBloodTypeLength = 16
)

const CheckupDateLayout = "2006-01-02"

var mobileNumberPattern = regexp.MustCompile(`^\+?[0-9][0-9 ()\-]{5,19}$`)

type HealthRecord struct {
	ID                    string    `gorm:"primaryKey;type:varchar(36)" json:"id" bson:"_id"`
	FullName              string    `gorm:"not null" json:"fullName" bson:"fullName"`
	Age                   int       `gorm:"not null" json:"age" bson:"age"`
	Gender                string    `gorm:"not null" json:"gender" bson:"gender"`
	MobileNumber          string    `json:"mobileNumber" bson:"mobileNumber"`
	Height                *float64  `json:"height" bson:"height"`
	Weight                *float64  `json:"weight" bson:"weight"`
	Allergies             string    `json:"allergies" bson:"allergies"`
	Surgeries             string    `json:"surgeries" bson:"surgeries"`
	MedicalTreatment      string    `json:"medicalTreatment" bson:"medicalTreatment"`
	BloodType             string    `json:"bloodType" bson:"bloodType"`
	AlcoholOrSmoke        string    `json:"alcoholOrSmoke" bson:"alcoholOrSmoke"`
	DietarySupplements    string    `json:"dietarySupplements" bson:"dietarySupplements"`
	Purpose               string    `json:"purpose" bson:"purpose"`
	HealthCheckupDate     string    `json:"healthCheckupDate" bson:"healthCheckupDate"`
	MedicalReportPath     string    `gorm:"not null;default:''" json:"medicalReportPath" bson:"medicalReport"`
	MedicalReportChecksum string    `gorm:"not null;default:''" json:"medicalReportChecksum" bson:"medicalReportChecksum"`
	CreatedAt             time.Time `gorm:"not null" json:"createdAt" bson:"createdAt"`
}

func (HealthRecord) TableName() string {
	return "health_records"
}

// Validate checks numeric ranges and the enumerations. Presence of the
// required fields is enforced before parsing, so empty optional values pass
// here. Free text is stored as given.
func (record HealthRecord) Validate() error {
	return validation.ValidateStruct(&record,
		validation.Field(&record.FullName, validation.Required),
		validation.Field(&record.Age, validation.Min(0), validation.Max(MaxAge)),
		validation.Field(&record.Gender, validation.Required, validation.In(GenderMale, GenderFemale, GenderOther)),
		validation.Field(&record.Height, validation.By(positiveMeasurement), validation.Max(float64(MaxHeightCM))),
		validation.Field(&record.Weight, validation.By(positiveMeasurement), validation.Max(float64(MaxWeightKG))),
		validation.Field(&record.AlcoholOrSmoke, validation.In(HabitYes, HabitNo)),
	)
}

// ValidateFormats applies the stricter format rules used with strict
// validation: phone shape, checkup date layout and text length caps.
func (record HealthRecord) ValidateFormats() error {
	return validation.ValidateStruct(&record,
		validation.Field(&record.FullName, validation.Length(1, maxNameLength)),
		validation.Field(&record.MobileNumber, validation.Match(mobileNumberPattern).Error("must be a valid phone number")),
		validation.Field(&record.Allergies, validation.Length(0, maxTextLength)),
		validation.Field(&record.Surgeries, validation.Length(0, maxTextLength)),
		validation.Field(&record.MedicalTreatment, validation.Length(0, maxTextLength)),
		validation.Field(&record.BloodType, validation.Length(0, maxBloodTypeLength)),
		validation.Field(&record.DietarySupplements, validation.Length(0, maxTextLength)),
		validation.Field(&record.Purpose, validation.Length(0, maxTextLength)),
		validation.Field(&record.HealthCheckupDate, validation.Date(CheckupDateLayout).Error("must be a date in YYYY-MM-DD format")),
	)
}

func positiveMeasurement(value interface{}) error {
	measurement, _ := value.(*float64)
	if measurement != nil && *measurement <= 0 {
		return errors.New("must be greater than 0")
	}
	return nil
}

func (record HealthRecord) HasAttachment() bool {
	return record.MedicalReportPath != ""
}
