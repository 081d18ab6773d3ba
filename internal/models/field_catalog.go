package models

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	InputText   = "text"
	InputNumber = "number"
	InputTel    = "tel"
	InputSelect = "select"
	InputDate   = "date"
)

//go:embed field_catalog.yaml
var fieldCatalogYAML []byte

type FormField struct {
	Name     string   `yaml:"name"`
	Label    string   `yaml:"label"`
	Input    string   `yaml:"input"`
	Options  []string `yaml:"options"`
	Required bool     `yaml:"required"`
}

type FormSection struct {
	Title  string      `yaml:"title"`
	Fields []FormField `yaml:"fields"`
}

// FieldCatalog describes the intake form: sections, input kinds and the
// fields the form itself marks as required.
type FieldCatalog struct {
	Sections []FormSection `yaml:"sections"`
}

func DefaultFieldCatalog() (FieldCatalog, error) {
	return ParseFieldCatalog(fieldCatalogYAML)
}

func ParseFieldCatalog(raw []byte) (FieldCatalog, error) {
	catalog := FieldCatalog{}
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return FieldCatalog{}, fmt.Errorf("parse field catalog: %w", err)
	}

	seen := make(map[string]struct{})
	for _, section := range catalog.Sections {
		for _, field := range section.Fields {
			name := strings.TrimSpace(field.Name)
			if name == "" {
				return FieldCatalog{}, fmt.Errorf("field catalog section %q has a field without name", section.Title)
			}
			if _, exists := seen[name]; exists {
				return FieldCatalog{}, fmt.Errorf("duplicate field %q in catalog", name)
			}
			seen[name] = struct{}{}

			switch field.Input {
			case InputText, InputNumber, InputTel, InputDate:
			case InputSelect:
				if len(field.Options) == 0 {
					return FieldCatalog{}, fmt.Errorf("select field %q has no options", name)
				}
			default:
				return FieldCatalog{}, fmt.Errorf("field %q has unsupported input %q", name, field.Input)
			}
		}
	}
	return catalog, nil
}

func (catalog FieldCatalog) Fields() []FormField {
	fields := make([]FormField, 0)
	for _, section := range catalog.Sections {
		fields = append(fields, section.Fields...)
	}
	return fields
}

func (catalog FieldCatalog) FieldNames() []string {
	fields := catalog.Fields()
	names := make([]string, 0, len(fields))
	for _, field := range fields {
		names = append(names, field.Name)
	}
	return names
}

func (catalog FieldCatalog) RequiredFieldNames() []string {
	names := make([]string, 0)
	for _, field := range catalog.Fields() {
		if field.Required {
			names = append(names, field.Name)
		}
	}
	return names
}

func (catalog FieldCatalog) Lookup(name string) (FormField, bool) {
	for _, field := range catalog.Fields() {
		if field.Name == name {
			return field, true
		}
	}
	return FormField{}, false
}
