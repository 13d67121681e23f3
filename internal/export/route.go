package export

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Field mapping sources.
const (
	SourceMetadata = "metadata"
	SourceBody     = "body"
)

// Route is one export target: a write endpoint plus the rules for shaping
// its payload. Routes are read-only input supplied by configuration.
type Route struct {
	Name         string                  `yaml:"name" json:"name"`
	Collection   string                  `yaml:"collection" json:"collection"`
	ContentField string                  `yaml:"content_field" json:"content_field"`
	Mappings     map[string]FieldMapping `yaml:"mappings" json:"mappings"`
}

// FieldMapping describes how one output field's value is derived from the
// source document.
type FieldMapping struct {
	Source    string `yaml:"source" json:"source"`                         // metadata | body
	Key       string `yaml:"key,omitempty" json:"key,omitempty"`           // metadata key, when source=metadata
	Type      string `yaml:"type,omitempty" json:"type,omitempty"`         // optional value type hint
	Transform string `yaml:"transform,omitempty" json:"transform,omitempty"` // identity | commaList | labelURLPairs
	Required  bool   `yaml:"required,omitempty" json:"required,omitempty"`
}

// Validate checks the route configuration.
func (r Route) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Collection, validation.Required),
		validation.Field(&r.ContentField, validation.Required),
		validation.Field(&r.Mappings, validation.Required),
	)
	if err != nil {
		return err
	}
	for name, m := range r.Mappings {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("mapping %q: %w", name, err)
		}
	}
	return nil
}

// Validate checks a single field mapping.
func (m FieldMapping) Validate() error {
	err := validation.ValidateStruct(&m,
		validation.Field(&m.Source, validation.Required, validation.In(SourceMetadata, SourceBody)),
		validation.Field(&m.Transform, validation.In(TransformIdentity, TransformCommaList, TransformLabelURLPairs)),
	)
	if err != nil {
		return err
	}
	if m.Source == SourceMetadata && m.Key == "" {
		return fmt.Errorf("key is required when source is %s", SourceMetadata)
	}
	return nil
}
