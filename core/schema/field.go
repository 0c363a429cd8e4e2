package schema

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Field defines a typed field in a collection's schema.
type Field struct {
	// Type is the field type. See FieldType constants.
	Type FieldType `yaml:"type"`

	// Ref names the target collection for relation fields.
	Ref string `yaml:"ref,omitempty"`

	// Many marks a relation as to-many.
	Many bool `yaml:"many,omitempty"`

	// Unique indicates this field must have unique values.
	Unique bool `yaml:"unique,omitempty"`

	// Required indicates this field must be provided on create.
	Required bool `yaml:"required,omitempty"`

	// Index creates a database index on this field.
	Index bool `yaml:"index,omitempty"`

	// Map overrides the storage column name for this field.
	Map string `yaml:"map,omitempty"`

	// Default is the value merged under caller input on writes.
	// For datetime fields the strings "now" and "updatedAt" select the
	// corresponding timestamp behaviors.
	Default any `yaml:"default,omitempty"`
}

// FieldType represents the type of a collection field.
type FieldType string

const (
	FieldTypeString   FieldType = "string"
	FieldTypeJSON     FieldType = "json"
	FieldTypeInt      FieldType = "int"
	FieldTypeBigInt   FieldType = "bigint"
	FieldTypeFloat    FieldType = "float"
	FieldTypeDecimal  FieldType = "decimal"
	FieldTypeBoolean  FieldType = "boolean"
	FieldTypeDateTime FieldType = "datetime"

	// FieldTypeRelation references another collection. Requires Ref.
	FieldTypeRelation FieldType = "relation"
)

// DateTime default markers.
const (
	DateTimeNow       = "now"
	DateTimeUpdatedAt = "updatedAt"
)

// IsRelation reports whether the field references another collection.
func (f Field) IsRelation() bool {
	return f.Type == FieldTypeRelation
}

// ColumnName returns the storage column name, honoring the map override.
func (f Field) ColumnName(name string) string {
	if f.Map != "" {
		return f.Map
	}
	return name
}

// SQLType returns the SQLite column type for this field.
func (f Field) SQLType() string {
	switch f.Type {
	case FieldTypeInt, FieldTypeBigInt, FieldTypeBoolean:
		return "INTEGER"
	case FieldTypeFloat, FieldTypeDecimal:
		return "REAL"
	case FieldTypeJSON:
		return "TEXT" // Stored as JSON
	default:
		return "TEXT"
	}
}

// Validate checks a field definition.
func (f Field) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Type, validation.Required, validation.In(
			FieldTypeString, FieldTypeJSON, FieldTypeInt, FieldTypeBigInt,
			FieldTypeFloat, FieldTypeDecimal, FieldTypeBoolean,
			FieldTypeDateTime, FieldTypeRelation)),
		validation.Field(&f.Ref,
			validation.Required.When(f.Type == FieldTypeRelation),
			validation.Empty.When(f.Type != FieldTypeRelation)),
	)
}
