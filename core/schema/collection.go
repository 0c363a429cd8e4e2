// Package schema defines the core types for declarative collection definitions.
// A collection is a named entity type with typed fields, an identifier
// strategy, and the webhooks that fire on its state changes.
package schema

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// IDStrategy selects how record identifiers are generated.
type IDStrategy string

const (
	IDAutoincrement IDStrategy = "autoincrement"
	IDUUID          IDStrategy = "uuid"
	IDCUID          IDStrategy = "cuid"
)

// Collection is the root definition for a declarative collection.
// Collections are declared once at startup and are immutable for the
// process lifetime; a new collection set requires a restart.
type Collection struct {
	// Name is the singular name of the collection (e.g., "post").
	Name string `yaml:"collection"`

	// ID is the identifier strategy. Defaults to autoincrement.
	ID IDStrategy `yaml:"id,omitempty"`

	// Slug is the URL path segment for this collection.
	// Defaults to the collection name.
	Slug string `yaml:"slug,omitempty"`

	// Fields defines the typed fields owned by this collection.
	Fields map[string]Field `yaml:"fields"`

	// Webhooks lists external endpoints notified after matching operations.
	Webhooks []WebhookDef `yaml:"webhooks,omitempty"`
}

// WebhookDef declares a webhook target in a collection definition.
type WebhookDef struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`

	// OnOperation is the subset of operations this webhook fires on
	// (create, read, update, delete).
	OnOperation []string `yaml:"on_operation"`

	// Headers are sent verbatim with every delivery.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Secret, when set, enables HMAC-SHA256 payload signing.
	Secret string `yaml:"secret,omitempty"`

	// TimeoutMS bounds a single delivery attempt. Zero means the
	// dispatcher default.
	TimeoutMS int `yaml:"timeout_ms,omitempty"`
}

// PathSlug returns the URL slug, falling back to the collection name.
func (c Collection) PathSlug() string {
	if c.Slug != "" {
		return c.Slug
	}
	return c.Name
}

// IDStrategyOrDefault returns the identifier strategy, defaulting to
// autoincrement when unset.
func (c Collection) IDStrategyOrDefault() IDStrategy {
	if c.ID == "" {
		return IDAutoincrement
	}
	return c.ID
}

// Validate checks a single collection definition for internal consistency.
// Cross-collection rules (relation targets) are checked by the Registry.
func (c Collection) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.ID, validation.In(IDAutoincrement, IDUUID, IDCUID)),
		validation.Field(&c.Fields, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("collection %q: %w", c.Name, err)
	}

	for name, f := range c.Fields {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("collection %q, field %q: %w", c.Name, name, err)
		}
	}

	for i, wh := range c.Webhooks {
		if err := wh.Validate(); err != nil {
			return fmt.Errorf("collection %q, webhook %d: %w", c.Name, i, err)
		}
	}

	return nil
}

// Validate checks a webhook declaration.
func (w WebhookDef) Validate() error {
	return validation.ValidateStruct(&w,
		validation.Field(&w.Name, validation.Required),
		validation.Field(&w.URL, validation.Required),
		validation.Field(&w.OnOperation, validation.Required, validation.Each(
			validation.In("create", "read", "update", "delete"))),
	)
}
