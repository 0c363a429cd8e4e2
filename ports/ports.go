// Package ports defines the interfaces the request engine consumes.
// Implementations live under adapters/ and core/storage; the engine itself
// never depends on a concrete driver.
package ports

import (
	"context"
	"net/http"

	"github.com/quillcms/quill/core/query"
)

// Store is the persistence handle exposed per collection. Rows are plain
// maps keyed by field name. Implementations own transaction semantics;
// the engine performs at-most-once calls per request and never retries.
type Store interface {
	// FindMany returns the rows matching a normalized read query.
	FindMany(ctx context.Context, collection string, q query.Query) ([]map[string]any, error)

	// Create inserts a single record and returns it as persisted.
	Create(ctx context.Context, collection string, data map[string]any) (map[string]any, error)

	// CreateMany inserts a batch, optionally skipping duplicate rows that
	// violate unique constraints, and returns the persisted records.
	CreateMany(ctx context.Context, collection string, rows []map[string]any, skipDuplicates bool) ([]map[string]any, error)

	// Update modifies the first record matching where and returns it.
	Update(ctx context.Context, collection string, where map[string]any, data map[string]any) (map[string]any, error)

	// UpdateMany modifies every record matching where and returns them.
	UpdateMany(ctx context.Context, collection string, where map[string]any, data map[string]any) ([]map[string]any, error)

	// Delete removes the first record matching where and returns it.
	Delete(ctx context.Context, collection string, where map[string]any) (map[string]any, error)

	// DeleteMany removes every record matching where and returns them.
	DeleteMany(ctx context.Context, collection string, where map[string]any) ([]map[string]any, error)

	// Close closes the storage connection.
	Close() error
}

// IDGenerator produces record identifiers for collections whose id
// strategy is generated application-side (uuid, cuid).
type IDGenerator interface {
	New() string
}

// SessionResolver extracts session data for a request from the external
// auth subsystem. A nil map means the request is unauthenticated.
type SessionResolver interface {
	Resolve(r *http.Request) map[string]any
}

// SessionResolverFunc adapts a function to the SessionResolver interface.
type SessionResolverFunc func(r *http.Request) map[string]any

// Resolve implements SessionResolver.
func (f SessionResolverFunc) Resolve(r *http.Request) map[string]any { return f(r) }
