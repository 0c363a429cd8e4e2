package engine

import (
	"github.com/quillcms/quill/core/apperr"
	"github.com/quillcms/quill/core/query"
)

// Input is the decoded request payload passed through the hook chain.
// Modify-input hooks may replace Data; every later hook and the
// persistence call observe the replacement.
type Input struct {
	// Data is the raw or progressively-transformed request body data:
	// a single object or a list of objects.
	Data any

	// Where filters the rows targeted by update and delete.
	Where map[string]any

	// SkipDuplicates makes batched creates ignore unique-constraint
	// violations instead of failing.
	SkipDuplicates bool

	// Select is the caller's projection request, passed through to hooks.
	Select map[string]any

	// Query is the normalized read query (reads only).
	Query query.Query
}

// Payload is the single-or-batch variant the dispatcher decides once from
// Input.Data after all modify-input hooks have run, and passes down to the
// persistence call.
type Payload struct {
	Batch   bool
	Records []map[string]any
}

// BuildPayload converts final input data into its tagged variant.
// A list value means a batched operation; a single object means singular.
// Nil data yields an empty singular payload (delete has no body data).
func BuildPayload(data any) (Payload, error) {
	switch v := data.(type) {
	case nil:
		return Payload{}, nil
	case map[string]any:
		return Payload{Records: []map[string]any{v}}, nil
	case []map[string]any:
		return Payload{Batch: true, Records: v}, nil
	case []any:
		records := make([]map[string]any, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return Payload{}, apperr.Malformed("data list items must be objects")
			}
			records = append(records, m)
		}
		return Payload{Batch: true, Records: records}, nil
	default:
		return Payload{}, apperr.Malformed("data must be an object or a list of objects")
	}
}

// mergeDefaults deep-merges a collection's default template under record:
// caller-supplied fields win on conflicting keys, nested maps merge
// recursively.
func mergeDefaults(defaults, record map[string]any) map[string]any {
	if len(defaults) == 0 {
		return record
	}

	out := make(map[string]any, len(defaults)+len(record))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range record {
		if sub, ok := v.(map[string]any); ok {
			if base, ok := out[k].(map[string]any); ok {
				out[k] = mergeDefaults(base, sub)
				continue
			}
		}
		out[k] = v
	}
	return out
}
