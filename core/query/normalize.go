// Package query turns raw query-string parameters from a read request into
// a structured query understood by the persistence layer.
package query

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/quillcms/quill/core/apperr"
)

// Query is the structured form of a read request's parameters.
// Known keys consumed by the persistence layer: "where" (a JSON object of
// field filters), "orderBy" (field -> direction), "take", "skip",
// "distinct" (field list). Unknown keys pass through untouched so hooks
// can inspect them.
type Query map[string]any

// Normalize converts raw query-string values into a Query.
//
// Rules, in order:
//   - "where" must parse as JSON; failure is a malformed-input error and
//     no further processing happens for the request.
//   - any other value containing a comma is split: under "distinct" it
//     becomes a flat field list, otherwise each comma-separated element is
//     a hyphen-separated field-direction pair and the value becomes a map.
//   - a value with a single hyphen (and no comma) becomes a one-entry map.
//   - remaining scalar values that parse as numbers are coerced.
func Normalize(raw url.Values) (Query, error) {
	q := make(Query, len(raw))

	for key := range raw {
		val := raw.Get(key)

		if key == "where" {
			var parsed any
			if err := json.Unmarshal([]byte(val), &parsed); err != nil {
				return nil, apperr.Malformed("query key %q is not valid JSON: %v", key, err)
			}
			q[key] = parsed
			continue
		}

		if strings.Contains(val, ",") {
			parts := strings.Split(val, ",")
			if key == "distinct" {
				fields := make([]string, 0, len(parts))
				for _, p := range parts {
					fields = append(fields, strings.TrimSpace(p))
				}
				q[key] = fields
				continue
			}
			pairs := make(map[string]any, len(parts))
			for _, p := range parts {
				sub, dir, found := strings.Cut(p, "-")
				if found {
					pairs[sub] = coerce(dir)
				} else {
					pairs[p] = nil
				}
			}
			q[key] = pairs
			continue
		}

		if sub, rest, found := strings.Cut(val, "-"); found && sub != "" {
			q[key] = map[string]any{sub: coerce(rest)}
			continue
		}

		q[key] = coerce(val)
	}

	return q, nil
}

// coerce applies numeric coercion to a scalar that survived structural
// parsing, leaving non-numbers as strings.
func coerce(val string) any {
	if n, err := strconv.ParseInt(val, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(val, 64); err == nil {
		return f
	}
	return val
}

// Where returns the parsed "where" filter, if any.
func (q Query) Where() (map[string]any, bool) {
	w, ok := q["where"].(map[string]any)
	return w, ok
}

// OrderBy returns the parsed ordering map, if any.
func (q Query) OrderBy() (map[string]any, bool) {
	o, ok := q["orderBy"].(map[string]any)
	return o, ok
}

// Distinct returns the distinct field list, if any.
func (q Query) Distinct() ([]string, bool) {
	d, ok := q["distinct"].([]string)
	return d, ok
}

// Take returns the row limit, if any.
func (q Query) Take() (int64, bool) { return q.intKey("take") }

// Skip returns the row offset, if any.
func (q Query) Skip() (int64, bool) { return q.intKey("skip") }

func (q Query) intKey(key string) (int64, bool) {
	switch v := q[key].(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
