package schema

import "time"

// Defaults builds the default-value template merged under caller input
// before a write is persisted. Caller-supplied fields always win.
//
// On create, every declared default applies; datetime "now" and "updatedAt"
// both resolve to the current time. On update, only "updatedAt" fields are
// touched so that explicit defaults never overwrite stored values.
func Defaults(col Collection, operation string, now time.Time) map[string]any {
	out := make(map[string]any)
	stamp := now.UTC().Format(time.RFC3339)

	for name, f := range col.Fields {
		if f.Default == nil {
			continue
		}

		if f.Type == FieldTypeDateTime {
			switch f.Default {
			case DateTimeNow:
				if operation == "create" {
					out[name] = stamp
				}
			case DateTimeUpdatedAt:
				out[name] = stamp
			default:
				if operation == "create" {
					out[name] = f.Default
				}
			}
			continue
		}

		if operation == "create" {
			out[name] = f.Default
		}
	}

	return out
}
