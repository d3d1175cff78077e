package schema

// Normalize repairs common schema drift seen in tool manifests before
// compilation:
//
//   - "required" given as a single string becomes a one-element array
//   - "nullable": true is rewritten to include "null" in the "type"
//
// The input is never mutated; a repaired copy is returned.
func Normalize(schemaObj map[string]any) map[string]any {
	if schemaObj == nil {
		return nil
	}
	out := make(map[string]any, len(schemaObj))
	for k, val := range schemaObj {
		out[k] = val
	}

	if req, ok := out["required"].(string); ok {
		out["required"] = []any{req}
	}

	if nullable, ok := out["nullable"].(bool); ok {
		delete(out, "nullable")
		if nullable {
			out["type"] = withNullType(out["type"])
		}
	}

	if props, ok := out["properties"].(map[string]any); ok {
		normProps := make(map[string]any, len(props))
		for name, sub := range props {
			if subSchema, ok := sub.(map[string]any); ok {
				normProps[name] = Normalize(subSchema)
			} else {
				normProps[name] = sub
			}
		}
		out["properties"] = normProps
	}

	if items, ok := out["items"].(map[string]any); ok {
		out["items"] = Normalize(items)
	}

	return out
}

func withNullType(typ any) any {
	switch t := typ.(type) {
	case string:
		if t == "null" {
			return t
		}
		return []any{t, "null"}
	case []any:
		for _, entry := range t {
			if entry == "null" {
				return t
			}
		}
		return append(append([]any{}, t...), "null")
	default:
		return typ
	}
}
