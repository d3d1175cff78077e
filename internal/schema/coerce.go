package schema

import (
	"encoding/json"
	"strconv"
)

// coerce walks data alongside the schema and converts values whose Go type
// does not match the declared type but has an unambiguous conversion:
// numeric strings to numbers, "true"/"false" to booleans, and scalars to
// strings. Values that cannot be converted are returned unchanged so the
// validator reports them.
func coerce(schemaObj map[string]any, data any) any {
	if schemaObj == nil {
		return data
	}
	declared := primaryType(schemaObj)

	switch declared {
	case "object":
		obj, ok := data.(map[string]any)
		if !ok {
			return data
		}
		props, _ := schemaObj["properties"].(map[string]any)
		out := make(map[string]any, len(obj))
		for key, val := range obj {
			if sub, ok := props[key].(map[string]any); ok {
				out[key] = coerce(sub, val)
			} else {
				out[key] = val
			}
		}
		return out

	case "array":
		arr, ok := data.([]any)
		if !ok {
			return data
		}
		items, _ := schemaObj["items"].(map[string]any)
		out := make([]any, len(arr))
		for i, val := range arr {
			out[i] = coerce(items, val)
		}
		return out

	case "number", "integer":
		if s, ok := data.(string); ok {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		}
		return data

	case "boolean":
		if s, ok := data.(string); ok {
			switch s {
			case "true":
				return true
			case "false":
				return false
			}
		}
		return data

	case "string":
		switch val := data.(type) {
		case float64:
			return strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(val)
		}
		return data

	default:
		return data
	}
}

// fillDefaults populates omitted object properties with their schema
// defaults, recursively. Defaults are deep-copied so callers can mutate
// enriched args without corrupting the schema.
func fillDefaults(schemaObj map[string]any, data any) any {
	if schemaObj == nil {
		return data
	}
	props, _ := schemaObj["properties"].(map[string]any)

	obj, ok := data.(map[string]any)
	if !ok {
		if data == nil && len(props) > 0 {
			obj = map[string]any{}
		} else {
			return data
		}
	}

	out := make(map[string]any, len(obj))
	for key, val := range obj {
		if sub, ok := props[key].(map[string]any); ok {
			out[key] = fillDefaults(sub, val)
		} else {
			out[key] = val
		}
	}
	for name, sub := range props {
		subSchema, ok := sub.(map[string]any)
		if !ok {
			continue
		}
		if _, present := out[name]; present {
			continue
		}
		if def, has := subSchema["default"]; has {
			out[name] = deepCopy(def)
		}
	}
	return out
}

// stripUnknown removes object properties the schema does not declare. Used
// only after a validation failure; a successful validation keeps extras.
func stripUnknown(schemaObj map[string]any, data any) any {
	if schemaObj == nil {
		return data
	}
	switch primaryType(schemaObj) {
	case "object":
		obj, ok := data.(map[string]any)
		if !ok {
			return data
		}
		props, _ := schemaObj["properties"].(map[string]any)
		if props == nil {
			return data
		}
		out := make(map[string]any, len(obj))
		for key, val := range obj {
			sub, declared := props[key].(map[string]any)
			if !declared {
				if _, plain := props[key]; !plain {
					continue
				}
				out[key] = val
				continue
			}
			out[key] = stripUnknown(sub, val)
		}
		return out
	case "array":
		arr, ok := data.([]any)
		if !ok {
			return data
		}
		items, _ := schemaObj["items"].(map[string]any)
		out := make([]any, len(arr))
		for i, val := range arr {
			out[i] = stripUnknown(items, val)
		}
		return out
	default:
		return data
	}
}

func primaryType(schemaObj map[string]any) string {
	switch t := schemaObj["type"].(type) {
	case string:
		return t
	case []any:
		for _, entry := range t {
			if s, ok := entry.(string); ok && s != "null" {
				return s
			}
		}
	}
	return ""
}

func deepCopy(value any) any {
	raw, err := json.Marshal(value)
	if err != nil {
		return value
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return value
	}
	return out
}
