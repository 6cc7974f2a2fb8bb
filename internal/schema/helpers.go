package schema

import (
	"fmt"
	"sort"
	"strings"
)

// ListField returns a single string-array field definition keyed by name.
func ListField(name, description string) map[string]any {
	return map[string]any{
		name: map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": description,
		},
	}
}

// ObjectField returns a single object field definition keyed by name.
func ObjectField(name string, properties map[string]any, description string) map[string]any {
	return map[string]any{
		name: map[string]any{
			"type":        "object",
			"properties":  properties,
			"description": description,
		},
	}
}

// EntityFields returns an "entities" field for the given entity types.
func EntityFields(entityTypes []string) map[string]any {
	joined := strings.Join(entityTypes, ", ")
	return map[string]any{
		"entities": map[string]any{
			"type":        "array",
			"description": "Named entities found: " + joined,
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":    field("string", "Entity name"),
					"type":    field("string", "Entity type: "+joined),
					"context": field("string", "Context where entity appears"),
				},
			},
		},
	}
}

// FromExample infers a schema from a sample page object. A page_number field
// is always present in the result.
func FromExample(example map[string]any) Schema {
	s := Schema{"type": "object", "properties": inferProperties(example)}
	props := s.Properties()
	if _, ok := props["page_number"]; !ok {
		props["page_number"] = field("integer", "Page number (1-indexed)")
	}
	return s
}

func inferProperties(obj map[string]any) map[string]any {
	props := make(map[string]any, len(obj))
	for name, value := range obj {
		props[name] = inferField(value)
	}
	return props
}

func inferField(value any) map[string]any {
	t := inferType(value)
	switch t {
	case "array":
		def := map[string]any{"type": "array"}
		items, _ := value.([]any)
		if len(items) > 0 {
			if nested, ok := items[0].(map[string]any); ok {
				def["items"] = map[string]any{"type": "object", "properties": inferProperties(nested)}
			} else {
				def["items"] = map[string]any{"type": inferType(items[0])}
			}
		}
		return def
	case "object":
		nested, _ := value.(map[string]any)
		return map[string]any{"type": "object", "properties": inferProperties(nested)}
	default:
		return map[string]any{"type": t}
	}
}

func inferType(value any) string {
	switch v := value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int32, int64:
		return "integer"
	case float64:
		if v == float64(int64(v)) {
			return "integer"
		}
		return "number"
	case float32:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "string"
	}
}

// Example builds a placeholder page object that shows the model the expected
// shape. Placeholder values are recognisable so they can be filtered later.
func Example(s Schema) map[string]any {
	return exampleObject(map[string]any(s))
}

func exampleObject(def map[string]any) map[string]any {
	if t, _ := def["type"].(string); t != "object" {
		return map[string]any{}
	}
	props, _ := def["properties"].(map[string]any)
	out := make(map[string]any, len(props))

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fd, _ := props[name].(map[string]any)
		if fd == nil {
			continue
		}
		out[name] = exampleValue(name, fd)
	}
	return out
}

func exampleValue(name string, def map[string]any) any {
	lower := strings.ToLower(name)
	t, _ := def["type"].(string)
	if t == "" {
		t = "string"
	}
	switch t {
	case "string":
		desc, _ := def["description"].(string)
		switch {
		case strings.Contains(lower, "page"):
			return "Page X"
		case strings.Contains(lower, "content"):
			return "main text content from page"
		case strings.Contains(lower, "title"):
			return "actual title from document"
		case desc != "":
			return fmt.Sprintf("actual %s data", name)
		default:
			return "actual_" + name
		}
	case "integer":
		if strings.Contains(lower, "page") {
			return 1
		}
		return 0
	case "number":
		return 0.0
	case "boolean":
		return false
	case "array":
		items, _ := def["items"].(map[string]any)
		switch it, _ := items["type"].(string); it {
		case "string":
			if strings.Contains(lower, "header") || strings.Contains(lower, "row") {
				return []any{"actual_data_1", "actual_data_2"}
			}
			return []any{"actual_item_1", "actual_item_2"}
		case "object":
			nested := exampleObject(items)
			if len(nested) == 0 {
				return []any{}
			}
			return []any{nested}
		default:
			return []any{}
		}
	case "object":
		return exampleObject(def)
	}
	return nil
}
