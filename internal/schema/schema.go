// Package schema builds, validates and loads the JSON schemas that describe
// what is extracted from each page.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed presets/*.json
var presetFS embed.FS

// ErrUnknownPreset is returned by Preset for names with no embedded schema.
var ErrUnknownPreset = errors.New("unknown schema preset")

// ValidTypes are the field types a page schema may declare.
var ValidTypes = []string{"string", "integer", "number", "boolean", "array", "object"}

// Schema is a JSON schema document describing one page object.
type Schema map[string]any

// ValidationError describes why a schema was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid schema: " + e.Reason
	}
	return fmt.Sprintf("invalid schema: field %q: %s", e.Field, e.Reason)
}

// Properties returns the schema's properties map, or nil when absent.
func (s Schema) Properties() map[string]any {
	props, _ := s["properties"].(map[string]any)
	return props
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (s Schema) Clone() Schema {
	if s == nil {
		return nil
	}
	return Schema(deepCopy(map[string]any(s)).(map[string]any))
}

// JSON returns the indented JSON encoding of the schema.
func (s Schema) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// FieldNames returns property names in sorted order.
func (s Schema) FieldNames() []string {
	props := s.Properties()
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Options selects the optional sections of the base schema.
type Options struct {
	IncludeImages         bool
	IncludeTables         bool
	IncludeVisualAnalysis bool
}

// DefaultOptions enables every optional section.
func DefaultOptions() Options {
	return Options{IncludeImages: true, IncludeTables: true, IncludeVisualAnalysis: true}
}

// Base returns the general-purpose page schema.
func Base(opts Options) Schema {
	props := map[string]any{
		"page_number": field("integer", "Page number (1-indexed)"),
		"content":     field("string", "Main text content from the page"),
		"summary":     field("string", "Brief summary of the page content"),
		"key_points": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "Main points and takeaways from the page",
		},
	}

	if opts.IncludeImages {
		props["contains_images"] = field("boolean", "Whether page contains images, charts, or diagrams")
		props["image_descriptions"] = map[string]any{
			"type":        "array",
			"description": "Descriptions of visual elements",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"image_type":  field("string", "Type of visual element"),
					"description": field("string", "Detailed description"),
					"location":    field("string", "Location on page"),
				},
			},
		}
	}

	if opts.IncludeTables {
		props["contains_tables"] = field("boolean", "Whether page contains tables")
		props["tables_data"] = map[string]any{
			"type":        "array",
			"description": "Extracted table data",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"table_title": map[string]any{"type": "string"},
					"headers":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"rows": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
				},
			},
		}
	}

	if opts.IncludeVisualAnalysis {
		props["visual_summary"] = field("string", "Overall summary of visual elements on the page")
	}

	return Schema{
		"type":       "object",
		"properties": props,
		"required":   []any{"page_number", "content"},
	}
}

// Default returns the base schema with every section enabled.
func Default() Schema {
	return Base(DefaultOptions())
}

// Collision records a property present in both schemas passed to Merge.
type Collision struct {
	Field    string `json:"field" yaml:"field"`
	Previous any    `json:"previous" yaml:"previous"`
	Replaced any    `json:"replaced" yaml:"replaced"`
}

// Merge returns base with extra's properties added. On a name collision the
// extra definition wins and the collision is reported.
func Merge(base Schema, extra map[string]any) (Schema, []Collision) {
	merged := base.Clone()
	if merged == nil {
		merged = Schema{"type": "object"}
	}
	props := merged.Properties()
	if props == nil {
		props = map[string]any{}
		merged["properties"] = props
	}

	names := make([]string, 0, len(extra))
	for name := range extra {
		names = append(names, name)
	}
	sort.Strings(names)

	var collisions []Collision
	for _, name := range names {
		def := deepCopy(extra[name])
		if prev, ok := props[name]; ok {
			collisions = append(collisions, Collision{Field: name, Previous: prev, Replaced: def})
		}
		props[name] = def
	}
	return merged, collisions
}

// Validate checks the structural rules every page schema must satisfy and
// that the document compiles as a JSON schema.
func Validate(s Schema) error {
	if s == nil {
		return &ValidationError{Reason: "schema is empty"}
	}
	if t, _ := s["type"].(string); t != "object" {
		return &ValidationError{Reason: "schema type must be 'object'"}
	}
	rawProps, ok := s["properties"]
	if !ok {
		return &ValidationError{Reason: "schema must include 'page_number' field for page tracking"}
	}
	props, ok := rawProps.(map[string]any)
	if !ok {
		return &ValidationError{Reason: "schema properties must be an object"}
	}

	pn, ok := props["page_number"]
	if !ok {
		return &ValidationError{Reason: "schema must include 'page_number' field for page tracking"}
	}
	if def, _ := pn.(map[string]any); def == nil || def["type"] != "integer" {
		return &ValidationError{Field: "page_number", Reason: "must be of type 'integer'"}
	}

	for _, name := range s.FieldNames() {
		def, ok := props[name].(map[string]any)
		if !ok {
			return &ValidationError{Field: name, Reason: "definition must be an object"}
		}
		t, _ := def["type"].(string)
		if t == "" {
			return &ValidationError{Field: name, Reason: "must have a 'type' property"}
		}
		if !isValidType(t) {
			return &ValidationError{
				Field:  name,
				Reason: fmt.Sprintf("invalid type %q, must be one of: %s", t, strings.Join(ValidTypes, ", ")),
			}
		}
		if t == "array" {
			if items, ok := def["items"].(map[string]any); ok {
				if it, _ := items["type"].(string); it != "" && !isValidType(it) {
					return &ValidationError{Field: name, Reason: fmt.Sprintf("array items have invalid type %q", it)}
				}
			}
		}
	}

	if _, err := compile(s); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	return nil
}

// Validator checks model output against a schema. Required fields are not
// enforced; models routinely omit optional-looking keys.
type Validator struct {
	compiled *jsonschema.Schema
}

// NewValidator compiles s for checking page objects.
func NewValidator(s Schema) (*Validator, error) {
	relaxed := s.Clone()
	stripRequired(map[string]any(relaxed))
	allowObjectRows(map[string]any(relaxed))
	compiled, err := compile(relaxed)
	if err != nil {
		return nil, err
	}
	return &Validator{compiled: compiled}, nil
}

// Check validates a single decoded page object.
func (v *Validator) Check(page map[string]any) error {
	if err := v.compiled.Validate(page); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

func compile(s Schema) (*jsonschema.Schema, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, nil
}

// Presets lists the names of the embedded preset schemas.
func Presets() []string {
	entries, err := presetFS.ReadDir("presets")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names
}

// Preset returns a copy of the named embedded schema.
func Preset(name string) (Schema, error) {
	data, err := presetFS.ReadFile(path.Join("presets", strings.ToLower(name)+".json"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s (available: %s)", ErrUnknownPreset, name, strings.Join(Presets(), ", "))
	}
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode preset %s: %w", name, err)
	}
	return s, nil
}

// Load reads and validates a schema file.
func Load(filename string) (Schema, error) {
	s, err := readFile(filename)
	if err != nil {
		return nil, err
	}
	if err := Validate(s); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return s, nil
}

// Parse accepts either inline JSON or a path to a schema file and validates
// the result.
func Parse(arg string) (Schema, error) {
	s, err := Decode(arg)
	if err != nil {
		return nil, err
	}
	if err := Validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Decode reads inline JSON or a schema file without validating it, for
// fragments that are merged into another schema before use. Inline text that
// fails to decode is retried as a path.
func Decode(arg string) (Schema, error) {
	trimmed := strings.TrimSpace(arg)
	if strings.HasPrefix(trimmed, "{") {
		var s Schema
		err := json.Unmarshal([]byte(trimmed), &s)
		if err == nil {
			return s, nil
		}
		if _, statErr := os.Stat(arg); statErr != nil {
			return nil, fmt.Errorf("failed to decode inline schema: %w", err)
		}
	}
	return readFile(arg)
}

func readFile(filename string) (Schema, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode schema file %s: %w", filename, err)
	}
	return s, nil
}

// Save validates s and writes it as indented JSON.
func Save(s Schema, filename string) error {
	if err := Validate(s); err != nil {
		return fmt.Errorf("cannot save invalid schema: %w", err)
	}
	data, err := s.JSON()
	if err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return os.WriteFile(filename, append(data, '\n'), 0o644)
}

func field(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}

func isValidType(t string) bool {
	for _, v := range ValidTypes {
		if v == t {
			return true
		}
	}
	return false
}

// stripRequired removes the required keyword from every subschema. Keys of
// a properties map are field names, not keywords, and are left alone.
func stripRequired(node any) {
	switch n := node.(type) {
	case map[string]any:
		delete(n, "required")
		for k, v := range n {
			if props, ok := v.(map[string]any); ok && k == "properties" {
				for _, def := range props {
					stripRequired(def)
				}
				continue
			}
			stripRequired(v)
		}
	case []any:
		for _, v := range n {
			stripRequired(v)
		}
	}
}

// allowObjectRows lets table rows be objects keyed by header as well as
// arrays of cells. Both forms are normalized when pages are decoded.
func allowObjectRows(node any) {
	switch n := node.(type) {
	case map[string]any:
		for k, v := range n {
			if props, ok := v.(map[string]any); ok && k == "properties" {
				if rows, ok := props["rows"].(map[string]any); ok {
					if items, ok := rows["items"].(map[string]any); ok && items["type"] == "array" {
						rows["items"] = map[string]any{"anyOf": []any{
							items,
							map[string]any{
								"type":                 "object",
								"additionalProperties": map[string]any{"type": "string"},
							},
						}}
					}
				}
				for _, def := range props {
					allowObjectRows(def)
				}
				continue
			}
			allowObjectRows(v)
		}
	case []any:
		for _, v := range n {
			allowObjectRows(v)
		}
	}
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case Schema:
		return deepCopy(map[string]any(t))
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = val
		}
		return out
	default:
		return v
	}
}
