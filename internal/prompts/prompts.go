// Package prompts renders the model prompts used for page extraction.
package prompts

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/jackzampolin/vellum/internal/schema"
)

//go:embed extraction.tmpl
var extractionTmpl string

var extractionTemplate = template.Must(template.New("extraction").Parse(extractionTmpl))

// Extraction holds the per-schema parts of the extraction prompt. Build it
// once per run and call Render per batch.
type Extraction struct {
	Example string
	Tables  bool
	Visuals bool
}

// NewExtraction derives the prompt example from s.
func NewExtraction(s schema.Schema) (*Extraction, error) {
	example := map[string]any{"pages": []any{schema.Example(s)}}
	b, err := json.MarshalIndent(example, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema example: %w", err)
	}
	props := s.Properties()
	_, tables := props["tables_data"]
	_, images := props["image_descriptions"]
	_, visual := props["visual_summary"]
	return &Extraction{
		Example: string(b),
		Tables:  tables,
		Visuals: images || visual,
	}, nil
}

// Render builds the prompt for one batch of pages.
func (e *Extraction) Render(pages []int) string {
	var buf bytes.Buffer
	data := struct {
		Example string
		Pages   string
		Tables  bool
		Visuals bool
	}{
		Example: e.Example,
		Pages:   formatPages(pages),
		Tables:  e.Tables,
		Visuals: e.Visuals,
	}
	if err := extractionTemplate.Execute(&buf, data); err != nil {
		return extractionTmpl
	}
	return buf.String()
}

// Hash returns a short digest identifying the prompt template and example.
func (e *Extraction) Hash() string {
	h := sha256.Sum256([]byte(extractionTmpl + e.Example))
	return hex.EncodeToString(h[:8])
}

func formatPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = fmt.Sprint(p)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
