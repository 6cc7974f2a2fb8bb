// Package page defines the canonical per-page extraction result and decodes
// loosely-typed model output into it.
package page

import (
	"encoding/json"
	"sort"
)

// Result is the extraction output for one page.
type Result struct {
	PageNumber     int                `json:"page_number"`
	Content        string             `json:"content"`
	Summary        string             `json:"summary,omitempty"`
	KeyPoints      []string           `json:"key_points"`
	ContainsTables bool               `json:"contains_tables"`
	Tables         []Table            `json:"tables_data"`
	ContainsImages bool               `json:"contains_images"`
	Images         []ImageDescription `json:"image_descriptions"`
	VisualSummary  string             `json:"visual_summary,omitempty"`
	Entities       []string           `json:"entities"`
	KeyFindings    []string           `json:"key_findings"`

	// Extra holds fields from custom schemas, preserved verbatim.
	Extra map[string]any `json:"-"`

	Degraded bool   `json:"degraded,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Table is a table normalized to rows aligned with Headers.
type Table struct {
	Title   string     `json:"table_title"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
	Summary string     `json:"summary,omitempty"`
}

// ImageDescription describes one visual element on a page.
type ImageDescription struct {
	Type        string `json:"image_type"`
	Description string `json:"description"`
	Location    string `json:"location,omitempty"`
}

// Degraded returns the placeholder result for a page that could not be extracted.
func Degraded(pageNumber int, reason string) Result {
	return Result{
		PageNumber: pageNumber,
		Tables:     []Table{},
		Images:     []ImageDescription{},
		Degraded:   true,
		Error:      reason,
	}
}

// MarshalJSON inlines Extra alongside the known fields.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	p := plain(r)
	if p.Tables == nil {
		p.Tables = []Table{}
	}
	if p.Images == nil {
		p.Images = []ImageDescription{}
	}
	if p.KeyPoints == nil {
		p.KeyPoints = []string{}
	}
	if p.Entities == nil {
		p.Entities = []string{}
	}
	if p.KeyFindings == nil {
		p.KeyFindings = []string{}
	}
	base, err := json.Marshal(p)
	if err != nil || len(r.Extra) == 0 {
		return base, err
	}

	var merged map[string]any
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range r.Extra {
		if _, known := merged[k]; !known {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON reads a page written by MarshalJSON.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, _ := Decode(raw)
	if d, ok := raw["degraded"].(bool); ok {
		decoded.Degraded = d
	}
	if e, ok := raw["error"].(string); ok {
		decoded.Error = e
	}
	delete(decoded.Extra, "degraded")
	delete(decoded.Extra, "error")
	if len(decoded.Extra) == 0 {
		decoded.Extra = nil
	}
	*r = decoded
	return nil
}

// ExtraKeys returns the custom field names in sorted order.
func (r Result) ExtraKeys() []string {
	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SortByPage orders results by page number in place.
func SortByPage(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].PageNumber < results[j].PageNumber
	})
}
