// Package accumulate merges per-page extraction results into one
// document-level view.
package accumulate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackzampolin/vellum/internal/page"
)

// PageTable is a table with the page it came from.
type PageTable struct {
	Page int `json:"page_number"`
	page.Table
}

// PageImage is an image description with the page it came from.
type PageImage struct {
	Page int `json:"page_number"`
	page.ImageDescription
}

// PageItem is a text item with the page it came from.
type PageItem struct {
	Page int    `json:"page_number"`
	Text string `json:"text"`
}

// Data is the document-level merge of all page results.
type Data struct {
	TotalContent    string         `json:"total_content"`
	Tables          []PageTable    `json:"tables"`
	Images          []PageImage    `json:"images"`
	Entities        []PageItem     `json:"entities"`
	KeyFindings     []PageItem     `json:"key_findings"`
	KeyPoints       []PageItem     `json:"key_points"`
	UniqueEntities  []string       `json:"unique_entities"`
	VisualSummary   string         `json:"visual_summary"`
	VisualSummaries []PageItem     `json:"visual_summaries"`
	ContainsTables  bool           `json:"contains_tables"`
	ContainsImages  bool           `json:"contains_images"`
	CustomFields    map[string]any `json:"custom_fields,omitempty"`
}

// Accumulate merges pages in page-number order regardless of input order.
// The input slice is not modified.
func Accumulate(pages []page.Result) Data {
	sorted := append([]page.Result(nil), pages...)
	page.SortByPage(sorted)

	d := Data{
		Tables:          []PageTable{},
		Images:          []PageImage{},
		Entities:        []PageItem{},
		KeyFindings:     []PageItem{},
		KeyPoints:       []PageItem{},
		UniqueEntities:  []string{},
		VisualSummaries: []PageItem{},
	}
	var content strings.Builder
	seenEntity := make(map[string]bool)
	custom := newFieldMerger()

	for _, p := range sorted {
		if text := strings.TrimSpace(p.Content); text != "" && !page.IsTemplateToken(text) {
			if content.Len() > 0 {
				content.WriteString("\n\n")
			}
			fmt.Fprintf(&content, "--- Page %d ---\n\n%s", p.PageNumber, text)
		}

		for _, t := range p.Tables {
			if t, ok := cleanTable(t); ok {
				d.Tables = append(d.Tables, PageTable{Page: p.PageNumber, Table: t})
			}
		}
		for _, img := range p.Images {
			if strings.TrimSpace(img.Description) == "" || page.IsTemplateToken(img.Description) {
				continue
			}
			d.Images = append(d.Images, PageImage{Page: p.PageNumber, ImageDescription: img})
		}
		for _, name := range page.FilterPlaceholders(p.Entities) {
			d.Entities = append(d.Entities, PageItem{Page: p.PageNumber, Text: name})
			key := strings.ToLower(strings.TrimSpace(name))
			if !seenEntity[key] {
				seenEntity[key] = true
				d.UniqueEntities = append(d.UniqueEntities, strings.TrimSpace(name))
			}
		}
		d.KeyFindings = appendItems(d.KeyFindings, p.PageNumber, p.KeyFindings)
		d.KeyPoints = appendItems(d.KeyPoints, p.PageNumber, p.KeyPoints)
		if vs := strings.TrimSpace(p.VisualSummary); vs != "" && !page.IsTemplateToken(vs) {
			d.VisualSummaries = append(d.VisualSummaries, PageItem{Page: p.PageNumber, Text: vs})
		}

		d.ContainsTables = d.ContainsTables || p.ContainsTables
		d.ContainsImages = d.ContainsImages || p.ContainsImages
		for _, k := range p.ExtraKeys() {
			custom.add(k, p.Extra[k])
		}
	}

	d.TotalContent = content.String()
	d.ContainsTables = d.ContainsTables || len(d.Tables) > 0
	d.ContainsImages = d.ContainsImages || len(d.Images) > 0
	d.VisualSummary = visualSummary(d.Images, len(d.Tables))
	d.CustomFields = custom.result()
	return d
}

func appendItems(dst []PageItem, pageNumber int, items []string) []PageItem {
	for _, s := range page.FilterPlaceholders(items) {
		dst = append(dst, PageItem{Page: pageNumber, Text: s})
	}
	return dst
}

// cleanTable drops rows made only of template tokens and reports whether the
// table is worth keeping.
func cleanTable(t page.Table) (page.Table, bool) {
	rows := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if !page.IsTemplateRow(row) {
			rows = append(rows, row)
		}
	}
	t.Rows = rows
	if page.IsTemplateToken(t.Title) {
		t.Title = ""
	}
	if !t.HasData() {
		return t, false
	}
	return t, true
}

var chartWords = []string{"chart", "graph", "diagram", "figure", "plot"}

func isChart(imageType string) bool {
	t := strings.ToLower(imageType)
	for _, w := range chartWords {
		if strings.Contains(t, w) {
			return true
		}
	}
	return false
}

func visualSummary(images []PageImage, tables int) string {
	charts := 0
	for _, img := range images {
		if isChart(img.Type) {
			charts++
		}
	}
	s := fmt.Sprintf("Document contains %d charts and %d tables", charts, tables)
	if other := len(images) - charts; other > 0 {
		s += fmt.Sprintf(" plus %d other images", other)
	}
	return s
}

// fieldMerger folds custom schema fields across pages.
type fieldMerger struct {
	values map[string]any
	seen   map[string]map[string]bool
}

func newFieldMerger() *fieldMerger {
	return &fieldMerger{values: make(map[string]any), seen: make(map[string]map[string]bool)}
}

func (m *fieldMerger) add(name string, v any) {
	cur, exists := m.values[name]
	switch val := v.(type) {
	case string:
		val = strings.TrimSpace(val)
		if val == "" || page.IsTemplateToken(val) {
			if !exists {
				m.values[name] = ""
			}
			return
		}
		s, ok := cur.(string)
		switch {
		case !exists || (ok && s == ""):
			m.values[name] = val
		case ok && s != val:
			m.values[name] = s + "\n" + val
		}
	case []any:
		list, ok := cur.([]any)
		if exists && !ok {
			return
		}
		if list == nil {
			list = []any{}
		}
		if m.seen[name] == nil {
			m.seen[name] = make(map[string]bool)
		}
		for _, item := range val {
			if keepItem(item) {
				key := itemKey(item)
				if !m.seen[name][key] {
					m.seen[name][key] = true
					list = append(list, item)
				}
			}
		}
		m.values[name] = list
	case bool:
		b, ok := cur.(bool)
		if !exists || ok {
			m.values[name] = b || val
		}
	case float64:
		n, ok := cur.(float64)
		switch {
		case !exists:
			m.values[name] = val
		case ok && summable(name):
			m.values[name] = n + val
		}
	case nil:
		if !exists {
			m.values[name] = nil
		}
	default:
		if !exists || cur == nil {
			m.values[name] = val
		}
	}
}

func (m *fieldMerger) result() map[string]any {
	if len(m.values) == 0 {
		return nil
	}
	return m.values
}

func summable(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "count") || strings.Contains(n, "total")
}

func keepItem(item any) bool {
	switch v := item.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != "" && !page.IsPlaceholder(v)
	case map[string]any:
		for _, field := range v {
			if s, ok := field.(string); ok && s != "" && !page.IsPlaceholder(s) {
				return true
			}
			if _, ok := field.(string); !ok && field != nil {
				return true
			}
		}
		return false
	}
	return true
}

func itemKey(item any) string {
	b, err := json.Marshal(item)
	if err != nil {
		return fmt.Sprint(item)
	}
	return string(b)
}
