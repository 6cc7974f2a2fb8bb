package page

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

var knownFields = map[string]bool{
	"page_number":        true,
	"content":            true,
	"summary":            true,
	"key_points":         true,
	"contains_tables":    true,
	"tables_data":        true,
	"contains_images":    true,
	"image_descriptions": true,
	"visual_summary":     true,
	"entities":           true,
	"key_findings":       true,
}

// Decode converts one model-produced page object into a Result. The returned
// claim is the page number the object asserts for itself, or 0 when it is
// absent or not a positive integer. Result.PageNumber is set to the claim;
// callers decide whether to trust it.
func Decode(obj map[string]any) (Result, int) {
	claim := pageClaim(obj["page_number"])
	r := Result{
		PageNumber:     claim,
		Content:        asString(obj["content"]),
		Summary:        asString(obj["summary"]),
		KeyPoints:      asStrings(obj["key_points"]),
		ContainsTables: asBool(obj["contains_tables"]),
		Tables:         decodeTables(obj["tables_data"]),
		ContainsImages: asBool(obj["contains_images"]),
		Images:         decodeImages(obj["image_descriptions"]),
		VisualSummary:  asString(obj["visual_summary"]),
		Entities:       decodeEntities(obj["entities"]),
		KeyFindings:    asStrings(obj["key_findings"]),
	}
	if len(r.Tables) > 0 {
		r.ContainsTables = true
	}
	if len(r.Images) > 0 {
		r.ContainsImages = true
	}
	for k, v := range obj {
		if knownFields[k] {
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]any)
		}
		r.Extra[k] = v
	}
	return r, claim
}

func pageClaim(v any) int {
	switch n := v.(type) {
	case float64:
		if n >= 1 && n == math.Trunc(n) && n <= math.MaxInt32 {
			return int(n)
		}
	case int:
		if n >= 1 {
			return n
		}
	case json.Number:
		if i, err := n.Int64(); err == nil && i >= 1 && i <= math.MaxInt32 {
			return int(i)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil && i >= 1 {
			return i
		}
	}
	return 0
}

// Row is a table row at the parse boundary: either positional cells or cells
// keyed by header name. Exactly one of Cells and Fields is set.
type Row struct {
	Cells  []string
	Fields map[string]string
}

// ArrayRow builds a positional row.
func ArrayRow(cells ...string) Row { return Row{Cells: cells} }

// MapRow builds a row keyed by header.
func MapRow(fields map[string]string) Row { return Row{Fields: fields} }

func decodeRow(v any) (Row, bool) {
	switch r := v.(type) {
	case []any:
		cells := make([]string, len(r))
		for i, c := range r {
			cells[i] = asString(c)
		}
		return ArrayRow(cells...), true
	case []string:
		return ArrayRow(r...), true
	case map[string]any:
		fields := make(map[string]string, len(r))
		for k, c := range r {
			fields[k] = asString(c)
		}
		return MapRow(fields), true
	case map[string]string:
		return MapRow(r), true
	case string:
		return ArrayRow(r), true
	case nil:
		return Row{}, false
	default:
		return ArrayRow(asString(r)), true
	}
}

func decodeTables(v any) []Table {
	items, ok := v.([]any)
	if !ok {
		return []Table{}
	}
	tables := make([]Table, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		title := asString(m["table_title"])
		if title == "" {
			title = asString(m["title"])
		}
		var rows []Row
		if raw, ok := m["rows"].([]any); ok {
			for _, r := range raw {
				if row, ok := decodeRow(r); ok {
					rows = append(rows, row)
				}
			}
		}
		headers, cells := NormalizeRows(asStrings(m["headers"]), rows)
		tables = append(tables, Table{
			Title:   title,
			Headers: headers,
			Rows:    cells,
			Summary: asString(m["summary"]),
		})
	}
	return tables
}

// NormalizeRows resolves mixed rows to cells aligned with headers. Keyed
// cells are matched to headers ignoring case and spacing; keys that match no
// header become extra trailing columns, and the returned headers are
// extended with them. Short positional rows are padded.
func NormalizeRows(headers []string, rows []Row) ([]string, [][]string) {
	out := append([]string{}, headers...)
	index := make(map[string]int, len(out))
	for i, h := range out {
		key := headerKey(h)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	var extra []string
	seen := map[string]bool{}
	for _, r := range rows {
		if r.Cells != nil {
			continue
		}
		for _, k := range sortedKeys(r.Fields) {
			key := headerKey(k)
			if _, ok := index[key]; ok || seen[key] {
				continue
			}
			seen[key] = true
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		index[headerKey(k)] = len(out)
		out = append(out, k)
	}

	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		var row []string
		if r.Cells != nil {
			row = append([]string{}, r.Cells...)
			for len(row) < len(out) {
				row = append(row, "")
			}
		} else {
			// Keys that collapse to the same header resolve in sorted order;
			// the first non-empty value wins.
			row = make([]string, len(out))
			for _, k := range sortedKeys(r.Fields) {
				if i := index[headerKey(k)]; row[i] == "" {
					row[i] = r.Fields[k]
				}
			}
		}
		cells = append(cells, row)
	}
	return out, cells
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func headerKey(h string) string {
	h = strings.ReplaceAll(strings.ToLower(h), "_", " ")
	return strings.Join(strings.Fields(h), " ")
}

func decodeImages(v any) []ImageDescription {
	items, ok := v.([]any)
	if !ok {
		return []ImageDescription{}
	}
	images := make([]ImageDescription, 0, len(items))
	for _, item := range items {
		switch m := item.(type) {
		case map[string]any:
			images = append(images, ImageDescription{
				Type:        asString(m["image_type"]),
				Description: asString(m["description"]),
				Location:    asString(m["location"]),
			})
		case string:
			images = append(images, ImageDescription{Description: m})
		}
	}
	return images
}

// decodeEntities accepts plain names or objects carrying a name field.
func decodeEntities(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return asStrings(v)
	}
	var names []string
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			for _, key := range []string{"name", "entity", "text", "value"} {
				if s := asString(m[key]); s != "" {
					names = append(names, s)
					break
				}
			}
			continue
		}
		if s := asString(item); s != "" {
			names = append(names, s)
		}
	}
	return names
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case json.Number:
		return s.String()
	default:
		b, err := json.Marshal(s)
		if err != nil {
			return fmt.Sprint(s)
		}
		return string(b)
	}
}

func asStrings(v any) []string {
	switch items := v.(type) {
	case nil:
		return nil
	case []string:
		return items
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if items == "" {
			return nil
		}
		return []string{items}
	default:
		return []string{asString(items)}
	}
}

func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, _ := strconv.ParseBool(strings.TrimSpace(b))
		return parsed
	case float64:
		return b != 0
	}
	return false
}
