package testutil

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var pageListPattern = regexp.MustCompile(`Process these pages: \[([0-9, ]*)\]`)

// PagesFromPrompt returns the page list an extraction prompt asks for.
func PagesFromPrompt(prompt string) []int {
	m := pageListPattern.FindStringSubmatch(prompt)
	if m == nil {
		return nil
	}
	var pages []int
	for _, part := range strings.Split(m[1], ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			pages = append(pages, n)
		}
	}
	return pages
}

// PageResponse builds a model reply of the form {"pages": [...]} with one
// simple object per page.
func PageResponse(pages []int) string {
	objs := make([]map[string]any, 0, len(pages))
	for _, p := range pages {
		objs = append(objs, map[string]any{
			"page_number":     p,
			"content":         fmt.Sprintf("Text of page %d", p),
			"summary":         fmt.Sprintf("Summary %d", p),
			"contains_tables": false,
			"tables_data":     []any{},
			"contains_images": false,
		})
	}
	b, _ := json.Marshal(map[string]any{"pages": objs})
	return string(b)
}
