package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/vellum/internal/page"
	"github.com/jackzampolin/vellum/internal/providers"
)

// ErrParse is returned when a model reply cannot be read as page objects.
var ErrParse = errors.New("unparsable model response")

// ResponseShape names the form a model reply took.
type ResponseShape int

const (
	// ShapeList is a bare JSON array of page objects.
	ShapeList ResponseShape = iota
	// ShapeWrapped is an object holding the array under pages, data or results.
	ShapeWrapped
	// ShapeSingle is a lone page object.
	ShapeSingle
)

func (s ResponseShape) String() string {
	switch s {
	case ShapeList:
		return "list"
	case ShapeWrapped:
		return "wrapped"
	default:
		return "single"
	}
}

var wrapperKeys = []string{"pages", "data", "results"}

// ParseResponse extracts page objects from a model reply. Markdown fences and
// surrounding prose are tolerated.
func ParseResponse(content string) ([]map[string]any, ResponseShape, error) {
	raw, err := providers.ParseJSON(content)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrParse, err)
	}

	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		objs, err := pageObjects(list)
		return objs, ShapeList, err
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, 0, fmt.Errorf("%w: expected object or array", ErrParse)
	}
	for _, key := range wrapperKeys {
		if inner, ok := obj[key].([]any); ok {
			objs, err := pageObjects(inner)
			return objs, ShapeWrapped, err
		}
	}
	return []map[string]any{obj}, ShapeSingle, nil
}

func pageObjects(items []any) ([]map[string]any, error) {
	objs := make([]map[string]any, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		objs = append(objs, m)
	}
	if len(objs) == 0 && len(items) > 0 {
		return nil, fmt.Errorf("%w: array holds no page objects", ErrParse)
	}
	return objs, nil
}

// assignment is the outcome of matching page objects to batch pages.
type assignment struct {
	results []page.Result
	objects map[int]map[string]any
	dropped int
	missing []int
}

// assignPages matches decoded objects to the pages of a batch. A claimed page
// number is trusted when it belongs to the batch and is not yet taken;
// otherwise the object fills the next free page in batch order. Objects left
// over once every page is filled are dropped, and pages nobody filled are
// returned as missing.
func assignPages(pages []int, objs []map[string]any) assignment {
	inBatch := make(map[int]bool, len(pages))
	for _, p := range pages {
		inBatch[p] = true
	}

	decoded := make([]page.Result, len(objs))
	owner := make([]int, len(objs))
	taken := make(map[int]int, len(pages))
	for i, obj := range objs {
		r, claim := page.Decode(obj)
		decoded[i] = r
		if claim > 0 && inBatch[claim] {
			if _, dup := taken[claim]; !dup {
				taken[claim] = i
				owner[i] = claim
			}
		}
	}

	next := 0
	a := assignment{objects: make(map[int]map[string]any, len(pages))}
	for i := range objs {
		if owner[i] != 0 {
			continue
		}
		for next < len(pages) {
			if _, ok := taken[pages[next]]; !ok {
				break
			}
			next++
		}
		if next >= len(pages) {
			a.dropped++
			continue
		}
		taken[pages[next]] = i
		owner[i] = pages[next]
	}

	for _, p := range pages {
		i, ok := taken[p]
		if !ok {
			a.missing = append(a.missing, p)
			continue
		}
		r := decoded[i]
		r.PageNumber = p
		a.results = append(a.results, r)
		a.objects[p] = objs[i]
	}
	return a
}

func logAssignment(logger *slog.Logger, b Batch, a assignment) {
	if a.dropped > 0 {
		logger.Warn("dropped extra page objects from model response",
			"batch", b.Index, "pages", b.Pages, "dropped", a.dropped)
	}
	if len(a.missing) > 0 {
		logger.Warn("model response missing pages",
			"batch", b.Index, "missing", a.missing)
	}
}
