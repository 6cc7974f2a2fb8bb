// Package render rasterizes PDF pages into JPEG images sized for a vision model.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os/exec"
	"strings"
)

// ErrRender is the sentinel wrapped by every rasterization failure.
var ErrRender = errors.New("render failed")

// PageError identifies the page that could not be rendered.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("render page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() []error {
	return []error{ErrRender, e.Err}
}

// Renderer rasterizes a single 1-indexed page at the given resolution.
type Renderer interface {
	Name() string
	RenderPage(ctx context.Context, path string, page, dpi int) (image.Image, error)
}

// Pages renders each page in order and encodes it for upload. The result has
// one entry per requested page.
func Pages(ctx context.Context, r Renderer, path string, pages []int, dpi int, opts EncodeOptions) ([][]byte, error) {
	out := make([][]byte, 0, len(pages))
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := r.RenderPage(ctx, path, page, dpi)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &PageError{Page: page, Err: err}
		}
		data, err := Encode(img, opts)
		if err != nil {
			return nil, &PageError{Page: page, Err: err}
		}
		out = append(out, data)
	}
	return out, nil
}

// Names lists the renderer names accepted by New.
func Names() []string {
	return []string{"auto", PopplerName, FitzName}
}

// New returns the named renderer. "auto" prefers pdftoppm when it is on PATH
// and falls back to the in-process MuPDF renderer.
func New(name string) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		if _, err := exec.LookPath(pdftoppmBinary); err == nil {
			return NewPoppler(), nil
		}
		return NewFitz(), nil
	case PopplerName:
		return NewPoppler(), nil
	case FitzName:
		return NewFitz(), nil
	default:
		return nil, fmt.Errorf("unknown renderer %q (available: %s)", name, strings.Join(Names(), ", "))
	}
}
