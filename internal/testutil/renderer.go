package testutil

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
)

// Renderer draws small solid pages without touching the PDF. It satisfies
// render.Renderer and is safe for concurrent use.
type Renderer struct {
	// Fail maps page numbers to the error RenderPage returns for them.
	Fail map[int]error

	mu    sync.Mutex
	calls []int
}

// Name returns the renderer identifier.
func (r *Renderer) Name() string { return "test" }

// RenderPage returns a small grey image sized by dpi.
func (r *Renderer) RenderPage(ctx context.Context, path string, page, dpi int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.calls = append(r.calls, page)
	r.mu.Unlock()

	if err := r.Fail[page]; err != nil {
		return nil, fmt.Errorf("page %d: %w", page, err)
	}
	side := max(dpi/20, 4)
	img := image.NewRGBA(image.Rect(0, 0, side, side))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			img.Set(x, y, color.Gray{Y: uint8(page * 10)})
		}
	}
	return img, nil
}

// Calls returns the pages rendered so far.
func (r *Renderer) Calls() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.calls...)
}
