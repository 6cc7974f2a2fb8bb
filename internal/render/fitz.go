package render

import (
	"context"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

const FitzName = "fitz"

// Fitz renders pages in-process with MuPDF.
type Fitz struct{}

// NewFitz returns an in-process renderer.
func NewFitz() *Fitz {
	return &Fitz{}
}

// Name returns the renderer identifier.
func (f *Fitz) Name() string {
	return FitzName
}

// RenderPage opens the document and rasterizes one page.
func (f *Fitz) RenderPage(ctx context.Context, path string, page, dpi int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if page < 1 || page > doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range (document has %d)", page, doc.NumPage())
	}

	// go-fitz pages are 0-indexed.
	img, err := doc.ImageDPI(page-1, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("rasterize: %w", err)
	}
	return img, nil
}

var _ Renderer = (*Fitz)(nil)
