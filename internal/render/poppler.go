package render

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

const (
	PopplerName    = "poppler"
	pdftoppmBinary = "pdftoppm"
)

// Poppler renders pages by shelling out to pdftoppm (poppler-utils).
type Poppler struct {
	Binary string
}

// NewPoppler returns a renderer using pdftoppm from PATH.
func NewPoppler() *Poppler {
	return &Poppler{Binary: pdftoppmBinary}
}

// Name returns the renderer identifier.
func (p *Poppler) Name() string {
	return PopplerName
}

// RenderPage renders one page to PNG in a temp dir and decodes it.
func (p *Poppler) RenderPage(ctx context.Context, path string, page, dpi int) (image.Image, error) {
	tmpDir, err := os.MkdirTemp("", "vellum-page-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")
	pageStr := strconv.Itoa(page)

	// -singlefile drops the page-number suffix from the output name.
	cmd := exec.CommandContext(ctx, p.Binary,
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", strconv.Itoa(dpi),
		"-singlefile",
		path,
		outputPrefix,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	f, err := os.Open(outputPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode rendered page: %w", err)
	}
	return img, nil
}

var _ Renderer = (*Poppler)(nil)
