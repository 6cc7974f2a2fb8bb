// Package pdfinfo reads document-level facts from a PDF before extraction.
package pdfinfo

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

var (
	// ErrNotFound is returned when the path does not name a readable file.
	ErrNotFound = errors.New("pdf not found")
	// ErrFormat is returned when the file cannot be parsed as a PDF with pages.
	ErrFormat = errors.New("invalid pdf")
)

// textProbePages bounds how many pages are scanned for a text layer.
const textProbePages = 3

// Info describes a PDF file. It is immutable once returned by Probe.
type Info struct {
	Path         string `json:"path" yaml:"path"`
	TotalPages   int    `json:"total_pages" yaml:"total_pages"`
	SizeBytes    int64  `json:"size_bytes" yaml:"size_bytes"`
	HasTextLayer bool   `json:"has_text_layer" yaml:"has_text_layer"`
	Title        string `json:"title,omitempty" yaml:"title,omitempty"`
	Author       string `json:"author,omitempty" yaml:"author,omitempty"`
}

// SizeMB returns the file size in megabytes.
func (i *Info) SizeMB() float64 {
	return float64(i.SizeBytes) / (1024 * 1024)
}

// Probe opens the PDF at path and reports its page count and size.
// Metadata and text-layer detection are best effort and never fail the probe.
func Probe(path string) (*Info, error) {
	return ProbeWithLogger(path, nil)
}

// ProbeWithLogger is Probe with an explicit logger for best-effort warnings.
func ProbeWithLogger(path string, logger *slog.Logger) (*Info, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}
	if !st.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrNotFound, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}
	pageCount, err := api.PageCount(f, nil)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFormat, path, err)
	}
	if pageCount < 1 {
		return nil, fmt.Errorf("%w: %s has no pages", ErrFormat, path)
	}

	info := &Info{
		Path:       path,
		TotalPages: pageCount,
		SizeBytes:  st.Size(),
	}

	if err := readTextLayer(path, info); err != nil {
		logger.Debug("text layer probe failed", "path", path, "error", err)
	}

	return info, nil
}

// readTextLayer fills Title, Author and HasTextLayer from the document.
func readTextLayer(path string, info *Info) (err error) {
	// The text reader panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	meta := r.Trailer().Key("Info")
	info.Title = strings.TrimSpace(meta.Key("Title").Text())
	info.Author = strings.TrimSpace(meta.Key("Author").Text())

	n := r.NumPage()
	if n > textProbePages {
		n = textProbePages
	}
	for i := 1; i <= n; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			info.HasTextLayer = true
			return nil
		}
	}
	return nil
}
