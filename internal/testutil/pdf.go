// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// PDFOptions controls the synthetic document produced by WritePDF.
type PDFOptions struct {
	Pages  int
	Title  string
	Author string
	// NoText omits page content streams so the file has no text layer.
	NoText bool
}

// WritePDF writes a minimal, well-formed PDF to a temp dir and returns its path.
func WritePDF(t testing.TB, opts PDFOptions) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.pdf")
	if err := os.WriteFile(path, BuildPDF(opts), 0o644); err != nil {
		t.Fatalf("write fixture pdf: %v", err)
	}
	return path
}

// BuildPDF renders a PDF with one Helvetica line per page ("Page N").
func BuildPDF(opts PDFOptions) []byte {
	if opts.Pages < 1 {
		opts.Pages = 1
	}

	// Object layout: 1 catalog, 2 pages, 3 font, 4 info, then page/content pairs.
	var objects []string
	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")

	kids := ""
	for i := 0; i < opts.Pages; i++ {
		kids += fmt.Sprintf("%d 0 R ", 5+i*2)
	}
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, opts.Pages))
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	objects = append(objects, fmt.Sprintf("<< /Title (%s) /Author (%s) >>", opts.Title, opts.Author))

	for i := 0; i < opts.Pages; i++ {
		contentRef := 6 + i*2
		objects = append(objects, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 3 0 R >> >> >>",
			contentRef,
		))
		stream := ""
		if !opts.NoText {
			stream = fmt.Sprintf("BT /F1 24 Tf 72 720 Td (Page %d) Tj ET", i+1)
		}
		objects = append(objects, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 4 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}
