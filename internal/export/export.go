// Package export writes extraction results to disk.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackzampolin/vellum/internal/pipeline"
)

// ResultsSuffix is appended to the PDF base name for the default output file.
const ResultsSuffix = "_extraction_results.json"

// Document is the layout of a saved results file.
type Document struct {
	ProcessingMetadata pipeline.Metadata `json:"processing_metadata"`
	ExtractionResults  *pipeline.Result  `json:"extraction_results"`
}

// DefaultOutputName returns <base>_extraction_results.json for a PDF path.
func DefaultOutputName(pdfPath string) string {
	base := filepath.Base(pdfPath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ResultsSuffix
}

// WriteJSON saves res to path. The file is written next to its destination
// and renamed into place so readers never see a partial file.
func WriteJSON(path string, res *pipeline.Result) error {
	if res == nil {
		return fmt.Errorf("no results to write")
	}
	doc := Document{ProcessingMetadata: res.Metadata, ExtractionResults: res}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".vellum-*.json")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, FormatJSON, doc); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

// ReadJSON loads a results file written by WriteJSON.
func ReadJSON(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse results file %s: %w", path, err)
	}
	return &doc, nil
}
