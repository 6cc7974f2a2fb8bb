package pipeline

import (
	"math"

	"github.com/jackzampolin/vellum/internal/autoconfig"
	"github.com/jackzampolin/vellum/internal/estimate"
	"github.com/jackzampolin/vellum/internal/pdfinfo"
)

// FileInfo is the file summary shown before processing.
type FileInfo struct {
	FilePath     string  `json:"file_path" yaml:"file_path"`
	SizeBytes    int64   `json:"file_size_bytes" yaml:"file_size_bytes"`
	SizeMB       float64 `json:"file_size_mb" yaml:"file_size_mb"`
	TotalPages   int     `json:"total_pages" yaml:"total_pages"`
	CanProcess   bool    `json:"can_process" yaml:"can_process"`
	HasTextLayer bool    `json:"has_text_layer" yaml:"has_text_layer"`
	Title        string  `json:"title,omitempty" yaml:"title,omitempty"`
	Author       string  `json:"author,omitempty" yaml:"author,omitempty"`
}

// Inspection is what a run would do, without calling the model.
type Inspection struct {
	PDFInfo    FileInfo          `json:"pdf_info" yaml:"pdf_info"`
	Estimates  estimate.Estimate `json:"estimates" yaml:"estimates"`
	AutoConfig autoconfig.Config `json:"auto_config" yaml:"auto_config"`
}

// Inspect probes a PDF and forecasts processing pages start..end.
func Inspect(path string, start, end int, override autoconfig.Override) (*Inspection, error) {
	info, err := pdfinfo.Probe(path)
	if err != nil {
		return nil, err
	}
	cfg, err := autoconfig.Configure(info.TotalPages)
	if err != nil {
		return nil, err
	}
	if cfg, err = override.Apply(cfg); err != nil {
		return nil, err
	}
	est, err := estimate.For(info.TotalPages, start, end)
	if err != nil {
		return nil, err
	}
	return &Inspection{
		PDFInfo: FileInfo{
			FilePath:     info.Path,
			SizeBytes:    info.SizeBytes,
			SizeMB:       math.Round(info.SizeMB()*100) / 100,
			TotalPages:   info.TotalPages,
			CanProcess:   true,
			HasTextLayer: info.HasTextLayer,
			Title:        info.Title,
			Author:       info.Author,
		},
		Estimates:  est,
		AutoConfig: cfg,
	}, nil
}
