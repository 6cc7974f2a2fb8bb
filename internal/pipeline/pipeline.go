// Package pipeline runs a full document extraction: probe, configure,
// extract, accumulate.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jackzampolin/vellum/internal/accumulate"
	"github.com/jackzampolin/vellum/internal/autoconfig"
	"github.com/jackzampolin/vellum/internal/extract"
	"github.com/jackzampolin/vellum/internal/page"
	"github.com/jackzampolin/vellum/internal/pdfinfo"
	"github.com/jackzampolin/vellum/internal/progress"
	"github.com/jackzampolin/vellum/internal/providers"
	"github.com/jackzampolin/vellum/internal/schema"
)

// TimestampLayout is the format of Metadata.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// Options selects what to extract from one document.
type Options struct {
	Path      string
	StartPage int
	EndPage   int
	// Schema defaults to schema.Default when nil.
	Schema   schema.Schema
	Override autoconfig.Override
	Progress progress.Callback
}

// Config configures a Pipeline.
type Config struct {
	Extractor *extract.Extractor
	// Provider names the model provider in run metadata.
	Provider string
	Logger   *slog.Logger
}

// Pipeline runs extractions. It holds no per-run state and may be reused.
type Pipeline struct {
	extractor *extract.Extractor
	provider  string
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Extractor == nil {
		return nil, errors.New("pipeline: extractor is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor: cfg.Extractor,
		provider:  cfg.Provider,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Result is the complete output of one run.
type Result struct {
	SourcePDF       string          `json:"source_pdf"`
	PageResults     []page.Result   `json:"page_results"`
	AccumulatedData accumulate.Data `json:"accumulated_data"`
	ProcessingStats Stats           `json:"processing_stats"`
	Metadata        Metadata        `json:"metadata"`
}

// Stats summarizes what was processed.
type Stats struct {
	TotalPages            int               `json:"total_pages"`
	PagesProcessed        int               `json:"pages_processed"`
	TotalBatches          int               `json:"total_batches"`
	BatchSize             int               `json:"batch_size"`
	DPIUsed               int               `json:"dpi_used"`
	PagesWithImages       int               `json:"pages_with_images"`
	PagesWithTables       int               `json:"pages_with_tables"`
	DegradedPages         int               `json:"degraded_pages"`
	SchemaViolations      int               `json:"schema_violations"`
	ProcessingTimeSeconds float64           `json:"processing_time_seconds"`
	AutoConfig            autoconfig.Config `json:"auto_config"`
}

// Metadata records how the run went.
type Metadata struct {
	ProcessingTimeSeconds float64               `json:"processing_time_seconds"`
	TokenUsage            providers.Usage       `json:"token_usage"`
	Timestamp             string                `json:"timestamp"`
	PagesProcessed        int                   `json:"pages_processed"`
	BatchesUsed           int                   `json:"batches_used"`
	Model                 string                `json:"model"`
	Provider              string                `json:"provider"`
	Calls                 int                   `json:"calls"`
	FailedCalls           int                   `json:"failed_calls"`
	StartPage             int                   `json:"start_page"`
	EndPage               int                   `json:"end_page"`
	PromptHash            string                `json:"prompt_hash,omitempty"`
	Batches               []extract.BatchReport `json:"batches,omitempty"`
}

// Run extracts the requested pages of one PDF. The processing configuration
// is derived from the document's full page count before any range is applied.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	start := p.now()

	info, err := pdfinfo.ProbeWithLogger(opts.Path, p.logger)
	if err != nil {
		return nil, err
	}

	cfg, err := autoconfig.Configure(info.TotalPages)
	if err != nil {
		return nil, err
	}
	cfg, err = opts.Override.Apply(cfg)
	if err != nil {
		return nil, err
	}

	s := opts.Schema
	if s == nil {
		s = schema.Default()
	}
	if err := schema.Validate(s); err != nil {
		return nil, err
	}

	p.logger.Info("processing document",
		"path", info.Path,
		"total_pages", info.TotalPages,
		"size_mb", fmt.Sprintf("%.2f", info.SizeMB()),
		"config", cfg.Description)

	out, err := p.extractor.Extract(ctx, extract.Request{
		Path:      info.Path,
		Info:      info,
		StartPage: opts.StartPage,
		EndPage:   opts.EndPage,
		Config:    cfg,
		Schema:    s,
		Progress:  opts.Progress,
	})
	if err != nil {
		return nil, err
	}

	data := accumulate.Accumulate(out.Pages)
	elapsed := roundSeconds(p.now().Sub(start))

	result := &Result{
		SourcePDF:       info.Path,
		PageResults:     out.Pages,
		AccumulatedData: data,
		ProcessingStats: Stats{
			TotalPages:            info.TotalPages,
			PagesProcessed:        len(out.Pages),
			TotalBatches:          len(out.Batches),
			BatchSize:             cfg.BatchSize,
			DPIUsed:               cfg.DPI,
			DegradedPages:         out.DegradedPages(),
			SchemaViolations:      out.SchemaViolations,
			ProcessingTimeSeconds: elapsed,
			AutoConfig:            cfg,
		},
		Metadata: Metadata{
			ProcessingTimeSeconds: elapsed,
			TokenUsage:            out.Usage,
			Timestamp:             start.Format(TimestampLayout),
			PagesProcessed:        len(out.Pages),
			BatchesUsed:           len(out.Batches),
			Model:                 p.extractor.Model(),
			Provider:              p.provider,
			Calls:                 out.Calls,
			FailedCalls:           out.FailedCalls,
			StartPage:             out.StartPage,
			EndPage:               out.EndPage,
			PromptHash:            out.PromptHash,
			Batches:               out.Batches,
		},
	}
	for _, pr := range out.Pages {
		if pr.ContainsImages {
			result.ProcessingStats.PagesWithImages++
		}
		if pr.ContainsTables {
			result.ProcessingStats.PagesWithTables++
		}
	}

	p.logger.Info("document processed",
		"pages", len(out.Pages),
		"degraded", result.ProcessingStats.DegradedPages,
		"seconds", elapsed,
		"total_tokens", out.Usage.TotalTokens)
	return result, nil
}

func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
