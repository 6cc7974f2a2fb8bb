package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/vellum/internal/autoconfig"
	"github.com/jackzampolin/vellum/internal/config"
	"github.com/jackzampolin/vellum/internal/export"
	"github.com/jackzampolin/vellum/internal/extract"
	"github.com/jackzampolin/vellum/internal/home"
	"github.com/jackzampolin/vellum/internal/llmcall"
	"github.com/jackzampolin/vellum/internal/pipeline"
	"github.com/jackzampolin/vellum/internal/progress"
	"github.com/jackzampolin/vellum/internal/providers"
	"github.com/jackzampolin/vellum/internal/render"
	"github.com/jackzampolin/vellum/internal/schema"
)

var (
	startPage     int
	endPage       int
	schemaArg     string
	schemaJSON    string
	schemaPreset  string
	extendDefault bool
	saveResults   bool
	outputFile    string
	writeXLSX     bool
	infoOnly      bool
	quiet         bool
	batchSize     int
	dpi           int
	temperature   float64
	concurrency   int
	apiKey        string
	providerType  string
	modelName     string
	rendererName  string
)

var extractCmd = &cobra.Command{
	Use:   "extract <pdf>",
	Short: "Extract structured JSON from a PDF",
	Long: `Render the pages of a PDF and extract their content with a vision model.

Without --save the full result document is printed to stdout as JSON.
With --save it is written to <name>_extraction_results.json (or --output-file)
and a summary is printed instead.

Examples:
  vellum extract report.pdf
  vellum extract report.pdf --start-page 5 --end-page 10 --save
  vellum extract paper.pdf --schema-preset academic --save --xlsx
  vellum extract invoice.pdf --schema-json '{"type":"object","properties":{"total":{"type":"number"}}}' --extend-default`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	f := extractCmd.Flags()
	f.IntVar(&startPage, "start-page", 0, "first page to process (default 1)")
	f.IntVar(&endPage, "end-page", 0, "last page to process (default last page)")
	f.StringVar(&schemaArg, "schema", "", "schema file path or name of a saved schema")
	f.StringVar(&schemaJSON, "schema-json", "", "inline schema JSON")
	f.StringVar(&schemaPreset, "schema-preset", "", "built-in schema preset")
	f.BoolVar(&extendDefault, "extend-default", false, "add the custom schema's fields to the default schema")
	f.BoolVar(&saveResults, "save", false, "write results to a file instead of stdout")
	f.StringVar(&outputFile, "output-file", "", "results file (implies --save)")
	f.BoolVar(&writeXLSX, "xlsx", false, "also write an .xlsx workbook next to the results")
	f.BoolVar(&infoOnly, "info-only", false, "print document info and estimates without processing")
	f.BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")
	f.IntVar(&batchSize, "batch-size", 0, "pages per model request (default automatic)")
	f.IntVar(&dpi, "dpi", 0, "render resolution (default automatic)")
	f.Float64Var(&temperature, "temperature", autoconfig.DefaultTemperature, "sampling temperature in [0,1]")
	f.IntVar(&concurrency, "concurrency", 0, "batches in flight at once (default from config)")
	f.StringVar(&apiKey, "api-key", "", "provider API key (default from config)")
	f.StringVar(&providerType, "provider", "", "provider type: groq, openai, openrouter or mock")
	f.StringVar(&modelName, "model", "", "model name (default from config)")
	f.StringVar(&rendererName, "renderer", "", "page renderer: auto, poppler or fitz")

	extractCmd.MarkFlagsMutuallyExclusive("schema", "schema-json", "schema-preset")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	pdfPath := args[0]

	override := autoconfig.Override{BatchSize: batchSize, DPI: dpi}
	if cmd.Flags().Changed("temperature") {
		t := temperature
		override.Temperature = &t
	}

	if infoOnly {
		insp, err := pipeline.Inspect(pdfPath, startPage, endPage, override)
		if err != nil {
			return err
		}
		return output(cmd, insp)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg, quiet)

	dir, err := openHome()
	if err != nil {
		return err
	}
	s, err := resolveSchema(dir, logger)
	if err != nil {
		return err
	}

	p, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		Path:      pdfPath,
		StartPage: startPage,
		EndPage:   endPage,
		Schema:    s,
		Override:  override,
	}
	if !quiet {
		opts.Progress = progressCallback(cmd.ErrOrStderr(), logger)
	}

	res, err := p.Run(cmd.Context(), opts)
	if err != nil {
		return err
	}

	if outputFile == "" && !saveResults {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(export.Document{ProcessingMetadata: res.Metadata, ExtractionResults: res})
	}

	path := resultsPath(pdfPath, cfg)
	if err := export.WriteJSON(path, res); err != nil {
		return err
	}
	logger.Info("results saved", "path", path)

	summary := newSummary(res, path)
	if writeXLSX || cfg.Output.XLSX {
		xlsxPath := trimExt(path) + ".xlsx"
		if err := export.WriteXLSX(xlsxPath, res); err != nil {
			return err
		}
		logger.Info("workbook saved", "path", xlsxPath)
		summary.Workbook = xlsxPath
	}
	return output(cmd, summary)
}

// buildPipeline wires the provider client, renderer and extractor from the
// config and any command-line overrides.
func buildPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, error) {
	settings := cfg.ProviderSettings()
	if providerType != "" {
		settings.Type = providerType
	}
	if apiKey != "" {
		settings.APIKey = apiKey
	}
	if modelName != "" {
		settings.Model = modelName
	}
	client, err := providers.New(settings)
	if err != nil {
		return nil, err
	}

	name := cfg.Processing.Renderer
	if rendererName != "" {
		name = rendererName
	}
	r, err := render.New(name)
	if err != nil {
		return nil, err
	}

	var limiter *providers.RateLimiter
	if cfg.Processing.RateLimitRPM > 0 {
		limiter = providers.NewRateLimiter(cfg.Processing.RateLimitRPM, 1)
	}
	workers := cfg.Processing.Concurrency
	if concurrency > 0 {
		workers = concurrency
	}

	ex, err := extract.New(extract.Config{
		Client:      client,
		Renderer:    r,
		Model:       settings.Model,
		Recorder:    llmcall.NewRecorder(),
		Limiter:     limiter,
		Logger:      logger,
		MaxAttempts: cfg.Processing.MaxAttempts,
		RetryDelay:  cfg.RetryDelay(),
		MaxTokens:   cfg.Processing.MaxTokens,
		Concurrency: workers,
		Encode:      cfg.EncodeOptions(),
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("extractor ready",
		"provider", client.Name(),
		"model", ex.Model(),
		"renderer", r.Name(),
		"concurrency", workers)

	p, err := pipeline.New(pipeline.Config{Extractor: ex, Provider: client.Name(), Logger: logger})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// resolveSchema picks the page schema from the schema flags. Nil means the
// default schema. With --extend-default the custom schema is a fragment and
// only the merged result has to be valid.
func resolveSchema(dir *home.Dir, logger *slog.Logger) (schema.Schema, error) {
	var (
		s   schema.Schema
		err error
	)
	switch {
	case schemaPreset != "":
		s, err = schema.Preset(schemaPreset)
	case schemaJSON != "":
		s, err = decodeSchema(schemaJSON)
	case schemaArg != "":
		path := schemaArg
		if p, ok := dir.FindSchema(schemaArg); ok {
			path = p
		}
		s, err = decodeSchema(path)
	default:
		if extendDefault {
			return nil, errors.New("--extend-default requires --schema, --schema-json or --schema-preset")
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !extendDefault {
		return s, nil
	}

	merged, collisions := schema.Merge(schema.Default(), s.Properties())
	for _, c := range collisions {
		logger.Warn("custom field replaces default field", "field", c.Field)
	}
	if err := schema.Validate(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

func decodeSchema(arg string) (schema.Schema, error) {
	if extendDefault {
		return schema.Decode(arg)
	}
	return schema.Parse(arg)
}

// progressCallback prints plain progress lines to a terminal and structured
// log records anywhere else, so redirected stderr stays machine readable.
func progressCallback(w io.Writer, logger *slog.Logger) progress.Callback {
	if f, ok := w.(*os.File); ok {
		if st, err := f.Stat(); err == nil && st.Mode()&os.ModeCharDevice != 0 {
			return progress.WriterCallback(w)
		}
	}
	return progress.LogCallback(logger)
}

func resultsPath(pdfPath string, cfg *config.Config) string {
	if outputFile != "" {
		return outputFile
	}
	name := export.DefaultOutputName(pdfPath)
	if cfg.Output.Dir != "" {
		return filepath.Join(cfg.Output.Dir, filepath.Base(name))
	}
	return name
}

func trimExt(path string) string {
	return path[:len(path)-len(filepath.Ext(path))]
}

// extractSummary is printed after results are saved.
type extractSummary struct {
	Source           string          `json:"source" yaml:"source"`
	Results          string          `json:"results" yaml:"results"`
	Workbook         string          `json:"workbook,omitempty" yaml:"workbook,omitempty"`
	Provider         string          `json:"provider" yaml:"provider"`
	Model            string          `json:"model" yaml:"model"`
	Pages            string          `json:"pages" yaml:"pages"`
	PagesProcessed   int             `json:"pages_processed" yaml:"pages_processed"`
	DegradedPages    int             `json:"degraded_pages" yaml:"degraded_pages"`
	Batches          int             `json:"batches" yaml:"batches"`
	Tables           int             `json:"tables" yaml:"tables"`
	Images           int             `json:"images" yaml:"images"`
	UniqueEntities   int             `json:"unique_entities" yaml:"unique_entities"`
	SchemaViolations int             `json:"schema_violations" yaml:"schema_violations"`
	TokenUsage       providers.Usage `json:"token_usage" yaml:"token_usage"`
	Seconds          float64         `json:"processing_time_seconds" yaml:"processing_time_seconds"`
}

func newSummary(res *pipeline.Result, path string) extractSummary {
	return extractSummary{
		Source:           res.SourcePDF,
		Results:          path,
		Provider:         res.Metadata.Provider,
		Model:            res.Metadata.Model,
		Pages:            fmt.Sprintf("%d-%d", res.Metadata.StartPage, res.Metadata.EndPage),
		PagesProcessed:   res.ProcessingStats.PagesProcessed,
		DegradedPages:    res.ProcessingStats.DegradedPages,
		Batches:          res.ProcessingStats.TotalBatches,
		Tables:           len(res.AccumulatedData.Tables),
		Images:           len(res.AccumulatedData.Images),
		UniqueEntities:   len(res.AccumulatedData.UniqueEntities),
		SchemaViolations: res.ProcessingStats.SchemaViolations,
		TokenUsage:       res.Metadata.TokenUsage,
		Seconds:          res.ProcessingStats.ProcessingTimeSeconds,
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
