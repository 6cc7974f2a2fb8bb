// Package extract sends rendered PDF pages to a vision model in batches and
// collects one result per page.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/vellum/internal/autoconfig"
	"github.com/jackzampolin/vellum/internal/llmcall"
	"github.com/jackzampolin/vellum/internal/page"
	"github.com/jackzampolin/vellum/internal/pdfinfo"
	"github.com/jackzampolin/vellum/internal/progress"
	"github.com/jackzampolin/vellum/internal/prompts"
	"github.com/jackzampolin/vellum/internal/providers"
	"github.com/jackzampolin/vellum/internal/render"
	"github.com/jackzampolin/vellum/internal/schema"
)

var (
	// ErrInvalidArgument is returned for a bad page range or request.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConsistency is returned when results do not cover the requested range.
	ErrConsistency = errors.New("inconsistent extraction results")
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 2 * time.Second
	DefaultMaxDelay    = 30 * time.Second
	DefaultMaxTokens   = 8000
)

// Config configures an Extractor.
type Config struct {
	Client   providers.LLMClient
	Renderer render.Renderer
	// Model overrides the client's default model when set.
	Model string
	// Recorder receives one record per model attempt. Optional.
	Recorder *llmcall.Recorder
	// Limiter paces model requests. Nil disables pacing.
	Limiter *providers.RateLimiter
	Logger  *slog.Logger

	MaxAttempts int
	RetryDelay  time.Duration
	MaxDelay    time.Duration
	MaxTokens   int
	// Concurrency above 1 runs that many batches at once.
	Concurrency int
	Encode      render.EncodeOptions
}

// Extractor runs batched page extraction.
type Extractor struct {
	client      providers.LLMClient
	renderer    render.Renderer
	model       string
	recorder    *llmcall.Recorder
	limiter     *providers.RateLimiter
	logger      *slog.Logger
	maxAttempts int
	retryDelay  time.Duration
	maxDelay    time.Duration
	maxTokens   int
	concurrency int
	encode      render.EncodeOptions
}

// New creates an Extractor, filling defaults for unset fields.
func New(cfg Config) (*Extractor, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("%w: client is required", ErrInvalidArgument)
	}
	if cfg.Renderer == nil {
		return nil, fmt.Errorf("%w: renderer is required", ErrInvalidArgument)
	}
	e := &Extractor{
		client:      cfg.Client,
		renderer:    cfg.Renderer,
		model:       cfg.Model,
		recorder:    cfg.Recorder,
		limiter:     cfg.Limiter,
		logger:      cfg.Logger,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		maxDelay:    cfg.MaxDelay,
		maxTokens:   cfg.MaxTokens,
		concurrency: cfg.Concurrency,
		encode:      cfg.Encode,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.recorder == nil {
		e.recorder = llmcall.NewRecorder()
	}
	if e.maxAttempts < 1 {
		e.maxAttempts = DefaultMaxAttempts
	}
	if e.retryDelay <= 0 {
		e.retryDelay = DefaultRetryDelay
	}
	if e.maxDelay <= 0 {
		e.maxDelay = DefaultMaxDelay
	}
	if e.maxTokens <= 0 {
		e.maxTokens = DefaultMaxTokens
	}
	if e.concurrency < 1 {
		e.concurrency = 1
	}
	if e.model == "" {
		e.model = providers.ModelName(cfg.Client)
	}
	return e, nil
}

// Recorder returns the call ledger the extractor writes to.
func (e *Extractor) Recorder() *llmcall.Recorder {
	return e.recorder
}

// Model returns the model requested from the provider.
func (e *Extractor) Model() string {
	return e.model
}

// Request describes one extraction run.
type Request struct {
	Path string
	Info *pdfinfo.Info
	// StartPage and EndPage bound the range; zero means the document edge.
	StartPage int
	EndPage   int
	Config    autoconfig.Config
	// Schema defaults to schema.Default when nil.
	Schema   schema.Schema
	Progress progress.Callback
}

// Output is the result of a run: one page result per page in range, sorted.
type Output struct {
	Pages            []page.Result   `json:"page_results"`
	Batches          []BatchReport   `json:"batches"`
	Usage            providers.Usage `json:"token_usage"`
	SchemaViolations int             `json:"schema_violations"`
	Calls            int             `json:"calls"`
	FailedCalls      int             `json:"failed_calls"`
	StartPage        int             `json:"start_page"`
	EndPage          int             `json:"end_page"`
	PromptHash       string          `json:"prompt_hash"`
}

// DegradedPages counts pages that could not be extracted.
func (o *Output) DegradedPages() int {
	n := 0
	for _, p := range o.Pages {
		if p.Degraded {
			n++
		}
	}
	return n
}

// run is the shared state of one Extract call.
type run struct {
	req       Request
	prompt    *prompts.Extraction
	validator *schema.Validator
	reporter  *progress.Reporter
	total     int

	mu  sync.Mutex
	out *Output
}

// Extract renders and extracts every page in the requested range. Pages that
// fail irrecoverably come back degraded rather than failing the run; only
// authentication failures, cancellation and invalid input return an error,
// in which case no partial output is returned.
func (e *Extractor) Extract(ctx context.Context, req Request) (*Output, error) {
	if req.Info == nil {
		return nil, fmt.Errorf("%w: document info is required", ErrInvalidArgument)
	}
	start, end, err := ResolveRange(req.StartPage, req.EndPage, req.Info.TotalPages)
	if err != nil {
		return nil, err
	}
	if err := req.Config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if req.Path == "" {
		req.Path = req.Info.Path
	}
	if req.Schema == nil {
		req.Schema = schema.Default()
	}

	prompt, err := prompts.NewExtraction(req.Schema)
	if err != nil {
		return nil, err
	}
	validator, err := schema.NewValidator(req.Schema)
	if err != nil {
		e.logger.Warn("schema cannot be compiled, skipping response validation", "error", err)
		validator = nil
	}

	batches := Partition(start, end, req.Config.BatchSize)
	r := &run{
		req:       req,
		prompt:    prompt,
		validator: validator,
		reporter:  progress.NewReporter(end-start+1, req.Progress),
		total:     len(batches),
		out: &Output{
			Pages:      make([]page.Result, 0, end-start+1),
			Batches:    make([]BatchReport, 0, len(batches)),
			StartPage:  start,
			EndPage:    end,
			PromptHash: prompt.Hash(),
		},
	}

	e.logger.Info("starting extraction",
		"path", req.Path,
		"pages", fmt.Sprintf("%d-%d", start, end),
		"batches", len(batches),
		"batch_size", req.Config.BatchSize,
		"dpi", req.Config.DPI,
		"concurrency", e.concurrency)

	if e.concurrency <= 1 {
		for _, b := range batches {
			if err := e.processBatch(ctx, r, b); err != nil {
				return nil, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.concurrency)
		for _, b := range batches {
			g.Go(func() error {
				return e.processBatch(gctx, r, b)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extraction cancelled: %w", err)
	}

	out := r.out
	page.SortByPage(out.Pages)
	sort.Slice(out.Batches, func(i, j int) bool { return out.Batches[i].Index < out.Batches[j].Index })
	if err := checkCoverage(out.Pages, start, end); err != nil {
		return nil, err
	}

	e.logger.Info("extraction complete",
		"pages", len(out.Pages),
		"degraded", out.DegradedPages(),
		"total_tokens", out.Usage.TotalTokens)
	return out, nil
}

func checkCoverage(pages []page.Result, start, end int) error {
	if len(pages) != end-start+1 {
		return fmt.Errorf("%w: got %d results for pages %d-%d", ErrConsistency, len(pages), start, end)
	}
	for i, p := range pages {
		if p.PageNumber != start+i {
			return fmt.Errorf("%w: expected page %d at position %d, got %d", ErrConsistency, start+i, i, p.PageNumber)
		}
	}
	return nil
}

// batchResult is what one batch contributes to the run.
type batchResult struct {
	pages      []page.Result
	report     BatchReport
	usage      providers.Usage
	violations int
	calls      int
	failed     int
}

// processBatch runs one batch to a terminal state and merges its results.
// It returns an error only when the whole run must stop.
func (e *Extractor) processBatch(ctx context.Context, r *run, b Batch) error {
	res, err := e.runBatch(ctx, r, b)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.out.Pages = append(r.out.Pages, res.pages...)
	r.out.Batches = append(r.out.Batches, res.report)
	r.out.Usage.Add(res.usage)
	r.out.SchemaViolations += res.violations
	r.out.Calls += res.calls
	r.out.FailedCalls += res.failed
	r.mu.Unlock()

	r.reporter.Advance(fmt.Sprintf("Processed batch %d/%d (pages %d-%d)", b.Index+1, r.total, b.First(), b.Last()), len(b.Pages))
	return nil
}

func (e *Extractor) runBatch(ctx context.Context, r *run, b Batch) (*batchResult, error) {
	br := newBatchRun(b)
	logger := e.logger.With("batch", b.Index, "pages", fmt.Sprintf("%d-%d", b.First(), b.Last()))
	res := &batchResult{}

	abort := func(err error) (*batchResult, error) {
		br.to(Aborted)
		if ctxErr := ctx.Err(); ctxErr != nil && !providers.IsFatal(err) {
			return nil, fmt.Errorf("extraction cancelled: %w", ctxErr)
		}
		return nil, fmt.Errorf("batch %d (pages %d-%d): %w", b.Index, b.First(), b.Last(), err)
	}
	degrade := func(err error) (*batchResult, error) {
		br.to(Degraded)
		logger.Warn("batch degraded", "attempts", br.attempts, "error", err)
		for _, p := range b.Pages {
			res.pages = append(res.pages, page.Degraded(p, err.Error()))
		}
		res.report = br.report(err)
		return res, nil
	}

	images, err := render.Pages(ctx, e.renderer, r.req.Path, b.Pages, r.req.Config.DPI, e.encode)
	if err != nil {
		if ctx.Err() != nil {
			return abort(ctx.Err())
		}
		return degrade(err)
	}

	messages := []providers.Message{{
		Role:    "user",
		Content: r.prompt.Render(b.Pages),
		Images:  images,
	}}

	var objects []map[string]any
	var shape ResponseShape
	err = retry.Do(
		func() error {
			br.to(Attempting)
			if e.limiter != nil {
				if err := e.limiter.Wait(ctx); err != nil {
					return retry.Unrecoverable(err)
				}
			}

			result, err := e.client.Chat(ctx, &providers.ChatRequest{
				Messages:       messages,
				Model:          e.model,
				Temperature:    r.req.Config.Temperature,
				MaxTokens:      e.maxTokens,
				ResponseFormat: providers.JSONObject,
				RequestID:      uuid.New().String(),
			})
			e.recorder.Record(result, err, llmcall.RecordOptions{
				Batch:       b.Index,
				Attempt:     br.attempts,
				Pages:       b.Pages,
				Temperature: r.req.Config.Temperature,
			})
			res.calls++
			if result != nil {
				res.usage.Add(result.Usage())
			}
			if err != nil {
				res.failed++
				if providers.IsFatal(err) || ctx.Err() != nil {
					return retry.Unrecoverable(err)
				}
				return err
			}

			objects, shape, err = ParseResponse(result.Content)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(e.maxAttempts)),
		retry.Delay(e.retryDelay),
		retry.MaxDelay(e.maxDelay),
		retry.DelayType(retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return providers.IsRetryable(err) || errors.Is(err, ErrParse)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("batch attempt failed, retrying",
				"attempt", n+1, "max_attempts", e.maxAttempts, "error", err)
		}),
	)

	switch {
	case ctx.Err() != nil:
		return abort(ctx.Err())
	case err != nil && providers.IsFatal(err):
		return abort(err)
	case err != nil:
		return degrade(fmt.Errorf("after %d attempts: %w", br.attempts, err))
	}

	a := assignPages(b.Pages, objects)
	logAssignment(logger, b, a)
	for _, p := range a.results {
		if r.validator != nil {
			if verr := r.validator.Check(a.objects[p.PageNumber]); verr != nil {
				res.violations++
				logger.Warn("page does not match schema", "page", p.PageNumber, "error", verr)
			}
		}
		res.pages = append(res.pages, p)
	}
	for _, p := range a.missing {
		res.pages = append(res.pages, page.Degraded(p, "page missing from model response"))
	}

	br.to(Succeeded)
	res.report = br.report(nil)
	logger.Debug("batch succeeded", "attempts", br.attempts, "shape", shape.String(), "objects", len(objects))
	return res, nil
}

// retryDelay backs off exponentially, deferring to a provider's Retry-After.
func retryDelay(n uint, err error, config *retry.Config) time.Duration {
	if wait := providers.RetryAfter(err); wait > 0 {
		return wait
	}
	return retry.BackOffDelay(n, err, config)
}
