package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/vellum/internal/autoconfig"
	"github.com/jackzampolin/vellum/internal/extract"
	"github.com/jackzampolin/vellum/internal/pdfinfo"
	"github.com/jackzampolin/vellum/internal/providers"
	"github.com/jackzampolin/vellum/internal/schema"
	"github.com/jackzampolin/vellum/internal/testutil"
)

func newTestPipeline(t *testing.T, client *providers.MockClient) *Pipeline {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e, err := extract.New(extract.Config{
		Client:     client,
		Renderer:   &testutil.Renderer{},
		Logger:     logger,
		RetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("extract.New() error = %v", err)
	}
	p, err := New(Config{Extractor: e, Provider: "mock", Logger: logger})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func echoClient() *providers.MockClient {
	c := providers.NewMockClient()
	c.Respond = func(req *providers.ChatRequest, n int) (string, error) {
		return testutil.PageResponse(testutil.PagesFromPrompt(req.Messages[0].Content)), nil
	}
	return c
}

func TestNew(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error without an extractor")
	}
}

func TestRun(t *testing.T) {
	path := testutil.WritePDF(t, testutil.PDFOptions{Pages: 5})
	client := echoClient()
	p := newTestPipeline(t, client)
	fixed := time.Date(2024, 3, 9, 14, 5, 6, 0, time.Local)
	p.now = func() time.Time { return fixed }

	res, err := p.Run(context.Background(), Options{Path: path})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.SourcePDF != path {
		t.Errorf("SourcePDF = %q", res.SourcePDF)
	}
	if len(res.PageResults) != 5 {
		t.Fatalf("got %d page results, want 5", len(res.PageResults))
	}
	stats := res.ProcessingStats
	if stats.TotalPages != 5 || stats.PagesProcessed != 5 || stats.BatchSize != 2 || stats.DPIUsed != 200 || stats.TotalBatches != 3 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.DegradedPages != 0 {
		t.Errorf("degraded = %d", stats.DegradedPages)
	}

	md := res.Metadata
	if md.Timestamp != "2024-03-09 14:05:06" {
		t.Errorf("timestamp = %q", md.Timestamp)
	}
	if md.BatchesUsed != 3 || md.Calls != 3 || md.Provider != "mock" || md.StartPage != 1 || md.EndPage != 5 {
		t.Errorf("metadata = %+v", md)
	}
	if md.TokenUsage.TotalTokens != 450 {
		t.Errorf("total tokens = %d, want 450", md.TokenUsage.TotalTokens)
	}

	if !strings.HasPrefix(res.AccumulatedData.TotalContent, "--- Page 1 ---\n\nText of page 1") {
		t.Errorf("TotalContent = %q", res.AccumulatedData.TotalContent)
	}
}

func TestRun_ConfigFromFullDocument(t *testing.T) {
	path := testutil.WritePDF(t, testutil.PDFOptions{Pages: 12})
	p := newTestPipeline(t, echoClient())

	res, err := p.Run(context.Background(), Options{Path: path, StartPage: 3, EndPage: 4})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// 12 pages is the medium tier even though only two are processed.
	if res.ProcessingStats.BatchSize != 3 || res.ProcessingStats.DPIUsed != 150 {
		t.Errorf("auto config = %+v", res.ProcessingStats.AutoConfig)
	}
	if res.ProcessingStats.PagesProcessed != 2 || res.PageResults[0].PageNumber != 3 {
		t.Errorf("page results = %+v", res.PageResults)
	}
}

func TestRun_Overrides(t *testing.T) {
	path := testutil.WritePDF(t, testutil.PDFOptions{Pages: 4})
	client := echoClient()
	p := newTestPipeline(t, client)
	temp := 0.3

	res, err := p.Run(context.Background(), Options{
		Path:     path,
		Override: autoconfig.Override{BatchSize: 4, DPI: 90, Temperature: &temp},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.ProcessingStats.TotalBatches != 1 || res.ProcessingStats.DPIUsed != 90 {
		t.Errorf("stats = %+v", res.ProcessingStats)
	}
	if got := client.Requests()[0].Temperature; got != 0.3 {
		t.Errorf("temperature = %v, want 0.3", got)
	}
	if !strings.HasSuffix(res.ProcessingStats.AutoConfig.Description, "(with overrides)") {
		t.Errorf("description = %q", res.ProcessingStats.AutoConfig.Description)
	}
}

func TestRun_Errors(t *testing.T) {
	p := newTestPipeline(t, echoClient())

	t.Run("missing file", func(t *testing.T) {
		_, err := p.Run(context.Background(), Options{Path: filepath.Join(t.TempDir(), "nope.pdf")})
		if !errors.Is(err, pdfinfo.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("invalid schema", func(t *testing.T) {
		path := testutil.WritePDF(t, testutil.PDFOptions{Pages: 1})
		_, err := p.Run(context.Background(), Options{Path: path, Schema: schema.Schema{"type": "array"}})
		var verr *schema.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("error = %v, want *schema.ValidationError", err)
		}
	})

	t.Run("bad range", func(t *testing.T) {
		path := testutil.WritePDF(t, testutil.PDFOptions{Pages: 3})
		_, err := p.Run(context.Background(), Options{Path: path, StartPage: 2, EndPage: 9})
		if !errors.Is(err, extract.ErrInvalidArgument) {
			t.Errorf("error = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("auth failure", func(t *testing.T) {
		client := providers.NewMockClient()
		client.Err = &providers.APIError{Provider: "mock", StatusCode: 401, Message: "no", Kind: providers.ErrAuth}
		path := testutil.WritePDF(t, testutil.PDFOptions{Pages: 2})
		_, err := newTestPipeline(t, client).Run(context.Background(), Options{Path: path})
		if !errors.Is(err, providers.ErrAuth) {
			t.Errorf("error = %v, want ErrAuth", err)
		}
	})
}

func TestInspect(t *testing.T) {
	path := testutil.WritePDF(t, testutil.PDFOptions{Pages: 3, Title: "Field Guide"})

	in, err := Inspect(path, 0, 0, autoconfig.Override{})
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if in.PDFInfo.TotalPages != 3 || !in.PDFInfo.CanProcess || in.PDFInfo.SizeBytes <= 0 {
		t.Errorf("pdf info = %+v", in.PDFInfo)
	}
	if in.Estimates.PagesToProcess != 3 || in.Estimates.TimeSeconds != 9 {
		t.Errorf("estimates = %+v", in.Estimates)
	}
	if in.AutoConfig.BatchSize != 2 {
		t.Errorf("auto config = %+v", in.AutoConfig)
	}

	if _, err := Inspect(path, 3, 1, autoconfig.Override{}); !errors.Is(err, extract.ErrInvalidArgument) {
		t.Errorf("inverted range: error = %v", err)
	}
}
