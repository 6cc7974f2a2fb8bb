package main

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackzampolin/vellum/internal/config"
	"github.com/jackzampolin/vellum/internal/home"
	"github.com/jackzampolin/vellum/internal/progress"
	"github.com/jackzampolin/vellum/internal/schema"
)

func resetSchemaFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		schemaArg, schemaJSON, schemaPreset, extendDefault = "", "", "", false
		outputFile = ""
	})
}

func TestResolveSchema(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir, err := home.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := dir.EnsureExists(); err != nil {
		t.Fatal(err)
	}
	custom := schema.Schema{
		"type": "object",
		"properties": map[string]any{
			"page_number":   map[string]any{"type": "integer"},
			"invoice_total": map[string]any{"type": "number"},
		},
	}
	if err := schema.Save(custom, dir.SchemaPath("invoice")); err != nil {
		t.Fatal(err)
	}

	t.Run("default is nil", func(t *testing.T) {
		resetSchemaFlags(t)
		s, err := resolveSchema(dir, logger)
		if err != nil || s != nil {
			t.Fatalf("got %v, %v; want nil schema", s, err)
		}
	})

	t.Run("saved name", func(t *testing.T) {
		resetSchemaFlags(t)
		schemaArg = "invoice"
		s, err := resolveSchema(dir, logger)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := s.Properties()["invoice_total"]; !ok {
			t.Errorf("saved schema not loaded: %v", s.FieldNames())
		}
	})

	t.Run("preset", func(t *testing.T) {
		resetSchemaFlags(t)
		schemaPreset = "simple"
		if _, err := resolveSchema(dir, logger); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("extend default", func(t *testing.T) {
		resetSchemaFlags(t)
		schemaJSON = `{"type":"object","properties":{"page_number":{"type":"integer"},"invoice_total":{"type":"number"}}}`
		extendDefault = true
		s, err := resolveSchema(dir, logger)
		if err != nil {
			t.Fatal(err)
		}
		props := s.Properties()
		for _, name := range []string{"content", "summary", "invoice_total"} {
			if _, ok := props[name]; !ok {
				t.Errorf("merged schema missing %q", name)
			}
		}
	})

	t.Run("extend default with a fragment", func(t *testing.T) {
		resetSchemaFlags(t)
		schemaJSON = `{"type":"object","properties":{"total":{"type":"number"}}}`
		extendDefault = true
		s, err := resolveSchema(dir, logger)
		if err != nil {
			t.Fatal(err)
		}
		props := s.Properties()
		for _, name := range []string{"page_number", "content", "total"} {
			if _, ok := props[name]; !ok {
				t.Errorf("merged schema missing %q", name)
			}
		}
	})

	t.Run("fragment without extend is rejected", func(t *testing.T) {
		resetSchemaFlags(t)
		schemaJSON = `{"type":"object","properties":{"total":{"type":"number"}}}`
		if _, err := resolveSchema(dir, logger); err == nil {
			t.Fatal("expected validation error")
		}
	})

	t.Run("extend without custom schema", func(t *testing.T) {
		resetSchemaFlags(t)
		extendDefault = true
		if _, err := resolveSchema(dir, logger); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestProgressCallbackLogsWhenNotATerminal(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	var out bytes.Buffer

	cb := progressCallback(&out, logger)
	cb(progress.Snapshot{Message: "Processed batch 1/2 (pages 1-5)", Completed: 5, Total: 10, Percent: 50})

	if out.Len() != 0 {
		t.Errorf("unexpected plain output %q", out.String())
	}
	if !strings.Contains(logs.String(), "completed=5") || !strings.Contains(logs.String(), "total=10") {
		t.Errorf("log = %q", logs.String())
	}
}

func TestResultsPath(t *testing.T) {
	resetSchemaFlags(t)
	cfg := config.DefaultConfig()

	if got := resultsPath("docs/report.pdf", cfg); got != "report_extraction_results.json" {
		t.Errorf("default path = %q", got)
	}

	cfg.Output.Dir = "out"
	if got := resultsPath("docs/report.pdf", cfg); got != filepath.Join("out", "report_extraction_results.json") {
		t.Errorf("output dir path = %q", got)
	}

	outputFile = "custom.json"
	if got := resultsPath("docs/report.pdf", cfg); got != "custom.json" {
		t.Errorf("output file path = %q", got)
	}
}
