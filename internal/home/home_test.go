package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("with explicit path", func(t *testing.T) {
		dir, err := New("/tmp/test-vellum")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir.Path() != "/tmp/test-vellum" {
			t.Errorf("expected path /tmp/test-vellum, got %s", dir.Path())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		dir, err := New("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, DefaultDirName)
		if dir.Path() != expected {
			t.Errorf("expected path %s, got %s", expected, dir.Path())
		}
	})
}

func TestDir_Paths(t *testing.T) {
	dir, _ := New("/tmp/test-vellum")

	t.Run("ConfigPath", func(t *testing.T) {
		expected := "/tmp/test-vellum/config.yaml"
		if dir.ConfigPath() != expected {
			t.Errorf("expected %s, got %s", expected, dir.ConfigPath())
		}
	})

	t.Run("SchemaPath", func(t *testing.T) {
		for _, name := range []string{"invoice", "invoice.json"} {
			if got := dir.SchemaPath(name); got != "/tmp/test-vellum/schemas/invoice.json" {
				t.Errorf("SchemaPath(%q) = %s", name, got)
			}
		}
	})
}

func TestDir_EnsureExists(t *testing.T) {
	dir, _ := New(filepath.Join(t.TempDir(), "home"))
	if dir.Exists() {
		t.Fatal("home should not exist yet")
	}
	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists() error = %v", err)
	}
	if !dir.Exists() {
		t.Error("home should exist")
	}
	if dir.ConfigExists() {
		t.Error("config should not exist yet")
	}
}

func TestDir_FindSchema(t *testing.T) {
	dir, _ := New(t.TempDir())
	if err := dir.EnsureExists(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dir.SchemaPath("receipts"), []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if p, ok := dir.FindSchema("receipts"); !ok || p != dir.SchemaPath("receipts") {
		t.Errorf("FindSchema(receipts) = %q, %v", p, ok)
	}
	if _, ok := dir.FindSchema("missing"); ok {
		t.Error("FindSchema(missing) should fail")
	}
	if _, ok := dir.FindSchema("../receipts"); ok {
		t.Error("names with separators should not resolve")
	}
}
