package home

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultDirName is the default name for the vellum home directory.
	DefaultDirName = ".vellum"

	// SchemasDirName is the subdirectory for saved extraction schemas.
	SchemasDirName = "schemas"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the vellum home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.vellum).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// SchemasPath returns the directory holding saved schemas.
func (d *Dir) SchemasPath() string {
	return filepath.Join(d.path, SchemasDirName)
}

// SchemaPath returns the file a named schema is saved under.
func (d *Dir) SchemaPath(name string) string {
	if !strings.HasSuffix(name, ".json") {
		name += ".json"
	}
	return filepath.Join(d.SchemasPath(), name)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.SchemasPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create schemas directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// FindSchema returns the saved schema file for name, if one exists.
func (d *Dir) FindSchema(name string) (string, bool) {
	if name == "" || strings.ContainsRune(name, filepath.Separator) {
		return "", false
	}
	p := d.SchemaPath(name)
	if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
		return p, true
	}
	return "", false
}
