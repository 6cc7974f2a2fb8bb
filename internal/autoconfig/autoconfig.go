// Package autoconfig derives batch size and render resolution from document size.
package autoconfig

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned for page counts or overrides outside their domain.
var ErrInvalidArgument = errors.New("invalid argument")

// DefaultTemperature is the sampling temperature used for extraction.
const DefaultTemperature = 0.05

// Config is the processing configuration for one document.
type Config struct {
	BatchSize   int     `json:"batch_size" yaml:"batch_size"`
	DPI         int     `json:"dpi" yaml:"dpi"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	Description string  `json:"description" yaml:"description"`
}

// tier maps an inclusive page ceiling to its settings. A zero ceiling is unbounded.
type tier struct {
	maxPages    int
	batchSize   int
	dpi         int
	description string
}

var tiers = []tier{
	{maxPages: 10, batchSize: 2, dpi: 200, description: "Small PDF - High quality processing"},
	{maxPages: 50, batchSize: 3, dpi: 150, description: "Medium PDF - Balanced processing"},
	{maxPages: 200, batchSize: 4, dpi: 150, description: "Large PDF - Efficient batch processing"},
	{maxPages: 0, batchSize: 5, dpi: 120, description: "Enterprise PDF - Maximum batch efficiency"},
}

// Configure picks settings for a document with totalPages pages.
// The result depends only on the document's full page count, never on a
// requested sub-range.
func Configure(totalPages int) (Config, error) {
	if totalPages < 1 {
		return Config{}, fmt.Errorf("%w: total pages must be >= 1, got %d", ErrInvalidArgument, totalPages)
	}
	for _, t := range tiers {
		if t.maxPages == 0 || totalPages <= t.maxPages {
			return Config{
				BatchSize:   t.batchSize,
				DPI:         t.dpi,
				Temperature: DefaultTemperature,
				Description: t.description,
			}, nil
		}
	}
	// Unreachable: the last tier is unbounded.
	return Config{}, fmt.Errorf("%w: no tier for %d pages", ErrInvalidArgument, totalPages)
}

// Override holds caller-supplied values. Zero fields keep the automatic choice.
type Override struct {
	BatchSize   int
	DPI         int
	Temperature *float64
}

// Apply returns cfg with any non-zero override fields substituted.
func (o Override) Apply(cfg Config) (Config, error) {
	if o.BatchSize < 0 {
		return cfg, fmt.Errorf("%w: batch size must be >= 1, got %d", ErrInvalidArgument, o.BatchSize)
	}
	if o.DPI < 0 {
		return cfg, fmt.Errorf("%w: dpi must be > 0, got %d", ErrInvalidArgument, o.DPI)
	}
	changed := false
	if o.BatchSize > 0 {
		cfg.BatchSize = o.BatchSize
		changed = true
	}
	if o.DPI > 0 {
		cfg.DPI = o.DPI
		changed = true
	}
	if o.Temperature != nil {
		if *o.Temperature < 0 || *o.Temperature > 1 {
			return cfg, fmt.Errorf("%w: temperature must be in [0,1], got %v", ErrInvalidArgument, *o.Temperature)
		}
		cfg.Temperature = *o.Temperature
		changed = true
	}
	if changed {
		cfg.Description += " (with overrides)"
	}
	return cfg, nil
}

// Validate checks that cfg is usable for extraction.
func (c Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be >= 1, got %d", ErrInvalidArgument, c.BatchSize)
	}
	if c.DPI <= 0 {
		return fmt.Errorf("%w: dpi must be > 0, got %d", ErrInvalidArgument, c.DPI)
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("%w: temperature must be in [0,1], got %v", ErrInvalidArgument, c.Temperature)
	}
	return nil
}
