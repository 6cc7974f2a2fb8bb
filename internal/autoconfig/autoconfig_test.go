package autoconfig

import (
	"errors"
	"strings"
	"testing"
)

func TestConfigure(t *testing.T) {
	tests := []struct {
		pages     int
		batchSize int
		dpi       int
		desc      string
	}{
		{1, 2, 200, "Small PDF"},
		{10, 2, 200, "Small PDF"},
		{11, 3, 150, "Medium PDF"},
		{50, 3, 150, "Medium PDF"},
		{51, 4, 150, "Large PDF"},
		{118, 4, 150, "Large PDF"},
		{200, 4, 150, "Large PDF"},
		{201, 5, 120, "Enterprise PDF"},
		{5000, 5, 120, "Enterprise PDF"},
	}

	for _, tt := range tests {
		cfg, err := Configure(tt.pages)
		if err != nil {
			t.Fatalf("Configure(%d) error = %v", tt.pages, err)
		}
		if cfg.BatchSize != tt.batchSize {
			t.Errorf("Configure(%d).BatchSize = %d, want %d", tt.pages, cfg.BatchSize, tt.batchSize)
		}
		if cfg.DPI != tt.dpi {
			t.Errorf("Configure(%d).DPI = %d, want %d", tt.pages, cfg.DPI, tt.dpi)
		}
		if !strings.HasPrefix(cfg.Description, tt.desc) {
			t.Errorf("Configure(%d).Description = %q, want prefix %q", tt.pages, cfg.Description, tt.desc)
		}
		if cfg.Temperature != DefaultTemperature {
			t.Errorf("Configure(%d).Temperature = %v, want %v", tt.pages, cfg.Temperature, DefaultTemperature)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Configure(%d) produced invalid config: %v", tt.pages, err)
		}
	}
}

func TestConfigure_Invalid(t *testing.T) {
	for _, pages := range []int{0, -1} {
		if _, err := Configure(pages); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Configure(%d) error = %v, want ErrInvalidArgument", pages, err)
		}
	}
}

func TestConfigure_Deterministic(t *testing.T) {
	a, _ := Configure(118)
	b, _ := Configure(118)
	if a != b {
		t.Errorf("Configure(118) not deterministic: %+v vs %+v", a, b)
	}
}

func TestOverride_Apply(t *testing.T) {
	base, _ := Configure(30)

	t.Run("zero override keeps config", func(t *testing.T) {
		got, err := Override{}.Apply(base)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if got != base {
			t.Errorf("Apply() = %+v, want %+v", got, base)
		}
	})

	t.Run("overrides fields", func(t *testing.T) {
		temp := 0.3
		got, err := Override{BatchSize: 7, DPI: 300, Temperature: &temp}.Apply(base)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if got.BatchSize != 7 || got.DPI != 300 || got.Temperature != 0.3 {
			t.Errorf("Apply() = %+v", got)
		}
		if !strings.Contains(got.Description, "overrides") {
			t.Errorf("Description = %q, want override marker", got.Description)
		}
	})

	t.Run("rejects bad values", func(t *testing.T) {
		bad := 1.5
		cases := []Override{{BatchSize: -1}, {DPI: -10}, {Temperature: &bad}}
		for _, o := range cases {
			if _, err := o.Apply(base); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("Apply(%+v) error = %v, want ErrInvalidArgument", o, err)
			}
		}
	})
}
