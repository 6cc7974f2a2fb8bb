// Package estimate predicts run time and cost before any pages are sent.
package estimate

import (
	"fmt"
	"time"

	"github.com/jackzampolin/vellum/internal/extract"
)

const (
	// TokensPerPage is the average prompt plus completion tokens per page.
	TokensPerPage = 3200
	// CostPerToken is the blended USD price per token.
	CostPerToken = 0.00002
)

type tier struct {
	maxPages    int
	perPage     time.Duration
	description string
}

var tiers = []tier{
	{10, 3 * time.Second, "Small PDF - High quality processing"},
	{50, 2500 * time.Millisecond, "Medium PDF - Balanced processing"},
	{200, 2 * time.Second, "Large PDF - Efficient processing"},
	{0, 1500 * time.Millisecond, "Enterprise PDF - Memory optimized processing"},
}

// Estimate is a time and cost forecast for a page range.
type Estimate struct {
	TotalPages     int     `json:"total_pages_in_pdf" yaml:"total_pages_in_pdf"`
	PagesToProcess int     `json:"pages_to_process" yaml:"pages_to_process"`
	TimeSeconds    float64 `json:"estimated_time_seconds" yaml:"estimated_time_seconds"`
	TimeFormatted  string  `json:"estimated_time_formatted" yaml:"estimated_time_formatted"`
	Tokens         int     `json:"estimated_tokens" yaml:"estimated_tokens"`
	CostUSD        float64 `json:"estimated_cost_usd" yaml:"estimated_cost_usd"`
	CostPerPage    float64 `json:"cost_per_page" yaml:"cost_per_page"`
	Description    string  `json:"processing_description" yaml:"processing_description"`
}

// For forecasts processing pages start..end of a totalPages document. Zero
// bounds default to the document edges.
func For(totalPages, start, end int) (Estimate, error) {
	start, end, err := extract.ResolveRange(start, end, totalPages)
	if err != nil {
		return Estimate{}, err
	}
	pages := end - start + 1

	t := tiers[len(tiers)-1]
	for _, candidate := range tiers[:len(tiers)-1] {
		if pages <= candidate.maxPages {
			t = candidate
			break
		}
	}

	seconds := float64(pages) * t.perPage.Seconds()
	tokens := pages * TokensPerPage
	cost := float64(tokens) * CostPerToken
	return Estimate{
		TotalPages:     totalPages,
		PagesToProcess: pages,
		TimeSeconds:    seconds,
		TimeFormatted:  FormatDuration(seconds),
		Tokens:         tokens,
		CostUSD:        cost,
		CostPerPage:    cost / float64(pages),
		Description:    t.description,
	}, nil
}

// FormatDuration renders seconds as seconds, minutes or hours with one decimal.
func FormatDuration(seconds float64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%.1f seconds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%.1f minutes", seconds/60)
	default:
		return fmt.Sprintf("%.1f hours", seconds/3600)
	}
}
