package page

import (
	"regexp"
	"strings"
)

// IsPlaceholder reports whether s is template text echoed back from the
// prompt example rather than extracted data.
func IsPlaceholder(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "":
		return false
	case strings.HasPrefix(v, "example"),
		strings.HasPrefix(v, "actual_"),
		strings.Contains(v, "placeholder"),
		v == "actual title from document",
		v == "main text content from page",
		v == "page x":
		return true
	case strings.HasPrefix(v, "actual ") && strings.HasSuffix(v, " data"):
		return true
	}
	return false
}

var templateTokens = map[string]bool{
	"page x":                      true,
	"main text content from page": true,
	"actual title from document":  true,
	"example summary":             true,
	"placeholder":                 true,
}

var (
	identifierToken = regexp.MustCompile(`^(example|actual_)[a-z0-9_]*$`)
	actualDataToken = regexp.MustCompile(`^actual [a-z0-9_]+ data$`)
)

// IsTemplateToken reports whether s is exactly one of the values the prompt
// example uses, such as "main text content from page" or "actual_data_1".
// Prose that merely starts with "Example" is not a token.
func IsTemplateToken(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return false
	}
	return templateTokens[v] || identifierToken.MatchString(v) || actualDataToken.MatchString(v)
}

// FilterPlaceholders drops empty and placeholder strings.
func FilterPlaceholders(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if strings.TrimSpace(s) == "" || IsPlaceholder(s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// IsTemplateRow reports whether every non-empty cell of row is a template
// token. Rows with no content at all count as template rows.
func IsTemplateRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" && !IsTemplateToken(c) {
			return false
		}
	}
	return true
}

// HasData reports whether the table carries any header or cell that is not
// a template token.
func (t Table) HasData() bool {
	if !IsTemplateRow(t.Headers) {
		return true
	}
	for _, row := range t.Rows {
		if !IsTemplateRow(row) {
			return true
		}
	}
	return false
}
