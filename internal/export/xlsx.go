package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/jackzampolin/vellum/internal/pipeline"
)

const (
	pagesSheet    = "Pages"
	maxSheetName  = 31
	maxCellLength = 32767
)

var pagesHeaders = []string{"Page", "Summary", "Content", "Tables", "Images", "Entities", "Degraded", "Error"}

// Workbook builds a spreadsheet with a page overview sheet followed by one
// sheet per accumulated table. The caller must Close the returned file.
func Workbook(res *pipeline.Result) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", pagesSheet); err != nil {
		f.Close()
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := writeRow(f, pagesSheet, 1, toAny(pagesHeaders)); err != nil {
		f.Close()
		return nil, err
	}
	_ = f.SetRowStyle(pagesSheet, 1, 1, bold)
	for i, p := range res.PageResults {
		row := []any{
			p.PageNumber,
			p.Summary,
			clip(p.Content),
			len(p.Tables),
			len(p.Images),
			strings.Join(p.Entities, ", "),
			p.Degraded,
			p.Error,
		}
		if err := writeRow(f, pagesSheet, i+2, row); err != nil {
			f.Close()
			return nil, err
		}
	}
	_ = f.SetColWidth(pagesSheet, "A", "A", 8)
	_ = f.SetColWidth(pagesSheet, "B", "B", 40)
	_ = f.SetColWidth(pagesSheet, "C", "C", 80)
	_ = f.SetColWidth(pagesSheet, "F", "F", 40)

	used := map[string]bool{strings.ToLower(pagesSheet): true}
	for i, t := range res.AccumulatedData.Tables {
		name := uniqueSheetName(fmt.Sprintf("T%d p%d %s", i+1, t.Page, t.Title), used)
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
		row := 1
		if t.Title != "" {
			if err := writeRow(f, name, row, []any{t.Title}); err != nil {
				f.Close()
				return nil, err
			}
			row += 2
		}
		if len(t.Headers) > 0 {
			if err := writeRow(f, name, row, toAny(t.Headers)); err != nil {
				f.Close()
				return nil, err
			}
			_ = f.SetRowStyle(name, row, row, bold)
			row++
		}
		for _, cells := range t.Rows {
			if err := writeRow(f, name, row, toAny(cells)); err != nil {
				f.Close()
				return nil, err
			}
			row++
		}
	}

	idx, _ := f.GetSheetIndex(pagesSheet)
	f.SetActiveSheet(idx)
	return f, nil
}

// WriteXLSX saves the workbook for res to path.
func WriteXLSX(path string, res *pipeline.Result) error {
	f, err := Workbook(res)
	if err != nil {
		return fmt.Errorf("xlsx build: %w", err)
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

// EncodeXLSX writes the workbook for res to w.
func EncodeXLSX(w io.Writer, res *pipeline.Result) error {
	f, err := Workbook(res)
	if err != nil {
		return fmt.Errorf("xlsx build: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = clip(s)
	}
	return out
}

func clip(s string) string {
	if len(s) <= maxCellLength {
		return s
	}
	cut := maxCellLength
	for cut > 0 && !utf8Start(s[cut]) {
		cut--
	}
	return s[:cut]
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}

var sheetNameReplacer = strings.NewReplacer(
	"[", "(", "]", ")", ":", "-", "*", "-", "?", "", "/", "-", "\\", "-", "'", "",
)

func uniqueSheetName(name string, used map[string]bool) string {
	name = strings.TrimSpace(sheetNameReplacer.Replace(name))
	base := truncateRunes(name, maxSheetName)
	candidate := base
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = truncateRunes(base, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
