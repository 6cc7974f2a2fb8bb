package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/jackzampolin/vellum/internal/accumulate"
	"github.com/jackzampolin/vellum/internal/page"
	"github.com/jackzampolin/vellum/internal/pipeline"
	"github.com/jackzampolin/vellum/internal/providers"
)

func sampleResult() *pipeline.Result {
	pages := []page.Result{
		{PageNumber: 1, Content: "Intro <b>", Summary: "intro", Entities: []string{"Acme"}},
		{
			PageNumber:     2,
			Content:        "Figures",
			ContainsTables: true,
			Tables:         []page.Table{{Title: "Revenue: 2023/2024", Headers: []string{"Year", "Total"}, Rows: [][]string{{"2023", "10"}, {"2024", "12"}}}},
			Extra:          map[string]any{"invoice_total": float64(22)},
		},
		page.Degraded(3, "timeout"),
	}
	return &pipeline.Result{
		SourcePDF:       "report.pdf",
		PageResults:     pages,
		AccumulatedData: accumulate.Accumulate(pages),
		ProcessingStats: pipeline.Stats{TotalPages: 3, PagesProcessed: 3, DegradedPages: 1},
		Metadata: pipeline.Metadata{
			Timestamp:      "2024-01-02 03:04:05",
			PagesProcessed: 3,
			TokenUsage:     providers.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		},
	}
}

func TestDefaultOutputName(t *testing.T) {
	tests := map[string]string{
		"report.pdf":           "report_extraction_results.json",
		"/data/in/Scan 01.PDF": "Scan 01_extraction_results.json",
		"archive.v2.pdf":       "archive.v2_extraction_results.json",
		"noext":                "noext_extraction_results.json",
	}
	for in, want := range tests {
		if got := DefaultOutputName(in); got != want {
			t.Errorf("DefaultOutputName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report_extraction_results.json")
	if err := WriteJSON(path, sampleResult()); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("output is not a JSON object: %v", err)
	}
	if raw["processing_metadata"]["timestamp"] != "2024-01-02 03:04:05" {
		t.Errorf("processing_metadata = %v", raw["processing_metadata"])
	}
	for _, key := range []string{"source_pdf", "page_results", "accumulated_data", "processing_stats", "metadata"} {
		if _, ok := raw["extraction_results"][key]; !ok {
			t.Errorf("extraction_results missing %q", key)
		}
	}
	if !strings.Contains(string(data), "Intro <b>") {
		t.Error("HTML characters should not be escaped")
	}

	doc, err := ReadJSON(path)
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	res := doc.ExtractionResults
	if len(res.PageResults) != 3 || !res.PageResults[2].Degraded {
		t.Errorf("page results = %+v", res.PageResults)
	}
	if res.PageResults[1].Extra["invoice_total"] != float64(22) {
		t.Errorf("custom field lost: %+v", res.PageResults[1].Extra)
	}
	if doc.ProcessingMetadata.TokenUsage.TotalTokens != 15 {
		t.Errorf("token usage = %+v", doc.ProcessingMetadata.TokenUsage)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestWriteJSON_NilResult(t *testing.T) {
	if err := WriteJSON(filepath.Join(t.TempDir(), "x.json"), nil); err == nil {
		t.Error("expected error for nil result")
	}
}

func TestWorkbook(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeXLSX(&buf, sampleResult()); err != nil {
		t.Fatalf("EncodeXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != "Pages" {
		t.Fatalf("sheets = %v", sheets)
	}
	if sheets[1] != "T1 p2 Revenue- 2023-2024" {
		t.Errorf("table sheet name = %q", sheets[1])
	}

	rows, err := f.GetRows("Pages")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 || rows[0][0] != "Page" || rows[3][0] != "3" || rows[3][6] != "TRUE" {
		t.Errorf("pages rows = %v", rows)
	}

	tableRows, err := f.GetRows(sheets[1])
	if err != nil {
		t.Fatal(err)
	}
	if len(tableRows) < 4 || tableRows[0][0] != "Revenue: 2023/2024" {
		t.Fatalf("table rows = %v", tableRows)
	}
	last := tableRows[len(tableRows)-1]
	if last[0] != "2024" || last[1] != "12" {
		t.Errorf("last table row = %v", last)
	}
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	if err := WriteXLSX(path, sampleResult()); err != nil {
		t.Fatalf("WriteXLSX() error = %v", err)
	}
	if st, err := os.Stat(path); err != nil || st.Size() == 0 {
		t.Errorf("workbook not written: %v", err)
	}
}

func TestUniqueSheetName(t *testing.T) {
	used := map[string]bool{"pages": true}
	long := strings.Repeat("x", 40)

	a := uniqueSheetName(long, used)
	b := uniqueSheetName(long, used)
	if len([]rune(a)) > maxSheetName || len([]rune(b)) > maxSheetName {
		t.Errorf("names too long: %q %q", a, b)
	}
	if a == b {
		t.Errorf("duplicate sheet names: %q", a)
	}
	if got := uniqueSheetName("Pages", used); got != "Pages (2)" {
		t.Errorf("collision with overview sheet = %q", got)
	}
}

func TestEncodeFormats(t *testing.T) {
	data := map[string]any{"pages": 3}
	for _, f := range []Format{FormatJSON, FormatYAML} {
		var buf bytes.Buffer
		if err := Encode(&buf, f, data); err != nil {
			t.Fatalf("Encode(%s) error = %v", f, err)
		}
		if !strings.Contains(buf.String(), "pages") {
			t.Errorf("Encode(%s) = %q", f, buf.String())
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
	if f, _ := ParseFormat(""); f != FormatYAML {
		t.Errorf("default format = %s", f)
	}
}
