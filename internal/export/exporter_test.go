package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"social-scraper/internal/link"
	"social-scraper/pkg/models"
)

func sampleTable(t *testing.T) *models.Table {
	t.Helper()
	table := models.NewTable(models.DefaultColumns())
	rows := []struct {
		platform models.Platform
		url      string
		title    string
		extra    map[string]string
	}{
		{models.PlatformYouTube, "https://youtube.com/watch?v=abc", "Hello, world", map[string]string{"duration": "3:32"}},
		{models.PlatformInstagram, "https://instagram.com/p/xyz", "N/A", map[string]string{"missing_fields": "caption"}},
	}
	for _, r := range rows {
		values := make(map[string]string)
		for _, col := range table.Columns {
			values[col] = "N/A"
		}
		values[models.ColPlatform] = string(r.platform)
		values[models.ColURL] = r.url
		values[models.ColTitle] = r.title
		if err := table.Append(&models.Record{Values: values, Extra: r.extra}); err != nil {
			t.Fatalf("Expected record to fit, got %v", err)
		}
	}
	table.Skipped = []models.SkippedItem{{URL: "https://instagram.com/p/bad", Reason: "page unavailable"}}
	return table
}

func TestEncodeCSV(t *testing.T) {
	table := sampleTable(t)
	data, err := NewDataExporter(ExportConfig{Format: FormatCSV}).Bytes(table)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("Expected valid CSV, got %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected header and 2 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if len(row) != len(models.DefaultColumns()) {
			t.Errorf("Row %d: expected %d cells, got %d", i, len(models.DefaultColumns()), len(row))
		}
	}
	if rows[0][0] != models.ColPlatform {
		t.Errorf("Expected header to start with platform, got %s", rows[0][0])
	}
	if rows[1][6] != "Hello, world" {
		t.Errorf("Expected quoted title to survive, got %q", rows[1][6])
	}
}

func TestEncodeCSVWithExtra(t *testing.T) {
	table := sampleTable(t)
	data, err := NewDataExporter(ExportConfig{Format: FormatCSV, WithExtra: true, Delimiter: ';'}).Bytes(table)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = ';'
	rows, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("Expected valid CSV, got %v", err)
	}

	width := len(models.DefaultColumns()) + 2
	header := rows[0]
	if len(header) != width {
		t.Fatalf("Expected %d columns, got %d", width, len(header))
	}
	if header[width-2] != "extra.duration" || header[width-1] != "extra.missing_fields" {
		t.Errorf("Unexpected extra columns %v", header[width-2:])
	}
	if rows[1][width-2] != "3:32" || rows[2][width-2] != "" {
		t.Errorf("Expected extra cells per record, got %q and %q", rows[1][width-2], rows[2][width-2])
	}
}

func TestEncodeXLSX(t *testing.T) {
	table := sampleTable(t)
	data, err := NewDataExporter(ExportConfig{Format: FormatXLSX}).Bytes(table)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Expected a readable workbook, got %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Records")
	if err != nil {
		t.Fatalf("Expected Records sheet, got %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}
	if rows[0][len(rows[0])-1] != models.ColExtractedAt {
		t.Errorf("Expected last header extracted_at, got %s", rows[0][len(rows[0])-1])
	}
	if rows[2][0] != "Instagram" {
		t.Errorf("Expected Instagram row, got %s", rows[2][0])
	}

	skipped, err := f.GetRows("Skipped")
	if err != nil || len(skipped) != 2 {
		t.Errorf("Expected skipped sheet with one item, got %v, %v", skipped, err)
	}
}

func TestEncodeJSON(t *testing.T) {
	table := sampleTable(t)
	data, err := NewDataExporter(ExportConfig{Format: FormatJSON}).Bytes(table)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var decoded struct {
		Count   int      `json:"count"`
		Columns []string `json:"columns"`
		Records []struct {
			Values map[string]string `json:"values"`
			Extra  map[string]string `json:"extra"`
		} `json:"records"`
		Skipped []models.SkippedItem `json:"skipped"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Expected valid JSON, got %v", err)
	}
	if decoded.Count != 2 || len(decoded.Records) != 2 || len(decoded.Skipped) != 1 {
		t.Errorf("Unexpected export %+v", decoded)
	}
	if decoded.Records[0].Values[models.ColPlatform] != "YouTube" {
		t.Errorf("Expected YouTube first, got %v", decoded.Records[0].Values)
	}
	if decoded.Records[0].Extra != nil {
		t.Errorf("Expected extras to be omitted, got %v", decoded.Records[0].Extra)
	}
}

func TestEncodeTXT(t *testing.T) {
	data, err := NewDataExporter(ExportConfig{Format: FormatTXT}).Bytes(sampleTable(t))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	text := string(data)
	for _, want := range []string{"Total Records: 2", "Record 2:", "  title: Hello, world", "Skipped: 1"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected report to contain %q", want)
		}
	}
}

func TestExportToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	if err := NewDataExporter(ExportConfig{Format: FormatCSV}).ExportToFile(path, sampleTable(t)); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Errorf("Expected file to be written, got %v", err)
	}
}

func TestEncodeErrors(t *testing.T) {
	if err := NewDataExporter(ExportConfig{Format: "pdf"}).Encode(&bytes.Buffer{}, sampleTable(t)); err == nil {
		t.Error("Expected error for unsupported format")
	}
	if err := NewDataExporter(ExportConfig{}).Encode(&bytes.Buffer{}, nil); err == nil {
		t.Error("Expected error for nil table")
	}
	if err := NewDataExporter(ExportConfig{}).ExportToFile("", sampleTable(t)); err == nil {
		t.Error("Expected error for empty path")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected ExportFormat
		valid    bool
	}{
		{"csv", FormatCSV, true},
		{"XLSX", FormatXLSX, true},
		{".json", FormatJSON, true},
		{" txt ", FormatTXT, true},
		{"pdf", "", false},
		{"", "", false},
	}

	for _, test := range tests {
		got, err := ParseFormat(test.input)
		if (err == nil) != test.valid || got != test.expected {
			t.Errorf("ParseFormat(%q) = %s, %v; expected %s", test.input, got, err, test.expected)
		}
	}
}

func TestTemplateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, format := range []ExportFormat{FormatCSV, FormatXLSX} {
		path := filepath.Join(dir, "links."+string(format))

		var buf bytes.Buffer
		if err := WriteTemplate(&buf, format); err != nil {
			t.Fatalf("Expected no error writing %s template, got %v", format, err)
		}
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			t.Fatal(err)
		}

		rows, err := ReadLinks(path)
		if err != nil {
			t.Fatalf("Expected no error reading %s, got %v", format, err)
		}
		if len(rows) != len(link.Examples()) {
			t.Errorf("%s: expected %d links, got %d", format, len(link.Examples()), len(rows))
		}
		if rows[0].Platform == "" {
			t.Errorf("%s: expected platform column to be read", format)
		}
	}

	if err := WriteTemplate(&bytes.Buffer{}, FormatJSON); err == nil {
		t.Error("Expected error for JSON template")
	}
}

func TestReadLinksText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "links.txt")
	content := "# comment\nhttps://youtube.com/@MrBeast\n\n  https://tiktok.com/@a  \n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	rows, err := ReadLinks(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(rows) != 2 || rows[1].URL != "https://tiktok.com/@a" {
		t.Errorf("Unexpected rows %v", rows)
	}
}
