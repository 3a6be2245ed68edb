package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"social-scraper/pkg/models"
)

// ExportFormat represents different export formats
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
	FormatJSON ExportFormat = "json"
	FormatTXT  ExportFormat = "txt"
)

// extraPrefix marks columns built from Record.Extra
const extraPrefix = "extra."

// ExportConfig holds configuration for data export
type ExportConfig struct {
	Format     ExportFormat
	Delimiter  rune
	SheetName  string
	DateFormat string

	// WithExtra appends one column per extra field found in the table
	WithExtra bool
}

// DataExporter renders tables in one format
type DataExporter struct {
	config ExportConfig
	now    func() time.Time
}

// NewDataExporter creates a new data exporter
func NewDataExporter(config ExportConfig) *DataExporter {
	// Set defaults
	if config.Format == "" {
		config.Format = FormatCSV
	}
	if config.Delimiter == 0 {
		config.Delimiter = ','
	}
	if config.SheetName == "" {
		config.SheetName = "Records"
	}
	if config.DateFormat == "" {
		config.DateFormat = "2006-01-02 15:04:05"
	}

	return &DataExporter{
		config: config,
		now:    time.Now,
	}
}

// Format returns the output format
func (de *DataExporter) Format() ExportFormat {
	return de.config.Format
}

// ExportToFile writes table to path, creating parent directories
func (de *DataExporter) ExportToFile(path string, table *models.Table) error {
	if path == "" {
		return fmt.Errorf("file path is required")
	}
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s file: %w", de.config.Format, err)
	}
	defer file.Close()

	if err := de.Encode(file, table); err != nil {
		return err
	}
	return file.Close()
}

// Bytes renders table into memory
func (de *DataExporter) Bytes(table *models.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := de.Encode(&buf, table); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes table to w in the configured format
func (de *DataExporter) Encode(w io.Writer, table *models.Table) error {
	if table == nil {
		return fmt.Errorf("nothing to export")
	}

	switch de.config.Format {
	case FormatCSV:
		return de.encodeCSV(w, table)
	case FormatXLSX:
		return de.encodeXLSX(w, table)
	case FormatJSON:
		return de.encodeJSON(w, table)
	case FormatTXT:
		return de.encodeTXT(w, table)
	default:
		return fmt.Errorf("unsupported export format: %s", de.config.Format)
	}
}

// header returns the table columns followed by the extra columns
func (de *DataExporter) header(table *models.Table) ([]string, []string) {
	columns := append([]string(nil), table.Columns...)
	if !de.config.WithExtra {
		return columns, nil
	}
	extras := ExtraKeys(table)
	for _, k := range extras {
		columns = append(columns, extraPrefix+k)
	}
	return columns, extras
}

func (de *DataExporter) row(table *models.Table, rec *models.Record, extras []string) []string {
	row := rec.Row(table.Columns)
	for _, k := range extras {
		row = append(row, rec.Extra[k])
	}
	return row
}

// encodeCSV exports data to CSV format
func (de *DataExporter) encodeCSV(w io.Writer, table *models.Table) error {
	writer := csv.NewWriter(w)
	writer.Comma = de.config.Delimiter

	header, extras := de.header(table)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	// Write data rows
	for _, rec := range table.Records {
		if err := writer.Write(de.row(table, rec, extras)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// encodeXLSX exports data to Excel format
func (de *DataExporter) encodeXLSX(w io.Writer, table *models.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := de.config.SheetName
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	// Set header style
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
			Size: 12,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6E6FA"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	header, extras := de.header(table)

	// Write headers
	for i, column := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, column)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)

		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, columnWidth(column))
	}

	// Write data rows
	for i, rec := range table.Records {
		for j, value := range de.row(table, rec, extras) {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	// Auto-filter
	endRange, _ := excelize.CoordinatesToCellName(len(header), table.Len()+1)
	f.AutoFilter(sheetName, "A1:"+endRange, []excelize.AutoFilterOptions{})

	// Freeze first row
	f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		Split:       false,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	if len(table.Skipped) > 0 {
		if err := de.writeSkippedSheet(f, table.Skipped); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write XLSX file: %w", err)
	}
	return nil
}

func (de *DataExporter) writeSkippedSheet(f *excelize.File, skipped []models.SkippedItem) error {
	const sheet = "Skipped"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create skipped sheet: %w", err)
	}
	f.SetSheetRow(sheet, "A1", &[]string{"url", "reason"})
	for i, s := range skipped {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		f.SetSheetRow(sheet, cell, &[]string{s.URL, s.Reason})
	}
	f.SetColWidth(sheet, "A", "B", 60)
	return nil
}

func columnWidth(column string) float64 {
	switch column {
	case models.ColSourceURL, models.ColURL:
		return 50
	case models.ColTitle:
		return 40
	case models.ColAuthor, models.ColHandle, models.ColExtractedAt, models.ColPublished:
		return 22
	default:
		return 14
	}
}

// jsonRecord is one exported record
type jsonRecord struct {
	Values map[string]string `json:"values"`
	Extra  map[string]string `json:"extra,omitempty"`
}

// encodeJSON exports data to JSON format
func (de *DataExporter) encodeJSON(w io.Writer, table *models.Table) error {
	records := make([]jsonRecord, 0, table.Len())
	for _, rec := range table.Records {
		jr := jsonRecord{Values: rec.Values}
		if de.config.WithExtra {
			jr.Extra = rec.Extra
		}
		records = append(records, jr)
	}

	// Create export data structure
	exportData := struct {
		ExportedAt time.Time            `json:"exported_at"`
		Count      int                  `json:"count"`
		Columns    []string             `json:"columns"`
		Records    []jsonRecord         `json:"records"`
		Skipped    []models.SkippedItem `json:"skipped,omitempty"`
	}{
		ExportedAt: de.now(),
		Count:      table.Len(),
		Columns:    table.Columns,
		Records:    records,
		Skipped:    table.Skipped,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return nil
}

// encodeTXT writes a human readable report
func (de *DataExporter) encodeTXT(w io.Writer, table *models.Table) error {
	var b strings.Builder

	// Write header
	fmt.Fprintf(&b, "Scrape Report\n")
	fmt.Fprintf(&b, "Generated: %s\n", de.now().Format(de.config.DateFormat))
	fmt.Fprintf(&b, "Total Records: %d\n", table.Len())
	fmt.Fprintf(&b, "%s\n\n", strings.Repeat("=", 50))

	header, extras := de.header(table)
	for i, rec := range table.Records {
		fmt.Fprintf(&b, "Record %d:\n", i+1)
		for j, value := range de.row(table, rec, extras) {
			fmt.Fprintf(&b, "  %s: %s\n", header[j], value)
		}
		fmt.Fprintf(&b, "\n")
	}

	if len(table.Skipped) > 0 {
		fmt.Fprintf(&b, "Skipped: %d\n", len(table.Skipped))
		for _, s := range table.Skipped {
			fmt.Fprintf(&b, "  %s (%s)\n", s.URL, s.Reason)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// ExtraKeys returns the sorted union of extra field names in table
func ExtraKeys(table *models.Table) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, rec := range table.Records {
		for _, k := range rec.ExtraKeys() {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// GetSupportedFormats returns list of supported export formats
func GetSupportedFormats() []ExportFormat {
	return []ExportFormat{FormatCSV, FormatXLSX, FormatJSON, FormatTXT}
}

// ParseFormat resolves a format name, case-insensitively
func ParseFormat(s string) (ExportFormat, error) {
	f := ExportFormat(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	for _, format := range GetSupportedFormats() {
		if f == format {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported format: %s", s)
}

// ContentType returns the MIME type of a format
func ContentType(f ExportFormat) string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatJSON:
		return "application/json; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// DefaultFilename returns a timestamped file name for an export
func DefaultFilename(platform models.Platform, f ExportFormat, at time.Time) string {
	name := "records"
	if platform != "" && platform != models.PlatformUnknown {
		name = strings.ToLower(string(platform))
	}
	return fmt.Sprintf("%s_%s.%s", name, at.Format("20060102_150405"), f)
}
