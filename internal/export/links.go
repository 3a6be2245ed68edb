package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"social-scraper/internal/link"
)

// LinkRow is one entry of a batch input file
type LinkRow struct {
	URL      string
	Platform string
}

var templateHeader = []string{"URL", "Platform"}

// ReadLinks reads a batch input file. CSV and XLSX files use the template
// layout (URL, optional Platform); any other file holds one URL per line
// with # comments.
func ReadLinks(path string) ([]LinkRow, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open CSV file: %w", err)
		}
		defer file.Close()

		reader := csv.NewReader(file)
		reader.FieldsPerRecord = -1
		rows, err := reader.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV file: %w", err)
		}
		return linkRows(rows), nil

	case ".xlsx":
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open XLSX file: %w", err)
		}
		defer f.Close()

		rows, err := f.GetRows(f.GetSheetName(0))
		if err != nil {
			return nil, fmt.Errorf("failed to read XLSX file: %w", err)
		}
		return linkRows(rows), nil

	default:
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		defer file.Close()
		return readLines(file)
	}
}

func readLines(r io.Reader) ([]LinkRow, error) {
	var out []LinkRow
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, LinkRow{URL: line})
	}
	return out, scanner.Err()
}

func linkRows(rows [][]string) []LinkRow {
	var out []LinkRow
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		url := strings.TrimSpace(row[0])
		if url == "" || strings.HasPrefix(url, "#") {
			continue
		}
		if i == 0 && strings.EqualFold(url, templateHeader[0]) {
			continue
		}
		lr := LinkRow{URL: url}
		if len(row) > 1 {
			lr.Platform = strings.TrimSpace(row[1])
		}
		out = append(out, lr)
	}
	return out
}

// WriteTemplate writes a batch input template with one example per
// supported link shape
func WriteTemplate(w io.Writer, format ExportFormat) error {
	examples := link.Examples()

	switch format {
	case FormatCSV:
		writer := csv.NewWriter(w)
		if err := writer.Write(templateHeader); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
		for _, ex := range examples {
			if err := writer.Write([]string{ex.URL, string(ex.Platform)}); err != nil {
				return fmt.Errorf("failed to write example row: %w", err)
			}
		}
		writer.Flush()
		return writer.Error()

	case FormatXLSX:
		f := excelize.NewFile()
		defer f.Close()

		sheetName := "Template"
		f.SetSheetName("Sheet1", sheetName)
		f.SetSheetRow(sheetName, "A1", &templateHeader)
		for i, ex := range examples {
			cell, _ := excelize.CoordinatesToCellName(1, i+2)
			f.SetSheetRow(sheetName, cell, &[]string{ex.URL, string(ex.Platform)})
		}
		f.SetColWidth(sheetName, "A", "A", 60)

		// Add data validation for Platform column
		validation := excelize.NewDataValidation(true)
		validation.Sqref = "B2:B1000"
		if err := validation.SetDropList([]string{"YouTube", "Instagram", "TikTok", "Facebook"}); err != nil {
			return fmt.Errorf("failed to add platform validation: %w", err)
		}
		f.AddDataValidation(sheetName, validation)

		if _, err := f.WriteTo(w); err != nil {
			return fmt.Errorf("failed to write XLSX template: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("template creation not supported for format: %s", format)
	}
}
