package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset is an ordered table. Each row holds one cell per header.
type Dataset struct {
	Headers []string
	Rows    [][]string
	// GroupColumn, when >= 0, marks the column whose value change starts a new visual block.
	GroupColumn int
}

// ContentTypeCSV is the MIME type of rendered CSV files.
const ContentTypeCSV = "text/csv; charset=utf-8"

// CSVExporter renders Dataset records into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the dataset. Short rows are padded with empty cells.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	// UTF-8 BOM so spreadsheet tools keep non-ASCII names intact.
	buf.WriteString("\ufeff")
	writer := csv.NewWriter(buf)
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for i, row := range data.Rows {
		record, err := normalizeRow(row, len(data.Headers))
		if err != nil {
			return nil, fmt.Errorf("csv row %d: %w", i+1, err)
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func normalizeRow(row []string, width int) ([]string, error) {
	if len(row) > width {
		return nil, fmt.Errorf("has %d cells for %d headers", len(row), width)
	}
	if len(row) == width {
		return row, nil
	}
	record := make([]string, width)
	copy(record, row)
	return record, nil
}
