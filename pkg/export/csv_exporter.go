package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
)

// CSVExporter renders a Dataset as CSV. The title is not part of the output.
type CSVExporter struct{}

func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if err := data.validate("csv"); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	records := make([][]string, 0, len(data.Rows)+1)
	records = append(records, escapeRecord(data.Headers))
	for _, row := range data.Rows {
		records = append(records, escapeRecord(data.Record(row)))
	}
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// escapeRecord quotes cells a spreadsheet would evaluate as a formula. Template labels and
// categories are user authored.
func escapeRecord(record []string) []string {
	out := make([]string, len(record))
	for i, cell := range record {
		out[i] = escapeCell(cell)
	}
	return out
}

func escapeCell(cell string) string {
	if cell == "" {
		return cell
	}
	switch cell[0] {
	case '=', '+', '-', '@', '\t', '\r':
		if _, err := strconv.ParseFloat(cell, 64); err == nil {
			return cell
		}
		return "'" + cell
	}
	return cell
}
