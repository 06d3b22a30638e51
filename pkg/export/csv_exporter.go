package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVExporter renders Dataset records into CSV bytes. With alwaysQuote
// set, every field is wrapped in double quotes regardless of content so
// downstream spreadsheet imports treat all columns as text.
type CSVExporter struct {
	alwaysQuote bool
}

// NewCSVExporter builds a CSV exporter using standard quoting rules.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// NewQuotedCSVExporter builds a CSV exporter that quotes every field.
func NewQuotedCSVExporter() *CSVExporter {
	return &CSVExporter{alwaysQuote: true}
}

// Render produces CSV encoded bytes for the dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	if e.alwaysQuote {
		return e.renderQuoted(data)
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = row[header]
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

// encoding/csv only quotes when it must, so forced quoting is written by
// hand with RFC 4180 escaping.
func (e *CSVExporter) renderQuoted(data Dataset) ([]byte, error) {
	buf := &bytes.Buffer{}
	writeRecord := func(record []string) {
		for i, field := range record {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteByte('"')
			buf.WriteString(strings.ReplaceAll(field, `"`, `""`))
			buf.WriteByte('"')
		}
		buf.WriteString("\r\n")
	}
	writeRecord(data.Headers)
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		writeRecord(record)
	}
	return buf.Bytes(), nil
}
