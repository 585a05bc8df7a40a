// Package output writes extracted report pages to CSV and describes the
// result table in a manifest next to it.
package output

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strconv"

	"github.com/Sternrassler/adform-stats-client/pkg/report"
)

// ErrHeaderMismatch means the result file already holds rows with other columns.
var ErrHeaderMismatch = errors.New("csv header mismatch")

// CSVWriter appends report pages to a single CSV file.
type CSVWriter struct {
	path string
	rows int

	// headerKnown is set once the file carries a header row.
	headerKnown bool
}

// NewCSVWriter creates a writer for path. Nothing is written until the
// first page arrives.
func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{path: path}
}

// Path returns the CSV file path.
func (w *CSVWriter) Path() string {
	return w.path
}

// Rows returns the number of data rows written so far.
func (w *CSVWriter) Rows() int {
	return w.rows
}

// WritePage appends the rows of page. The column header row is written only
// when the file is missing or empty. An existing header must match the
// page's columns, otherwise ErrHeaderMismatch is returned and nothing is written.
func (w *CSVWriter) WritePage(page *report.Page) error {
	writeHeader := false
	if !w.headerKnown {
		header, err := readHeader(w.path)
		if err != nil {
			return err
		}
		switch {
		case header == nil:
			writeHeader = len(page.ColumnHeaders) > 0
		case len(page.ColumnHeaders) > 0 && !slices.Equal(header, page.ColumnHeaders):
			return fmt.Errorf("%w: %s has columns %v, report has %v",
				ErrHeaderMismatch, w.path, header, page.ColumnHeaders)
		default:
			w.headerKnown = true
		}
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", w.path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if writeHeader {
		if err := cw.Write(page.ColumnHeaders); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	record := make([]string, 0, len(page.ColumnHeaders))
	for i, row := range page.Rows {
		record = record[:0]
		for _, cell := range row {
			record = append(record, formatCell(cell))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d at offset %d: %w", i, page.Offset, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", w.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", w.path, err)
	}

	if writeHeader {
		w.headerKnown = true
	}
	w.rows += page.RowCount()
	return nil
}

// readHeader returns the first record of the CSV file at path, or nil when
// the file is missing or empty.
func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	return header, nil
}

// formatCell renders a decoded JSON value as CSV text.
func formatCell(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case json.Number:
		return c.String()
	case bool:
		return strconv.FormatBool(c)
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case map[string]any, []any:
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Sprint(c)
		}
		return string(data)
	default:
		return fmt.Sprint(c)
	}
}
