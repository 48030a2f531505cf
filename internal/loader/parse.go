package loader

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/VedaVachan/COD-Mobile-insights/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadJSON decodes a JSON array of objects, or an object wrapping one under "matches".
// Numbers are kept as json.Number.
func ReadJSON(r io.Reader) ([]domain.RawRow, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return []domain.RawRow{}, nil
		}
		return nil, fmt.Errorf("decoding json: %w", err)
	}

	var items []any
	switch v := doc.(type) {
	case []any:
		items = v
	case map[string]any:
		wrapped, ok := v["matches"].([]any)
		if !ok {
			return nil, errors.New("json object has no matches array")
		}
		items = wrapped
	default:
		return nil, fmt.Errorf("expected json array, got %T", doc)
	}

	rows := make([]domain.RawRow, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("record %d is not an object", i)
		}
		rows = append(rows, domain.RawRow(obj))
	}
	return rows, nil
}

// ReadCSV reads delimited text whose first record names the columns.
// Blank lines are skipped and short records leave trailing columns empty.
func ReadCSV(r io.Reader) ([]domain.RawRow, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []domain.RawRow{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rows := make([]domain.RawRow, 0)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		if blankRecord(record) {
			continue
		}

		row := make(domain.RawRow, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			if _, dup := row[name]; dup {
				continue
			}
			if i < len(record) {
				row[name] = record[i]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func blankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Read dispatches to the reader for format
func Read(r io.Reader, format Format) ([]domain.RawRow, error) {
	switch format {
	case FormatJSON:
		return ReadJSON(r)
	case FormatCSV:
		return ReadCSV(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
