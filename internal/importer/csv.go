// Package importer holds the pure parsing and validation pieces of the CSV
// bulk-import pipeline. Everything here is deterministic and side-effect free;
// persistence lives in the import service.
package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Row is a parsed CSV line mapped by column name. Values are trimmed and
// empty cells are absent from the map.
type Row map[string]string

// ParseResult carries the decoded header and rows of an uploaded file.
type ParseResult struct {
	Headers []string
	Rows    []Row
}

// Parse decodes an uploaded CSV: strips a UTF-8 BOM, decodes as UTF-8 with a
// latin-1 fallback, and maps each record by header name.
func Parse(r io.Reader) (*ParseResult, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)

	if !utf8.Valid(raw) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("decode latin-1: %w", err)
		}
		raw = decoded
	}

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}

	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(Row, len(headers))
		for i, value := range record {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			trimmed := strings.TrimSpace(value)
			if trimmed == "" {
				continue
			}
			row[headers[i]] = trimmed
		}
		rows = append(rows, row)
	}

	return &ParseResult{Headers: headers, Rows: rows}, nil
}

// Canonicalize rewrites alias column names onto their canonical form so the
// rest of the pipeline reads a single set of names. When a file carries both
// the alias and the canonical column, the canonical value wins.
func (p *ParseResult) Canonicalize(aliases map[string]string) {
	for i, h := range p.Headers {
		if canonical, ok := aliases[h]; ok {
			p.Headers[i] = canonical
		}
	}
	for _, row := range p.Rows {
		for alias, canonical := range aliases {
			value, ok := row[alias]
			if !ok {
				continue
			}
			if _, exists := row[canonical]; !exists {
				row[canonical] = value
			}
			delete(row, alias)
		}
	}
}

// MissingHeaders returns the required columns absent from the parsed header
// set. Column order is not significant.
func MissingHeaders(headers, required []string) []string {
	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[h] = struct{}{}
	}
	var missing []string
	for _, col := range required {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// Get returns the trimmed value for a column, empty when absent.
func (r Row) Get(column string) string {
	return r[column]
}

// Has reports whether the column carries a value.
func (r Row) Has(column string) bool {
	_, ok := r[column]
	return ok
}
