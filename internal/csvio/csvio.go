// Package csvio parses submitted CSV files into string-keyed rows.
// It tolerates the rough edges of operator-produced files: UTF-8 BOMs,
// broken encodings, lazy quoting and stray blank lines. Header problems
// (missing or unexpected columns) are file-level errors.
package csvio

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rcastellanos/fareacl/internal/list"
)

// ParseFile parses a CSV payload into rows keyed by the expected
// headers. The first line must be the header; it is checked against the
// expected column set and both missing and unexpected columns are
// reported. Blank rows are skipped.
func ParseFile(data []byte, headers []string) ([]list.Row, error) {
	records, err := parseCSV(sanitizeUTF8(stripBOM(data)))
	if err != nil {
		return nil, fmt.Errorf("csv parse: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("file is empty")
	}

	idx, err := checkHeaders(records[0], headers)
	if err != nil {
		return nil, err
	}

	rows := make([]list.Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		if isEmptyRow(rec) {
			continue
		}
		row := make(list.Row, len(headers))
		for name, pos := range idx {
			if pos < len(rec) {
				row[name] = rec[pos]
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// checkHeaders maps expected column names to their positions, rejecting
// files with missing or unexpected columns.
func checkHeaders(header, expected []string) (map[string]int, error) {
	got := make(map[string]int, len(header))
	for i, h := range header {
		got[strings.ToLower(cleanCell(h))] = i
	}

	idx := make(map[string]int, len(expected))
	var missing []string
	for _, name := range expected {
		pos, ok := got[strings.ToLower(name)]
		if !ok {
			missing = append(missing, name)
			continue
		}
		idx[name] = pos
		delete(got, strings.ToLower(name))
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	if len(got) > 0 {
		extra := make([]string, 0, len(got))
		for h := range got {
			if h != "" {
				extra = append(extra, h)
			}
		}
		if len(extra) > 0 {
			return nil, fmt.Errorf("unexpected columns: %s", strings.Join(extra, ", "))
		}
	}

	return idx, nil
}

// stripBOM removes a leading UTF-8 byte order mark if present.
func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}

// sanitizeUTF8 replaces invalid byte sequences with the replacement
// rune so the CSV reader never chokes on legacy encodings.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

func parseCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func cleanCell(s string) string {
	return strings.TrimSpace(s)
}
