package spreadsheet

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Format of an uploaded sheet
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// FormatFromFilename picks the format by extension
func FormatFromFilename(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	}
	return "", ErrUnsupportedFormat
}

// Table is the first sheet of a workbook: a header row and data rows.
// Cells are trimmed and missing trailing cells read as empty strings.
type Table struct {
	headers []string
	index   map[string]int
	rows    []TableRow
}

// TableRow is one data row with its 1-based line number in the file
type TableRow struct {
	Line   int
	Fields []string
}

// ReadTable reads a table in the given format
func ReadTable(r io.Reader, format Format) (*Table, error) {
	var (
		records [][]string
		err     error
	)
	switch format {
	case FormatXLSX:
		records, err = readXLSX(r)
	case FormatCSV:
		records, err = readCSV(r)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}
	return newTable(records)
}

func newTable(records [][]string) (*Table, error) {
	if len(records) == 0 || isBlank(records[0]) {
		return nil, ErrMissingHeader
	}
	t := &Table{index: make(map[string]int)}
	for i, h := range records[0] {
		h = normalizeHeader(h)
		t.headers = append(t.headers, h)
		if _, dup := t.index[h]; !dup && h != "" {
			t.index[h] = i
		}
	}
	for i, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		fields := make([]string, len(rec))
		for j, v := range rec {
			fields[j] = strings.TrimSpace(v)
		}
		t.rows = append(t.rows, TableRow{Line: i + 2, Fields: fields})
	}
	if len(t.rows) == 0 {
		return nil, ErrNoDataRows
	}
	return t, nil
}

// Headers returns the normalized header names
func (t *Table) Headers() []string {
	return t.headers
}

// Rows returns the non-blank data rows
func (t *Table) Rows() []TableRow {
	return t.rows
}

// Column returns the index of the first header matching any alias
func (t *Table) Column(aliases ...string) (int, bool) {
	for _, a := range aliases {
		if i, ok := t.index[normalizeHeader(a)]; ok {
			return i, true
		}
	}
	return 0, false
}

// Cell returns the value of column idx, or "" when the row is shorter
func (r TableRow) Cell(idx int) string {
	if idx < 0 || idx >= len(r.Fields) {
		return ""
	}
	return r.Fields[idx]
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("unable to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

const peekSize = 4096

func readCSV(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)

	// strip a UTF-8 BOM written by spreadsheet programs
	if bom, err := br.Peek(3); err == nil && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		_, _ = br.Discard(3)
	}
	head, err := br.Peek(peekSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(head) == 0 {
		return nil, ErrEmptyFile
	}
	if len(head) == peekSize {
		head = trimPartialRune(head)
	}
	if !utf8.Valid(head) {
		return nil, ErrInvalidEncoding
	}

	cr := csv.NewReader(br)
	cr.Comma = detectDelimiter(head)
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	return records, nil
}

// detectDelimiter prefers ';' when the header line has more of them than commas
func detectDelimiter(head []byte) rune {
	line := string(head)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';'
	}
	return ','
}

// trimPartialRune drops an incomplete multi-byte sequence cut off by Peek
func trimPartialRune(b []byte) []byte {
	for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
		if utf8.Valid(b) {
			return b
		}
		b = b[:len(b)-1]
	}
	return b
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
