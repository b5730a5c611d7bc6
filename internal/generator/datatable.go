package generator

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

var whitespaceRun = regexp.MustCompile(`[ ]+`)

// DataTable is the process-wide table of rows loaded once from a CSV or
// whitespace file (spec component C2). It is written once at setup and read
// concurrently thereafter by every worker's TableRefGenerator — immutable
// after construction, no lock required (spec §9 "Process-wide state").
type DataTable struct {
	rows [][]string
}

// Len returns the number of loaded rows.
func (t *DataTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Cell returns the value at (row, column), both 0-based.
func (t *DataTable) Cell(row, column int) (string, error) {
	if row < 0 || row >= len(t.rows) {
		return "", errors.Errorf("data table row index %d out of range [0,%d)", row, len(t.rows))
	}
	cols := t.rows[row]
	if column < 0 || column >= len(cols) {
		return "", errors.Errorf("data table column index %d out of range [0,%d)", column, len(cols))
	}
	return cols[column], nil
}

// LoadDataTable reads path from fs and dispatches to the CSV or whitespace
// parser based on the file name's suffix, lower-cased, beginning at the last
// '.' (spec §4.2). afero.Fs lets production code use the OS filesystem while
// tests use an in-memory one without touching disk.
func LoadDataTable(fs afero.Fs, path string) (*DataTable, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening data table file %q", path)
	}
	defer f.Close()

	suffix := lowerSuffix(path)
	if strings.HasPrefix(suffix, ".csv") {
		return parseCSV(f)
	}
	return parseWhitespace(f)
}

// parseCSV reads lines until the first empty line (or EOF), parsing each
// with ParseCSVRow.
func parseCSV(r io.Reader) (*DataTable, error) {
	var rows [][]string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}
		rows = append(rows, ParseCSVRow(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning csv data table")
	}
	return &DataTable{rows: rows}, nil
}

func lowerSuffix(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(path[idx:])
}

// parseWhitespace splits each line on runs of one or more spaces. Empty
// lines, and everything after the first empty line, terminate loading.
func parseWhitespace(r io.Reader) (*DataTable, error) {
	var rows [][]string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			break
		}
		trimmed := strings.TrimSpace(line)
		rows = append(rows, whitespaceRun.Split(trimmed, -1))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning whitespace data table")
	}
	return &DataTable{rows: rows}, nil
}

// ParseCSVRow parses one CSV line per spec §4.2's quoting rule: a
// double-quote starts or ends a quoted field; an embedded "" within a quoted
// field is a literal quote character. Exported so the CSV round-trip
// property (spec §8 invariant 6) can be tested directly against a single
// line without a full file.
func ParseCSVRow(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case inQuotes:
			if c == '"' {
				if i+1 < len(runes) && runes[i+1] == '"' {
					cur.WriteRune('"')
					i++
				} else {
					inQuotes = false
				}
			} else {
				cur.WriteRune(c)
			}
		case c == '"':
			inQuotes = true
		case c == ',':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(c)
		}
	}
	fields = append(fields, cur.String())
	return fields
}
