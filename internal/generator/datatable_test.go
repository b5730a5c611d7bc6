package generator

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

// TestParseCSVRowQuoting is spec's S4 scenario.
func TestParseCSVRowQuoting(t *testing.T) {
	got := ParseCSVRow(`a,"b,c","d""e",f`)
	want := []string{"a", "b,c", `d"e`, "f"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseCSVRow(...) mismatch (-want +got):\n%s", diff)
	}
}

// TestCSVRoundTrip is spec invariant 6: parse(serialize(row)) = row for rows
// containing commas and embedded quotes.
func TestCSVRoundTrip(t *testing.T) {
	rows := [][]string{
		{"plain", "fields", "here"},
		{"has,comma", `has"quote`, "has, and \"both\""},
		{""},
	}
	for _, row := range rows {
		serialized := serializeCSVRow(row)
		got := ParseCSVRow(serialized)
		if diff := cmp.Diff(row, got); diff != "" {
			t.Errorf("round-trip %v -> %q mismatch (-want +got):\n%s", row, serialized, diff)
		}
	}
}

// serializeCSVRow is the test-only inverse of ParseCSVRow: quote a field iff
// it contains a comma or a double-quote, doubling embedded quotes.
func serializeCSVRow(row []string) string {
	out := make([]string, len(row))
	for i, f := range row {
		if strings.ContainsAny(f, `,"`) {
			out[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
		} else {
			out[i] = f
		}
	}
	return strings.Join(out, ",")
}

func TestLoadDataTableCSV(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "teams.csv", []byte("1,Alpha\n2,Beta\n"), 0o644)

	dt, err := LoadDataTable(fs, "teams.csv")
	if err != nil {
		t.Fatalf("LoadDataTable: %v", err)
	}
	if dt.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", dt.Len())
	}
	v, err := dt.Cell(1, 1)
	if err != nil {
		t.Fatalf("Cell: %v", err)
	}
	if v != "Beta" {
		t.Errorf("Cell(1,1) = %q, want %q", v, "Beta")
	}
}

func TestLoadDataTableWhitespace(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "teams.txt", []byte("1   Alpha\n2   Beta\n"), 0o644)

	dt, err := LoadDataTable(fs, "teams.txt")
	if err != nil {
		t.Fatalf("LoadDataTable: %v", err)
	}
	if dt.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", dt.Len())
	}
	v, err := dt.Cell(0, 1)
	if err != nil {
		t.Fatalf("Cell: %v", err)
	}
	if v != "Alpha" {
		t.Errorf("Cell(0,1) = %q, want %q", v, "Alpha")
	}
}

func TestCellOutOfRange(t *testing.T) {
	dt := &DataTable{rows: [][]string{{"a", "b"}}}
	if _, err := dt.Cell(5, 0); err == nil {
		t.Error("expected error for out-of-range row")
	}
	if _, err := dt.Cell(0, 5); err == nil {
		t.Error("expected error for out-of-range column")
	}
}
