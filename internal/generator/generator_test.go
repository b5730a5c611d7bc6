package generator

import (
	"math/rand"
	"strings"
	"testing"
)

func TestParseSpecSplitsOnCommaSpace(t *testing.T) {
	cases := []struct {
		raw  string
		want Spec
	}{
		{"int,1,10", Spec{Type: "int", X: "1", Y: "10"}},
		{"{int, 1900, 2010}", Spec{Type: "int", X: "1900", Y: "2010"}},
		{"boolean,30", Spec{Type: "boolean", X: "30"}},
		{"string,5,10", Spec{Type: "string", X: "5", Y: "10"}},
		{"int,%05d,1,10", Spec{Type: "int", Format: "%05d", X: "1", Y: "10"}},
		{"date,yyyy/MM/dd,2000/01/01,2020/01/01,yyyy/MM/dd", Spec{
			Type: "date", X: "2000/01/01", Y: "2020/01/01", ParseFormat: "yyyy/MM/dd", Format: "yyyy/MM/dd",
		}},
	}
	for _, c := range cases {
		got, err := ParseSpec(c.raw)
		if err != nil {
			t.Fatalf("ParseSpec(%q) error: %v", c.raw, err)
		}
		if got != c.want {
			t.Errorf("ParseSpec(%q) = %+v, want %+v", c.raw, got, c.want)
		}
	}
}

// TestBoundedIntWithinRange is the generic form of spec invariant 1 for int:
// every draw lies in the inclusive-lower/exclusive-upper range.
func TestBoundedIntWithinRange(t *testing.T) {
	spec := Spec{Type: "int", X: "1", Y: "10"}
	gen, err := New(spec, nil, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 10000; i++ {
		v, err := gen.NextValue()
		if err != nil {
			t.Fatalf("NextValue: %v", err)
		}
		if v.Int < 1 || v.Int >= 10 {
			t.Fatalf("draw %d out of range [1,10): %d", i, v.Int)
		}
	}
}

// TestBooleanPercentTrue is spec's S2 scenario: {boolean,30}, 10000 draws,
// true count in [2700,3300].
func TestBooleanPercentTrue(t *testing.T) {
	spec := Spec{Type: "boolean", X: "30"}
	gen, err := New(spec, nil, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	trueCount := 0
	for i := 0; i < 10000; i++ {
		v, err := gen.NextValue()
		if err != nil {
			t.Fatalf("NextValue: %v", err)
		}
		if v.Bool {
			trueCount++
		}
	}
	if trueCount < 2700 || trueCount > 3300 {
		t.Errorf("true count = %d, want in [2700,3300]", trueCount)
	}
}

// TestBooleanFormatApplied is spec §4.1 step 6: format applies uniformly
// after the value draw, including for boolean.
func TestBooleanFormatApplied(t *testing.T) {
	spec := Spec{Type: "boolean", X: "100", Format: "%v"}
	gen, err := New(spec, nil, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	v, err := gen.NextValue()
	if err != nil {
		t.Fatalf("NextValue: %v", err)
	}
	if !v.IsFmted || v.Str != "true" {
		t.Errorf("NextValue() = %+v, want IsFmted=true Str=%q", v, "true")
	}
}

// TestStringAlphabetAndLength is spec's S3 scenario: {string,5,10}; every
// produced string has length in [5,10] and every character in [a-zA-Z0-9].
func TestStringAlphabetAndLength(t *testing.T) {
	spec := Spec{Type: "string", X: "5", Y: "10"}
	gen, err := New(spec, nil, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 1000; i++ {
		v, err := gen.NextValue()
		if err != nil {
			t.Fatalf("NextValue: %v", err)
		}
		if len(v.Str) < 5 || len(v.Str) > 10 {
			t.Fatalf("draw %d length %d out of [5,10]", i, len(v.Str))
		}
		for _, c := range v.Str {
			if !strings.ContainsRune(stringAlphabet, c) {
				t.Fatalf("draw %d contains character %q not in alphabet", i, c)
			}
		}
	}
}

func TestUnknownParameterTypeIsFatal(t *testing.T) {
	spec := Spec{Type: "uuid"}
	if _, err := New(spec, nil, rand.New(rand.NewSource(1))); err == nil {
		t.Fatal("expected error for unknown parameter type")
	}
}

func TestValueGeneratorRequiresDataTable(t *testing.T) {
	spec := Spec{Type: "value", X: "1", Y: "0"}
	if _, err := New(spec, nil, rand.New(rand.NewSource(1))); err == nil {
		t.Fatal("expected error constructing value generator with nil table")
	}
}

func TestDateGeneratorDefaultLayout(t *testing.T) {
	spec := Spec{Type: "date", X: "2000/01/01", Y: "2020/01/01"}
	gen, err := New(spec, nil, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	v, err := gen.NextValue()
	if err != nil {
		t.Fatalf("NextValue: %v", err)
	}
	if v.Time.Year() < 2000 || v.Time.Year() > 2020 {
		t.Errorf("date %v out of expected range", v.Time)
	}
}
