// Package generator implements the typed random Value Generators (spec
// component C1) and the process-wide Data Table they may index into (spec
// component C2).
package generator

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Kind is the sum type over the five generator types a parameter spec may
// name, plus the table-indexing "value" kind (spec §9 "Polymorphic
// generators": modelled as a sum type rather than a runtime type tag).
type Kind int

const (
	KindInt Kind = iota
	KindLong
	KindString
	KindBoolean
	KindDate
	KindValue
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindString:
		return "string"
	case KindBoolean:
		return "boolean"
	case KindDate:
		return "date"
	case KindValue:
		return "value"
	default:
		return "unknown"
	}
}

// Value is the small sum type produced by NextValue and consumed by the
// parameter binder in the SQL Worker (C6). Exactly one field is meaningful,
// selected by Kind.
type Value struct {
	Kind    Kind
	Int     int64
	Str     string
	Bool    bool
	Time    time.Time
	IsFmted bool // true if Str already holds the sprintf-formatted rendering
}

// defaultDateLayout and spaceDateLayout mirror spec §3: dates parse with
// parseFormat, or yyyy/MM/dd (no space in the literal) / yyyy/MM/dd HH:mm:ss
// (a space present) when parseFormat is absent. Go's reference-time layouts
// expressing the same shapes:
const (
	defaultDateLayout = "2006/01/02"
	spaceDateLayout    = "2006/01/02 15:04:05"
)

// Generator produces one typed Value per call. Each instance owns its own
// *rand.Rand (spec §9: "each worker must own its RNG to avoid contention").
type Generator interface {
	Kind() Kind
	NextValue() (Value, error)
}

// Spec is the parsed parameter specifier: {type, format?, X?, Y?, parseFormat?}.
type Spec struct {
	Type        string
	Format      string // "" means "none"
	X, Y        string
	ParseFormat string
}

// ParseSpec splits a raw specifier body (with or without surrounding braces)
// on comma-space per spec §4.1: "Splits on \", \" (comma surrounded by
// optional spaces). First token is type. Second token is format iff its
// first character is not an ASCII digit; otherwise format = none. Remaining
// two tokens are X and Y, and an optional fifth parseFormat."
func ParseSpec(raw string) (Spec, error) {
	body := strings.TrimSpace(raw)
	body = strings.TrimPrefix(body, "{")
	body = strings.TrimSuffix(body, "}")

	parts := splitCommaSpace(body)
	if len(parts) == 0 {
		return Spec{}, errors.New("empty parameter spec")
	}

	s := Spec{Type: strings.TrimSpace(parts[0])}
	rest := parts[1:]

	hasFormat := len(rest) > 0 && !startsWithDigit(rest[0])
	if hasFormat {
		s.Format = rest[0]
		rest = rest[1:]
	}
	if len(rest) > 0 {
		s.X = rest[0]
	}
	if len(rest) > 1 {
		s.Y = rest[1]
	}
	if len(rest) > 2 {
		s.ParseFormat = rest[2]
	}
	return s, nil
}

func splitCommaSpace(s string) []string {
	// Split on a comma optionally surrounded by spaces, without pulling in a
	// regex dependency for a single fixed delimiter shape.
	var out []string
	var cur strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] == ',' {
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
			// skip any spaces following the comma
			for i+1 < len(runes) && runes[i+1] == ' ' {
				i++
			}
			continue
		}
		cur.WriteRune(runes[i])
	}
	out = append(out, strings.TrimSpace(cur.String()))
	return out
}

func startsWithDigit(s string) bool {
	if s == "" {
		return false
	}
	return s[0] >= '0' && s[0] <= '9'
}

// New constructs a concrete Generator from a parsed Spec. table may be nil
// unless Type == "value". rng must be non-nil and private to the caller.
func New(spec Spec, table *DataTable, rng *rand.Rand) (Generator, error) {
	switch spec.Type {
	case "int":
		return newBoundedInt(spec, rng, KindInt, 32)
	case "long":
		return newBoundedInt(spec, rng, KindLong, 64)
	case "string":
		return newString(spec, rng)
	case "boolean":
		return newBoolean(spec, rng)
	case "date":
		return newDate(spec, rng)
	case "value":
		return newTableRef(spec, table, rng)
	default:
		return nil, errors.Errorf("unknown parameter type %q", spec.Type)
	}
}

// -- int / long -------------------------------------------------------------

type boundedIntGenerator struct {
	kind         Kind
	first, delta int64
	format       string
	rng          *rand.Rand
}

func newBoundedInt(spec Spec, rng *rand.Rand, kind Kind, bits int) (Generator, error) {
	first, err := strconv.ParseInt(spec.X, 10, bits)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing lower bound for %s generator", kind)
	}
	second, err := strconv.ParseInt(spec.Y, 10, bits)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing upper bound for %s generator", kind)
	}
	return &boundedIntGenerator{
		kind:   kind,
		first:  first,
		delta:  second - first,
		format: spec.Format,
		rng:    rng,
	}, nil
}

func (g *boundedIntGenerator) Kind() Kind { return g.kind }

func (g *boundedIntGenerator) NextValue() (Value, error) {
	r := g.rng.Float64()
	v := g.first + int64(r*float64(g.delta))
	if g.format != "" {
		return Value{Kind: g.kind, Str: fmt.Sprintf(g.format, v), IsFmted: true}, nil
	}
	return Value{Kind: g.kind, Int: v}, nil
}

// -- string -------------------------------------------------------------

const stringAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

type stringGenerator struct {
	minLen, lenDelta int64
	format           string
	rng              *rand.Rand
}

func newString(spec Spec, rng *rand.Rand) (Generator, error) {
	minLen, err := strconv.ParseInt(spec.X, 10, 32)
	if err != nil {
		return nil, errors.Wrap(err, "parsing min length for string generator")
	}
	maxLen, err := strconv.ParseInt(spec.Y, 10, 32)
	if err != nil {
		return nil, errors.Wrap(err, "parsing max length for string generator")
	}
	return &stringGenerator{minLen: minLen, lenDelta: maxLen - minLen, format: spec.Format, rng: rng}, nil
}

func (g *stringGenerator) Kind() Kind { return KindString }

func (g *stringGenerator) NextValue() (Value, error) {
	r := g.rng.Float64()
	length := g.minLen + int64(r*float64(g.lenDelta))
	b := make([]byte, length)
	for i := range b {
		b[i] = stringAlphabet[g.rng.Intn(len(stringAlphabet))]
	}
	s := string(b)
	if g.format != "" {
		return Value{Kind: KindString, Str: fmt.Sprintf(g.format, s), IsFmted: true}, nil
	}
	return Value{Kind: KindString, Str: s}, nil
}

// -- boolean -------------------------------------------------------------

type booleanGenerator struct {
	percentTrue float64
	format      string
	rng         *rand.Rand
}

func newBoolean(spec Spec, rng *rand.Rand) (Generator, error) {
	pct := 50.0
	if spec.X != "" {
		v, err := strconv.ParseFloat(spec.X, 64)
		if err != nil {
			return nil, errors.Wrap(err, "parsing percent-true for boolean generator")
		}
		pct = v
	}
	return &booleanGenerator{percentTrue: pct, format: spec.Format, rng: rng}, nil
}

func (g *booleanGenerator) Kind() Kind { return KindBoolean }

func (g *booleanGenerator) NextValue() (Value, error) {
	r := g.rng.Float64()
	v := (r * 100) < g.percentTrue
	if g.format != "" {
		return Value{Kind: KindBoolean, Str: fmt.Sprintf(g.format, v), IsFmted: true}, nil
	}
	return Value{Kind: KindBoolean, Bool: v}, nil
}

// -- date -------------------------------------------------------------

type dateGenerator struct {
	firstNs, deltaNs int64
	format           string
	rng              *rand.Rand
}

func newDate(spec Spec, rng *rand.Rand) (Generator, error) {
	layout := spec.ParseFormat
	if layout == "" {
		if strings.Contains(spec.X, " ") || strings.Contains(spec.Y, " ") {
			layout = spaceDateLayout
		} else {
			layout = defaultDateLayout
		}
	} else {
		layout = javaToGoLayout(layout)
	}

	first, err := time.Parse(layout, spec.X)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing lower date bound %q with layout %q", spec.X, layout)
	}
	second, err := time.Parse(layout, spec.Y)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing upper date bound %q with layout %q", spec.Y, layout)
	}
	return &dateGenerator{
		firstNs: first.UnixNano(),
		deltaNs: second.UnixNano() - first.UnixNano(),
		format:  spec.Format,
		rng:     rng,
	}, nil
}

func (g *dateGenerator) Kind() Kind { return KindDate }

func (g *dateGenerator) NextValue() (Value, error) {
	r := g.rng.Float64()
	ns := g.firstNs + int64(r*float64(g.deltaNs))
	t := time.Unix(0, ns).UTC()
	if g.format != "" {
		return Value{Kind: KindDate, Str: fmt.Sprintf(g.format, t), IsFmted: true}, nil
	}
	return Value{Kind: KindDate, Time: t}, nil
}

// javaToGoLayout translates the handful of Java SimpleDateFormat tokens
// spec.md's parseFormat examples use (yyyy/MM/dd[ HH:mm:ss]) into a Go
// reference-time layout. Only the tokens spec.md actually names are handled;
// anything else passes through unchanged, matching §9's instruction to
// preserve ambiguous behaviour rather than guess at a fuller translator.
func javaToGoLayout(javaLayout string) string {
	replacer := strings.NewReplacer(
		"yyyy", "2006",
		"MM", "01",
		"dd", "02",
		"HH", "15",
		"mm", "04",
		"ss", "05",
	)
	return replacer.Replace(javaLayout)
}

// -- value (Data Table reference) -------------------------------------------

type tableRefGenerator struct {
	table        *DataTable
	firstRow     int64
	rowDelta     int64
	column       int
	format       string
	rng          *rand.Rand
}

func newTableRef(spec Spec, table *DataTable, rng *rand.Rand) (Generator, error) {
	if table == nil || table.Len() == 0 {
		return nil, errors.New("value generator requires a non-empty data table")
	}
	firstRow, err := strconv.ParseInt(spec.X, 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "parsing first row index for value generator")
	}
	column, err := strconv.Atoi(spec.Y)
	if err != nil {
		return nil, errors.Wrap(err, "parsing column index for value generator")
	}
	delta := int64(table.Len()) - firstRow
	return &tableRefGenerator{
		table:    table,
		firstRow: firstRow,
		rowDelta: delta,
		column:   column,
		format:   spec.Format,
		rng:      rng,
	}, nil
}

func (g *tableRefGenerator) Kind() Kind { return KindValue }

func (g *tableRefGenerator) NextValue() (Value, error) {
	r := g.rng.Float64()
	row := g.firstRow + int64(r*float64(g.rowDelta))
	v, err := g.table.Cell(int(row), g.column)
	if err != nil {
		return Value{}, err
	}
	if g.format != "" {
		return Value{Kind: KindValue, Str: fmt.Sprintf(g.format, v), IsFmted: true}, nil
	}
	return Value{Kind: KindValue, Str: v}, nil
}
