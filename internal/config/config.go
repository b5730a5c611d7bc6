// Package config implements the Engine Supervisor's option bag: defaults,
// cross-field validation (spec §4.8), and the three-layer load order
// (CLI > -config file > built-in default) with ${name} substitution
// (spec §6).
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Bag is the fully resolved set of recognised options (spec §3). Required
// fields have no usable zero value and are validated as such.
type Bag struct {
	URL      string `mapstructure:"url" validate:"required"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`

	Threads int `mapstructure:"threads" validate:"gte=1"`
	Time    int `mapstructure:"time" validate:"gte=1"` // seconds
	Batch   int `mapstructure:"batch" validate:"gte=1"`

	Rate int // target tx/sec; 0 means unset
	Load int `mapstructure:"load"` // percent, 1-100

	Report  int    `mapstructure:"report" validate:"gte=1"` // seconds
	Data    string `mapstructure:"data"`
	Iterate bool   `mapstructure:"iterate"`

	SQL    string   `mapstructure:"sql"`
	Params []string // semicolon-separated override, already split

	// Extra holds every other -property key=value pair verbatim, so
	// datasource-specific properties pass through unexamined (spec §4.8:
	// "Construct a shared datasource from the full property bag").
	Extra map[string]string
}

// Defaults returns a Bag populated with every spec §3 default, with the
// three required fields left empty (caller must supply them).
func Defaults() Bag {
	return Bag{
		Threads: 10,
		Time:    1,
		Batch:   1,
		Load:    95,
		Report:  1,
		SQL:     `SELECT * FROM User.Teams WHERE year < ?{int,1910,2010}`,
		Extra:   map[string]string{},
	}
}

var validate = validator.New()

// Validate applies spec §4.8's Engine Supervisor validation rules: shape
// constraints via struct tags (required/gte), then the cross-field rules
// validator cannot express.
func Validate(b *Bag) error {
	if err := validate.Struct(b); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	if b.Rate > 0 {
		if b.Rate*b.Time < 2*b.Threads {
			return errors.Errorf("rate (%d) * time (%d) must be >= 2 * threads (%d)", b.Rate, b.Time, b.Threads)
		}
	}

	if b.Load != 0 && (b.Load < 1 || b.Load > 100) {
		return errors.Errorf("load (%d) must be in [1,100]", b.Load)
	}

	return nil
}

// RateAndLoadBothSet reports whether the caller configured both pacing
// strategies, in which case load is ignored (spec §4.8: "if both rate and
// load set, warn that load is ignored").
func (b *Bag) RateAndLoadBothSet() bool {
	return b.Rate > 0 && b.Load != 0
}

// ResolveVariables performs the single-pass ${name} substitution spec §6
// and §9 Open Question (b) require: every value is scanned once against the
// merged bag (represented here as a flat map of every recognised option plus
// Extra); a substituted value is never re-scanned for further ${...}
// references.
func ResolveVariables(values map[string]string) map[string]string {
	resolved := make(map[string]string, len(values))
	for k, v := range values {
		resolved[k] = substituteOnce(v, values)
	}
	return resolved
}

func substituteOnce(v string, values map[string]string) string {
	var out strings.Builder
	i := 0
	for i < len(v) {
		start := strings.Index(v[i:], "${")
		if start < 0 {
			out.WriteString(v[i:])
			break
		}
		start += i
		out.WriteString(v[i:start])
		end := strings.Index(v[start:], "}")
		if end < 0 {
			out.WriteString(v[start:])
			break
		}
		end += start
		name := v[start+2 : end]
		if val, ok := values[name]; ok {
			out.WriteString(val) // not re-scanned: single pass
		} else {
			out.WriteString(v[start : end+1])
		}
		i = end + 1
	}
	return out.String()
}

// ToBag converts a flat key=value map (already variable-resolved) into a
// Bag, applying Defaults() first so options absent from values keep their
// default and every recognised key overrides it. Unknown keys are collected
// into Extra (spec §6: "-property name=value merges an arbitrary key into
// the property bag").
func ToBag(values map[string]string) (Bag, error) {
	b := Defaults()
	recognised := map[string]bool{
		"url": true, "user": true, "password": true, "threads": true,
		"time": true, "batch": true, "rate": true, "load": true,
		"report": true, "data": true, "iterate": true, "sql": true,
		"params": true,
	}

	for k, v := range values {
		if !recognised[k] {
			b.Extra[k] = v
			continue
		}
		if err := assign(&b, k, v); err != nil {
			return Bag{}, errors.Wrapf(err, "option %q", k)
		}
	}
	return b, nil
}

func assign(b *Bag, key, v string) error {
	switch key {
	case "url":
		b.URL = v
	case "user":
		b.User = v
	case "password":
		b.Password = v
	case "threads":
		return assignInt(&b.Threads, v)
	case "time":
		return assignInt(&b.Time, v)
	case "batch":
		return assignInt(&b.Batch, v)
	case "rate":
		return assignInt(&b.Rate, v)
	case "load":
		return assignInt(&b.Load, v)
	case "report":
		return assignInt(&b.Report, v)
	case "data":
		b.Data = v
	case "iterate":
		bv, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "parsing boolean value %q", v)
		}
		b.Iterate = bv
	case "sql":
		b.SQL = v
	case "params":
		b.Params = strings.Split(v, ";")
	}
	return nil
}

func assignInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return errors.Wrapf(err, "parsing integer value %q", v)
	}
	*dst = n
	return nil
}

// Render formats the resolved bag as one key=value line per option, in the
// same shape -config expects as input — so -check's output is valid input
// to a future -config (a supplemented feature; spec.md names -check but
// does not fix its output shape).
func Render(b Bag) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "url=%s\n", b.URL)
	fmt.Fprintf(&sb, "user=%s\n", b.User)
	fmt.Fprintf(&sb, "password=%s\n", "********")
	fmt.Fprintf(&sb, "threads=%d\n", b.Threads)
	fmt.Fprintf(&sb, "time=%d\n", b.Time)
	fmt.Fprintf(&sb, "batch=%d\n", b.Batch)
	if b.Rate > 0 {
		fmt.Fprintf(&sb, "rate=%d\n", b.Rate)
	}
	fmt.Fprintf(&sb, "load=%d\n", b.Load)
	fmt.Fprintf(&sb, "report=%d\n", b.Report)
	if b.Data != "" {
		fmt.Fprintf(&sb, "data=%s\n", b.Data)
	}
	fmt.Fprintf(&sb, "iterate=%t\n", b.Iterate)
	fmt.Fprintf(&sb, "sql=%s\n", b.SQL)
	if len(b.Params) > 0 {
		fmt.Fprintf(&sb, "params=%s\n", strings.Join(b.Params, ";"))
	}
	for k, v := range b.Extra {
		fmt.Fprintf(&sb, "%s=%s\n", k, v)
	}
	return sb.String()
}
