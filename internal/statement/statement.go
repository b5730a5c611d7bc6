// Package statement implements the Statement Template (spec component C3):
// parsing the input SQL, extracting embedded parameter specs, and emitting
// placeholder-only SQL plus an ordered list of generators.
package statement

import (
	"math/rand"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/elchinoo/sqlstorm/internal/generator"
)

// Verb is the statement's leading SQL keyword, used to dispatch execution in
// the SQL Worker (C6).
type Verb string

const (
	VerbSelect  Verb = "SELECT"
	VerbInsert  Verb = "INSERT"
	VerbUpdate  Verb = "UPDATE"
	VerbDelete  Verb = "DELETE"
	VerbExecute Verb = "EXECUTE"
)

var validVerbs = map[Verb]bool{
	VerbSelect:  true,
	VerbInsert:  true,
	VerbUpdate:  true,
	VerbDelete:  true,
	VerbExecute: true,
}

// paramSite matches a parameter placeholder: a bare "?" or "?{...}" where the
// braces hold the inline spec body. The body itself must not contain "{",
// per spec §4.3's regex \?(\{[^{]+\})?.
var paramSite = regexp.MustCompile(`\?(\{[^{]+\})?`)

// Template is immutable after construction: rewritten SQL with every
// parameter site collapsed to a single "?", the leading verb, and the
// ordered generators that produce bind values for each site in turn. The
// count of "?" placeholders in RewrittenSQL always equals len(Generators).
type Template struct {
	RewrittenSQL string
	Verb         Verb
	Generators   []generator.Generator
}

// Parse builds a Template from raw SQL. paramsOverride, if non-nil, is the
// semicolon-separated list of specifier bodies from the `params` config
// option; the k-th override (if present) takes priority over the k-th
// inline `{...}` body (spec §4.3). table is passed through to any `value`
// generators; rng must be private to the calling worker (spec §9).
func Parse(raw string, paramsOverride []string, table *generator.DataTable, rng *rand.Rand) (*Template, error) {
	verb, err := parseVerb(raw)
	if err != nil {
		return nil, err
	}

	var generators []generator.Generator
	var buildErr error
	k := 0

	rewritten := paramSite.ReplaceAllStringFunc(raw, func(match string) string {
		if buildErr != nil {
			return "?"
		}
		var body string
		if k < len(paramsOverride) && paramsOverride[k] != "" {
			body = paramsOverride[k]
		} else if len(match) > 1 {
			// match is "?{...}"; strip the leading "?" to get "{...}".
			body = match[1:]
		} else {
			buildErr = errors.Errorf("parameter site %d has no inline spec and no params override", k)
			return "?"
		}

		spec, perr := generator.ParseSpec(body)
		if perr != nil {
			buildErr = errors.Wrapf(perr, "parsing parameter site %d", k)
			return "?"
		}
		gen, gerr := generator.New(spec, table, rng)
		if gerr != nil {
			buildErr = errors.Wrapf(gerr, "constructing generator for parameter site %d", k)
			return "?"
		}
		generators = append(generators, gen)
		k++
		return "?"
	})

	if buildErr != nil {
		return nil, buildErr
	}

	return &Template{
		RewrittenSQL: rewritten,
		Verb:         verb,
		Generators:   generators,
	}, nil
}

// parseVerb extracts the first whitespace-delimited token, upper-cases it,
// and validates it against the recognised verb set. Per spec §9 Open
// Question (c), leading comments or unusual whitespace that cause
// misclassification are a fatal input error, not something this parser
// tries to see through.
func parseVerb(raw string) (Verb, error) {
	trimmed := strings.TrimSpace(raw)
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return "", errors.New("empty SQL statement")
	}
	verb := Verb(strings.ToUpper(fields[0]))
	if !validVerbs[verb] {
		return "", errors.Errorf("unrecognised SQL verb %q", fields[0])
	}
	return verb, nil
}
