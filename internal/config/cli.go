package config

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// ParsedArgs is the outcome of scanning argv per spec §6: the merged,
// not-yet-variable-resolved property bag, plus the two flags that short
// circuit workload construction entirely.
type ParsedArgs struct {
	Values map[string]string
	Check  bool
	Help   bool
}

// recognisedOption lists the same option names ToBag recognises, so an unknown
// `-opt` is caught at the scanner, not silently dropped into Extra — spec
// §6: "Every option name must be a member of the enum in §3; unknown options
// are fatal."
var recognisedOption = map[string]bool{
	"url": true, "user": true, "password": true, "threads": true,
	"time": true, "batch": true, "rate": true, "load": true,
	"report": true, "data": true, "iterate": true, "sql": true,
	"params": true,
}

// ParseArgs scans a bespoke CLI shape — cobra's own flag parsing is disabled
// for this command because spec §6's grammar (bare `-opt` ⇒ true,
// `-opt=value` and `-opt value` both legal, `-property name=value`) doesn't
// map onto cobra/pflag's own flag conventions. `-config path` is loaded via
// viper's properties format and merged first, so a same-named CLI argument
// always wins on conflict, per spec §6: "-config path loads a key=value file
// then command-line wins on conflict."
func ParseArgs(argv []string) (ParsedArgs, error) {
	var out ParsedArgs
	out.Values = map[string]string{}

	var configPath string
	cliValues := map[string]string{}

	i := 0
	for i < len(argv) {
		tok := argv[i]
		i++

		if tok == "-help" || tok == "--help" {
			out.Help = true
			continue
		}
		if tok == "-check" || tok == "--check" {
			out.Check = true
			continue
		}

		name, inlineValue, hasInline := splitOption(tok)

		if name == "config" {
			v, rest, err := takeValue(inlineValue, hasInline, argv, &i)
			if err != nil {
				return ParsedArgs{}, err
			}
			_ = rest
			configPath = v
			continue
		}

		if name == "property" {
			v, _, err := takeValue(inlineValue, hasInline, argv, &i)
			if err != nil {
				return ParsedArgs{}, err
			}
			k, val, err := splitProperty(v)
			if err != nil {
				return ParsedArgs{}, err
			}
			cliValues[k] = val
			continue
		}

		if !recognisedOption[name] {
			return ParsedArgs{}, errors.Errorf("unknown option %q", name)
		}

		if !hasInline {
			// Bare `-opt` with no attached value is `-opt=true` (spec §6)
			// unless the next token is itself a value, not another option.
			if i < len(argv) && !looksLikeOption(argv[i]) {
				cliValues[name] = argv[i]
				i++
				continue
			}
			cliValues[name] = "true"
			continue
		}
		cliValues[name] = inlineValue
	}

	if out.Help {
		return out, nil
	}

	fileValues := map[string]string{}
	if configPath != "" {
		v, err := loadPropertiesFile(configPath)
		if err != nil {
			return ParsedArgs{}, errors.Wrapf(err, "loading -config %q", configPath)
		}
		fileValues = v
	}

	merged := map[string]string{}
	for k, v := range fileValues {
		merged[k] = v
	}
	for k, v := range cliValues { // command-line wins on conflict
		merged[k] = v
	}
	out.Values = merged
	return out, nil
}

// splitOption strips a leading `-`/`--` and splits `name=value` or
// `name:value`; returns hasInline=false when tok carries no `=`/`:`.
func splitOption(tok string) (name, value string, hasInline bool) {
	tok = strings.TrimPrefix(tok, "--")
	tok = strings.TrimPrefix(tok, "-")
	if idx := strings.IndexAny(tok, "=:"); idx >= 0 {
		return tok[:idx], tok[idx+1:], true
	}
	return tok, "", false
}

func looksLikeOption(tok string) bool {
	return strings.HasPrefix(tok, "-")
}

// takeValue returns the option's value, whether inline (`-opt=value`) or the
// following token (`-opt value`).
func takeValue(inline string, hasInline bool, argv []string, i *int) (string, bool, error) {
	if hasInline {
		return inline, true, nil
	}
	if *i >= len(argv) {
		return "", false, errors.New("missing value")
	}
	v := argv[*i]
	*i++
	return v, false, nil
}

// splitProperty parses `-property name=value` (or `name:value`).
func splitProperty(raw string) (string, string, error) {
	idx := strings.IndexAny(raw, "=:")
	if idx < 0 {
		return "", "", errors.Errorf("malformed -property %q, want name=value", raw)
	}
	return raw[:idx], raw[idx+1:], nil
}

// loadPropertiesFile reads a key=value file via viper's properties format.
func loadPropertiesFile(path string) (map[string]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("properties")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	out := map[string]string{}
	for _, k := range v.AllKeys() {
		out[k] = fmt.Sprintf("%v", v.Get(k))
	}
	return out, nil
}
