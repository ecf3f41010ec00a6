package classify

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedRecord is returned when a record's classifiable field cannot be
// interpreted at all (empty or unparseable URL, ...). The record is still
// routed to Unclassified by Classify.
var ErrMalformedRecord = errors.New("malformed record")

// Malformed wraps reason as an ErrMalformedRecord.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedRecord, fmt.Sprintf(format, args...))
}

// Kind tags the variant held by a Rule.
type Kind int

const (
	KindContains Kind = iota + 1
	KindRegex
	KindStructural
)

func (k Kind) String() string {
	switch k {
	case KindContains:
		return "contains"
	case KindRegex:
		return "regex"
	case KindStructural:
		return "structural"
	default:
		return "unknown"
	}
}

// Extractor derives a key directly from the raw (un-normalized) text.
type Extractor func(raw string) (Key, error)

// Rule is one entry of an ordered rule list.
//
// Contains and Regex rules test the normalized text and yield Key. Regex keys
// may reference submatches ($1, ${name}) in Label and Sub. Structural rules
// always apply; their Extractor builds the key from the raw text.
type Rule struct {
	Kind    Kind
	Name    string
	Needle  string
	Pattern *regexp.Regexp
	Key     Key
	Extract Extractor

	// PrimaryOnly restricts the rule to the first text source passed to
	// Classify (typically the file name).
	PrimaryOnly bool
}

// Contains matches when the normalized text contains the normalized needle.
func Contains(needle string, key Key) Rule {
	n := Normalize(needle)
	return Rule{Kind: KindContains, Name: "contains:" + n, Needle: n, Key: key}
}

// Regex matches pattern against the normalized text.
func Regex(pattern string, key Key) (Rule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("classify: compile %q: %w", pattern, err)
	}
	return Rule{Kind: KindRegex, Name: "regex:" + pattern, Pattern: re, Key: key}, nil
}

// MustRegex is Regex for patterns known at compile time.
func MustRegex(pattern string, key Key) Rule {
	r, err := Regex(pattern, key)
	if err != nil {
		panic(err)
	}
	return r
}

// Structural applies fn to the raw text of every source.
func Structural(name string, fn Extractor) Rule {
	return Rule{Kind: KindStructural, Name: "structural:" + name, Extract: fn}
}

// Primary returns a copy of r restricted to the first text source.
func (r Rule) Primary() Rule {
	r.PrimaryOnly = true
	return r
}

func (r Rule) match(raw, normalized string) (Key, bool, error) {
	switch r.Kind {
	case KindContains:
		if r.Needle == "" || !strings.Contains(normalized, r.Needle) {
			return Key{}, false, nil
		}
		return r.Key, true, nil

	case KindRegex:
		if r.Pattern == nil {
			return Key{}, false, nil
		}
		m := r.Pattern.FindStringSubmatchIndex(normalized)
		if m == nil {
			return Key{}, false, nil
		}
		return Key{
			Label: expand(r.Pattern, r.Key.Label, normalized, m),
			Sub:   expand(r.Pattern, r.Key.Sub, normalized, m),
		}, true, nil

	case KindStructural:
		if r.Extract == nil {
			return Key{}, false, nil
		}
		k, err := r.Extract(raw)
		if err != nil {
			return Key{}, false, err
		}
		return k, true, nil

	default:
		return Key{}, false, nil
	}
}

func expand(re *regexp.Regexp, tmpl, src string, m []int) string {
	if !strings.Contains(tmpl, "$") {
		return tmpl
	}
	return string(re.ExpandString(nil, tmpl, src, m))
}
