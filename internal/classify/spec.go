package classify

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// RuleSpec is the YAML form of one rule (or, with contains_any, of one rule
// per needle sharing the same key). Exactly one of Contains, ContainsAny,
// Regex or Structural must be set.
//
//	rules:
//	  - contains_any: ["plant kingdom", "animal kingdom"]
//	    label: "11"
//	  - regex: 'c(\d+)q'
//	    label: 'Chapter-$1'
//	  - structural: url_folders
type RuleSpec struct {
	Contains    string   `yaml:"contains,omitempty"`
	ContainsAny []string `yaml:"contains_any,omitempty"`
	Regex       string   `yaml:"regex,omitempty"`
	Structural  string   `yaml:"structural,omitempty"`

	Label       string `yaml:"label,omitempty"`
	Sub         string `yaml:"sub,omitempty"`
	PrimaryOnly bool   `yaml:"primary_only,omitempty"`
}

// RuleFile is the top-level YAML document.
type RuleFile struct {
	Rules []RuleSpec `yaml:"rules"`
}

var extractors = map[string]Extractor{
	"url_folders": URLFolders,
}

// Build turns specs into rules, preserving order.
func Build(specs []RuleSpec) ([]Rule, error) {
	var out []Rule
	for i, s := range specs {
		rs, err := s.build()
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		out = append(out, rs...)
	}
	return out, nil
}

func (s RuleSpec) build() ([]Rule, error) {
	set := 0
	for _, b := range []bool{s.Contains != "", len(s.ContainsAny) > 0, s.Regex != "", s.Structural != ""} {
		if b {
			set++
		}
	}
	if set != 1 {
		return nil, errors.New("exactly one of contains, contains_any, regex, structural is required")
	}

	key := Key{Label: s.Label, Sub: s.Sub}
	finish := func(r Rule) Rule {
		if s.PrimaryOnly {
			return r.Primary()
		}
		return r
	}

	switch {
	case s.Contains != "":
		if s.Label == "" {
			return nil, errors.New("contains rule needs a label")
		}
		return []Rule{finish(Contains(s.Contains, key))}, nil

	case len(s.ContainsAny) > 0:
		if s.Label == "" {
			return nil, errors.New("contains_any rule needs a label")
		}
		out := make([]Rule, 0, len(s.ContainsAny))
		for _, n := range s.ContainsAny {
			out = append(out, finish(Contains(n, key)))
		}
		return out, nil

	case s.Regex != "":
		if s.Label == "" {
			return nil, errors.New("regex rule needs a label")
		}
		r, err := Regex(s.Regex, key)
		if err != nil {
			return nil, err
		}
		return []Rule{finish(r)}, nil

	default:
		fn, ok := extractors[s.Structural]
		if !ok {
			return nil, fmt.Errorf("unknown structural extractor %q", s.Structural)
		}
		return []Rule{finish(Structural(s.Structural, fn))}, nil
	}
}

// ParseRules decodes a YAML rule file.
func ParseRules(r io.Reader) ([]Rule, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f RuleFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return Build(f.Rules)
}

// LoadRules reads a YAML rule file from disk.
func LoadRules(path string) ([]Rule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(bytes.NewReader(b))
}
