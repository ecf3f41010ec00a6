// Package classify sorts records into groups with an ordered, declarative
// rule list and keeps the groups in first-seen order.
//
// Rule order is part of the contract: the first rule that matches any of the
// supplied text sources wins, so reordering a rule list changes behavior.
package classify

import "errors"

// Classifier evaluates an ordered rule list.
type Classifier struct {
	rules []Rule
}

// New returns a Classifier over rules, evaluated in the given order.
func New(rules ...Rule) *Classifier {
	return &Classifier{rules: append([]Rule(nil), rules...)}
}

// Classify returns the key of the first rule that matches one of texts.
//
// Rules are the outer loop and text sources the inner one, so a later rule
// never beats an earlier rule even if it matches an earlier source.
//
// When nothing matches, Unclassified is returned. If a structural rule failed
// along the way, its ErrMalformedRecord error is returned with Unclassified so
// the caller can log the record.
func (c *Classifier) Classify(texts ...string) (Key, error) {
	normalized := make([]string, len(texts))
	for i, t := range texts {
		normalized[i] = Normalize(t)
	}

	var errs []error
	for _, r := range c.rules {
		for i, raw := range texts {
			if r.PrimaryOnly && i > 0 {
				break
			}
			k, ok, err := r.match(raw, normalized[i])
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if ok {
				return k, nil
			}
		}
	}
	return Unclassified, errors.Join(errs...)
}
