// Package record defines the opaque row type shared by every source, job and
// sink in this module.
//
// A Record is read once from a source, held in memory for one batch run and
// discarded after output is written. Only a handful of fields carry meaning
// to the core (id, parent_id and whatever string field a job classifies on);
// everything else is passed through untouched.
package record

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	FieldID       = "id"
	FieldParentID = "parent_id"
)

// Record maps field name to value.
type Record map[string]any

// ID returns the raw "id" value (nil if absent).
func (r Record) ID() any { return r[FieldID] }

// ParentID returns the raw "parent_id" value. A nil result marks a root.
func (r Record) ParentID() any { return r[FieldParentID] }

// IsRoot reports whether the record has no parent reference at all.
// Dangling parent references are resolved by the hierarchy index, not here.
func (r Record) IsRoot() bool { return Key(r.ParentID()) == "" }

// String returns field as a trimmed string, or "" when the field is missing.
func (r Record) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	return Key(v)
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Values projects the record onto columns, in order. Missing fields become nil.
func (r Record) Values(columns []string) []any {
	out := make([]any, len(columns))
	for i, c := range columns {
		out[i] = r[c]
	}
	return out
}

// Key converts an id-like value to its canonical string form so that ids read
// from different drivers compare equal (int64(7), "7" and []byte("7") all
// become "7").
//
// nil maps to "", which callers treat as "no id".
func Key(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		// JSON numbers decoded without UseNumber land here.
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
