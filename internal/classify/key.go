package classify

// Key is the partition a record is sorted into: a label plus an optional
// sub-label (folder path + workbook name, grade + nothing, ...).
type Key struct {
	Label string
	Sub   string

	review bool
}

// Unclassified is returned when no rule matches. It never compares equal to a
// key produced by a rule, even one labelled "unclassified".
var Unclassified = Key{Label: "unclassified", review: true}

// IsUnclassified reports whether k is the Unclassified sentinel.
func (k Key) IsUnclassified() bool { return k.review }

func (k Key) String() string {
	if k.Sub == "" {
		return k.Label
	}
	if k.Label == "" {
		return k.Sub
	}
	return k.Label + "/" + k.Sub
}
