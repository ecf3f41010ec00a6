package hierarchy

import (
	"errors"
	"fmt"
)

// ErrCycleDetected is matched (via errors.Is) by every *CycleError.
var ErrCycleDetected = errors.New("hierarchy: cycle detected")

// CycleError names the id that was reached a second time during traversal.
// Parent is the record whose child list led back to ID.
type CycleError struct {
	ID     string
	Parent string
}

func (e *CycleError) Error() string {
	if e.Parent == "" {
		return fmt.Sprintf("hierarchy: cycle detected at id=%s", e.ID)
	}
	return fmt.Sprintf("hierarchy: cycle detected at id=%s (via parent id=%s)", e.ID, e.Parent)
}

func (e *CycleError) Is(target error) bool { return target == ErrCycleDetected }

// CycleIDs extracts the offending ids from an error returned by Flatten or
// IndexFrom. It returns nil when err carries no cycle.
func CycleIDs(err error) []string {
	if err == nil {
		return nil
	}
	var out []string
	var walk func(error)
	walk = func(e error) {
		switch x := e.(type) {
		case *CycleError:
			out = append(out, x.ID)
		case interface{ Unwrap() []error }:
			for _, inner := range x.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			if inner := x.Unwrap(); inner != nil {
				walk(inner)
			}
		}
	}
	walk(err)
	return out
}
