package hierarchy

import (
	"context"
	"errors"
	"fmt"

	"eduetl/internal/record"
)

// ChildSource is the collaborator that answers "which records have this
// parent?" (a WHERE parent_id = ? query for the SQL backends).
type ChildSource interface {
	ChildrenOf(ctx context.Context, parentID any) ([]record.Record, error)
}

// IndexFrom builds an Index covering root and all of its descendants by
// repeatedly asking src for children, breadth-first.
//
// The returned Index contains only the descendants (root itself is not
// fetched); flatten it with the same rootID. A child whose id was already
// loaded is not expanded again, and the duplicate sighting is reported as a
// *CycleError in the joined error. Source errors are fatal and returned
// immediately.
func IndexFrom(ctx context.Context, src ChildSource, rootID any) (*Index, error) {
	root := record.Key(rootID)
	if root == "" {
		return NewIndex(nil), nil
	}

	var (
		all  []record.Record
		errs []error
	)
	seen := map[string]bool{root: true}
	queue := []any{rootID}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parent := queue[0]
		queue = queue[1:]

		kids, err := src.ChildrenOf(ctx, parent)
		if err != nil {
			return nil, fmt.Errorf("children of %s: %w", record.Key(parent), err)
		}
		for _, k := range kids {
			id := record.Key(k.ID())
			if id != "" && seen[id] {
				errs = append(errs, &CycleError{ID: id, Parent: record.Key(parent)})
				continue
			}
			all = append(all, k)
			if id != "" {
				seen[id] = true
				queue = append(queue, k.ID())
			}
		}
	}

	return NewIndex(all), errors.Join(errs...)
}
