// Package hierarchy flattens parent-referencing record sets (course trees)
// into pre-order sequences.
//
// The index is built once from a fully materialized record set and can then
// be flattened from any number of roots. Traversal keeps a visited set so a
// corrupt parent graph produces a *CycleError instead of an endless walk.
package hierarchy

import (
	"errors"

	"eduetl/internal/record"
)

// Index maps a parent key to its children, in input order.
type Index struct {
	children map[string][]record.Record
	byID     map[string]record.Record
	order    []record.Record
}

// NewIndex builds the children-by-parent index for records.
//
// Edge cases:
//   - Records without an id are kept in the ordering but can never be a parent.
//   - A parent_id that matches no record id does not fail; Roots reports such
//     records as additional roots.
//   - Duplicate ids: the first record wins for id lookup; all of them are
//     still listed as children of their parent.
func NewIndex(records []record.Record) *Index {
	ix := &Index{
		children: make(map[string][]record.Record),
		byID:     make(map[string]record.Record, len(records)),
		order:    records,
	}
	for _, r := range records {
		if id := record.Key(r.ID()); id != "" {
			if _, dup := ix.byID[id]; !dup {
				ix.byID[id] = r
			}
		}
		if pid := record.Key(r.ParentID()); pid != "" {
			ix.children[pid] = append(ix.children[pid], r)
		}
	}
	return ix
}

// Lookup returns the record with the given id.
func (ix *Index) Lookup(id any) (record.Record, bool) {
	r, ok := ix.byID[record.Key(id)]
	return r, ok
}

// Roots returns records whose parent_id is nil or points at an id that is not
// in the index, in input order.
func (ix *Index) Roots() []record.Record {
	var out []record.Record
	for _, r := range ix.order {
		if r.IsRoot() {
			out = append(out, r)
			continue
		}
		if _, ok := ix.byID[record.Key(r.ParentID())]; !ok {
			out = append(out, r)
		}
	}
	return out
}

// Flatten returns every descendant of rootID in pre-order: each child is
// followed immediately by its own subtree before the next sibling is visited.
// The root record itself is not included; callers prepend it when they want it.
//
// An unknown rootID yields an empty result and a nil error.
//
// When a child id has already been visited, that child's subtree is skipped,
// a *CycleError is recorded and traversal carries on with the remaining
// siblings. The partial result is returned together with all cycle errors
// joined.
func (ix *Index) Flatten(rootID any) ([]record.Record, error) {
	root := record.Key(rootID)
	if root == "" {
		return nil, nil
	}

	var (
		out  []record.Record
		errs []error
	)
	visited := map[string]bool{root: true}

	var walk func(parent string)
	walk = func(parent string) {
		for _, child := range ix.children[parent] {
			id := record.Key(child.ID())
			if id != "" && visited[id] {
				errs = append(errs, &CycleError{ID: id, Parent: parent})
				continue
			}
			if id != "" {
				visited[id] = true
			}
			out = append(out, child)
			if id != "" {
				walk(id)
			}
		}
	}
	walk(root)

	return out, errors.Join(errs...)
}

// Subtree returns the root record followed by its flattened descendants.
// ok is false when rootID is not present in the index.
func (ix *Index) Subtree(rootID any) (rows []record.Record, ok bool, err error) {
	root, found := ix.Lookup(rootID)
	if !found {
		return nil, false, nil
	}
	desc, err := ix.Flatten(rootID)
	rows = make([]record.Record, 0, len(desc)+1)
	rows = append(rows, root)
	rows = append(rows, desc...)
	return rows, true, err
}
