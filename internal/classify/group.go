package classify

// Group holds members per key. Keys and members within a key keep the order
// in which they were first added; nothing is ever re-sorted, so generated
// files come out identical across re-runs.
type Group[T any] struct {
	keys    []Key
	members map[Key][]T
}

func NewGroup[T any]() *Group[T] {
	return &Group[T]{members: make(map[Key][]T)}
}

// Add appends v under k.
func (g *Group[T]) Add(k Key, v T) {
	if _, ok := g.members[k]; !ok {
		g.keys = append(g.keys, k)
	}
	g.members[k] = append(g.members[k], v)
}

// Keys returns the keys in first-seen order.
func (g *Group[T]) Keys() []Key { return append([]Key(nil), g.keys...) }

// Get returns the members of k in insertion order.
func (g *Group[T]) Get(k Key) []T { return g.members[k] }

// Len is the number of distinct keys.
func (g *Group[T]) Len() int { return len(g.keys) }

// Total is the number of members across all keys.
func (g *Group[T]) Total() int {
	n := 0
	for _, k := range g.keys {
		n += len(g.members[k])
	}
	return n
}

// Each calls fn for every key in order.
func (g *Group[T]) Each(fn func(k Key, members []T)) {
	for _, k := range g.keys {
		fn(k, g.members[k])
	}
}

// Split returns two groups: one without the Unclassified key and one holding
// only it.
func (g *Group[T]) Split() (classified, review *Group[T]) {
	classified, review = NewGroup[T](), NewGroup[T]()
	for _, k := range g.keys {
		dst := classified
		if k.IsUnclassified() {
			dst = review
		}
		for _, v := range g.members[k] {
			dst.Add(k, v)
		}
	}
	return classified, review
}

// GroupBy classifies every item with keyOf and groups the results.
//
// When keyOf returns an error the item is still added under the returned key
// (normally Unclassified) and onErr, if set, is told about it with the item's
// zero-based position.
func GroupBy[T any](items []T, keyOf func(T) (Key, error), onErr func(i int, item T, err error)) *Group[T] {
	g := NewGroup[T]()
	for i, it := range items {
		k, err := keyOf(it)
		if err != nil && onErr != nil {
			onErr(i, it, err)
		}
		g.Add(k, it)
	}
	return g
}
