package hypertrie

import (
	"sort"

	"github.com/aleksaelezovic/tentris-go/internal/dictionary"
)

// Build constructs a depth-deep hypertrie bottom-up from a set of distinct
// tuples, each of length depth. It is the basis for internal/loader, which
// feeds it the full, deduplicated set of dictionary-interned triples in one
// call, generalizing the
// teacher's insertQuadInTxn batch-insert shape (internal/store/store.go)
// from writing three flat on-disk permutation indexes to building recursive
// in-memory nodes.
//
// Callers must not pass duplicate tuples; Build does not deduplicate.
func Build(tuples [][]dictionary.TermID, depth int) *Node {
	if depth == 0 {
		return leaf(len(tuples) > 0)
	}
	if len(tuples) == 0 {
		return &Node{depth: depth, dims: make([]dimIndex, depth)}
	}

	n := &Node{depth: depth, dims: make([]dimIndex, depth), size: uint64(len(tuples))}
	for dim := 0; dim < depth; dim++ {
		groups := make(map[dictionary.TermID][][]dictionary.TermID)
		for _, tup := range tuples {
			key := tup[dim]
			rest := make([]dictionary.TermID, 0, depth-1)
			rest = append(rest, tup[:dim]...)
			rest = append(rest, tup[dim+1:]...)
			groups[key] = append(groups[key], rest)
		}

		order := make([]dictionary.TermID, 0, len(groups))
		for k := range groups {
			order = append(order, k)
		}
		sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

		children := make(map[dictionary.TermID]*Node, len(groups))
		for _, k := range order {
			children[k] = Build(groups[k], depth-1)
		}
		n.dims[dim] = dimIndex{order: order, children: children}
	}
	return n
}
