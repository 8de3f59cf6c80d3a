// Package hypertrie implements the boolean hypertrie: a recursive,
// depth-indexed boolean tensor over dictionary.TermIDs with cached
// per-dimension cardinality. Build creates the children of every dimension
// separately; identical subtries are not shared between parents.
//
// The recursive structure generalizes the teacher's flat SPO/POS/OSP
// permutation indexes (internal/store/store.go in aleksaelezovic/trigo):
// where the teacher keeps three on-disk indexes so any two bound positions
// of a triple pattern hit a prefix scan, a Node here keeps one child index
// per dimension at every level, recursively, so the same "pick the index
// whose bound prefix you have" trick applies at any depth and after any
// number of slices.
package hypertrie

import (
	"sort"

	"github.com/aleksaelezovic/tentris-go/internal/dictionary"
)

// Wildcard marks an unfixed dimension in a Key. It reuses dictionary.TermID's
// reserved zero value (no real interned term is ever assigned id 0), so a Key
// is just a plain []dictionary.TermID with no extra tagging.
const Wildcard dictionary.TermID = 0

// Key fixes zero or more dimensions of a Node to concrete TermIDs; the rest
// are Wildcard. len(Key) must equal the Node's depth.
type Key []dictionary.TermID

// dimIndex is the child index for one dimension: a map for O(1) lookup plus
// a separately-maintained ascending key order for deterministic, stable
// iteration (Go map iteration order is randomized per run, which would
// violate the "stable within a node's lifetime" requirement on Keys).
type dimIndex struct {
	order    []dictionary.TermID
	children map[dictionary.TermID]*Node
}

// Node is a boolean hypertrie of some depth d >= 0. A depth-0 Node is one of
// the two singletons True or False. A depth-d Node (d >= 1) holds one
// dimIndex per dimension, each mapping a TermID to the (d-1)-depth Node
// obtained by fixing that dimension to that ID.
type Node struct {
	depth   int
	boolVal bool // meaningful only when depth == 0
	dims    []dimIndex
	size    uint64
}

// True and False are the two depth-0 hypertries.
var (
	True  = &Node{depth: 0, boolVal: true}
	False = &Node{depth: 0, boolVal: false}
)

func leaf(v bool) *Node {
	if v {
		return True
	}
	return False
}

// Depth returns the Node's tensor rank.
func (n *Node) Depth() int { return n.depth }

// IsBool reports whether this Node is one of the two depth-0 constants.
func (n *Node) IsBool() bool { return n.depth == 0 }

// Bool returns the truth value of a depth-0 Node. Only valid when IsBool().
func (n *Node) Bool() bool { return n.boolVal }

// Size returns the number of true cells across all dimensions. O(1): cached
// at build time.
func (n *Node) Size() uint64 {
	if n.depth == 0 {
		if n.boolVal {
			return 1
		}
		return 0
	}
	return n.size
}

// Empty reports whether the Node has no true cells.
func (n *Node) Empty() bool { return n.Size() == 0 }

// Card returns the number of distinct IDs occurring in dimension dim. O(1).
func (n *Node) Card(dim int) uint64 {
	return uint64(len(n.dims[dim].order))
}

// Keys returns the distinct IDs occurring in dimension dim, in a fixed order
// that does not change for the lifetime of this Node.
func (n *Node) Keys(dim int) []dictionary.TermID {
	return n.dims[dim].order
}

// ChildAt returns the (d-1)-depth Node obtained by fixing dimension dim to
// id, or (nil, false) if id does not occur in that dimension.
func (n *Node) ChildAt(dim int, id dictionary.TermID) (*Node, bool) {
	c, ok := n.dims[dim].children[id]
	return c, ok
}

// Slice fixes the dimensions of key that are not Wildcard, returning the
// resulting Node. False is returned as soon as a fixed ID does not occur in
// its dimension; True or False is returned when every dimension was fixed;
// otherwise the result's depth equals the number of wildcards in key.
// len(key) must equal n.Depth().
func (n *Node) Slice(key Key) *Node {
	if n.depth == 0 {
		return n
	}
	fixed := -1
	for i, id := range key {
		if id != Wildcard {
			fixed = i
			break
		}
	}
	if fixed == -1 {
		// All wildcards: identity slice.
		return n
	}

	child, ok := n.ChildAt(fixed, key[fixed])
	if !ok {
		return False
	}

	rest := make(Key, 0, len(key)-1)
	rest = append(rest, key[:fixed]...)
	rest = append(rest, key[fixed+1:]...)
	return child.Slice(rest)
}

// Tuples materializes every true cell of n as a tuple of TermIDs, in the
// dimension-0 key order. Used by Diagonal, which needs to re-key tuples
// across a set of contracted dimensions; not used by the streaming Einsum
// join, which slices instead of materializing.
func (n *Node) Tuples() [][]dictionary.TermID {
	if n.depth == 0 {
		if n.boolVal {
			return [][]dictionary.TermID{{}}
		}
		return nil
	}
	var out [][]dictionary.TermID
	for _, id := range n.dims[0].order {
		child := n.dims[0].children[id]
		for _, rest := range child.Tuples() {
			tuple := make([]dictionary.TermID, 0, n.depth)
			tuple = append(tuple, id)
			tuple = append(tuple, rest...)
			out = append(out, tuple)
		}
	}
	return out
}

// Diagonal contracts the dimensions named by dims onto a single dimension,
// placed at the position of the smallest index in dims: the result has a
// true cell iff the source cell had equal TermIDs across every dimension in
// dims. len(dims) must be >= 2 and every entry < n.Depth().
func (n *Node) Diagonal(dims []int) *Node {
	sorted := append([]int(nil), dims...)
	sort.Ints(sorted)
	minDim := sorted[0]
	remove := make(map[int]bool, len(sorted))
	for _, d := range sorted {
		remove[d] = true
	}

	var projected [][]dictionary.TermID
	for _, tup := range n.Tuples() {
		v := tup[minDim]
		agree := true
		for _, d := range sorted[1:] {
			if tup[d] != v {
				agree = false
				break
			}
		}
		if !agree {
			continue
		}
		newTuple := make([]dictionary.TermID, 0, n.depth-len(sorted)+1)
		for idx, val := range tup {
			if idx == minDim {
				newTuple = append(newTuple, val)
				continue
			}
			if remove[idx] {
				continue
			}
			newTuple = append(newTuple, val)
		}
		projected = append(projected, newTuple)
	}
	return Build(projected, n.depth-len(sorted)+1)
}
