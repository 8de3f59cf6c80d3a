// Package subscript implements the subscript and Operand Dependency Graph
// (ODG) that describe one einsum: which labels (query variables) occur in
// which operand positions, which labels are requested in the result, and
// how the label graph decomposes into independent sub-problems.
//
// The shape mirrors the teacher's join-plan construction
// (internal/sparql/optimizer/optimizer.go), reread as a label graph instead
// of a binary plan tree: where the teacher incrementally combines two
// triple patterns into a JoinPlan, a Subscript records the same
// co-occurrence information for all operands at once so an n-ary join can
// be planned in one pass instead of pairwise.
package subscript

import (
	"fmt"
	"sort"
)

// Label identifies a query variable inside a subscript. The evaluator
// supports at most 63 distinct labels per query.
type Label byte

// Modifier selects COUNTED (bindings carry a multiplicity) or DISTINCT
// (bindings are deduplicated, count forced to 1) semantics.
type Modifier int

const (
	Counted Modifier = iota
	Distinct
)

func (m Modifier) String() string {
	if m == Distinct {
		return "DISTINCT"
	}
	return "COUNTED"
}

// Occurrence names one slot where a label appears: operand OperandIndex,
// position Position within that operand's label sequence.
type Occurrence struct {
	OperandIndex int
	Position     int
}

// Subscript is the normalized description of an einsum: one label sequence
// per operand, the projection's label sequence, and the COUNTED/DISTINCT
// modifier.
type Subscript struct {
	OperandLabels [][]Label
	ResultLabels  []Label
	Modifier      Modifier
}

// PatternLabels is one triple pattern's variable positions, in
// subject-predicate-object order, with constant positions omitted (they are
// already resolved to slice-key literals before a Subscript is built).
type PatternLabels []Label

// FromPatterns builds a Subscript directly from per-pattern variable label
// sequences. Constant resolution and fresh-label assignment per distinct
// variable are the parser-adapter's job (pkg/bgp); this constructor
// only validates and wraps.
func FromPatterns(patterns []PatternLabels, resultLabels []Label, modifier Modifier) (*Subscript, error) {
	operandLabels := make([][]Label, len(patterns))
	for i, p := range patterns {
		operandLabels[i] = append([]Label(nil), p...)
	}
	return New(operandLabels, resultLabels, modifier)
}

// New validates and constructs a Subscript. Every label in resultLabels
// must occur in at least one operand.
func New(operandLabels [][]Label, resultLabels []Label, modifier Modifier) (*Subscript, error) {
	s := &Subscript{
		OperandLabels: operandLabels,
		ResultLabels:  resultLabels,
		Modifier:      modifier,
	}
	present := make(map[Label]bool)
	for _, ops := range operandLabels {
		for _, l := range ops {
			present[l] = true
		}
	}
	for _, l := range resultLabels {
		if !present[l] {
			return nil, fmt.Errorf("subscript: result label %q does not occur in any operand", rune(l))
		}
	}
	return s, nil
}

// occurrences indexes every slot each label appears in, across all operands.
func (s *Subscript) occurrences() map[Label][]Occurrence {
	occ := make(map[Label][]Occurrence)
	for oi, labels := range s.OperandLabels {
		for pos, l := range labels {
			occ[l] = append(occ[l], Occurrence{OperandIndex: oi, Position: pos})
		}
	}
	return occ
}

// Occurrences returns every (operand, position) slot where l appears.
func (s *Subscript) Occurrences(l Label) []Occurrence {
	return s.occurrences()[l]
}

// Labels returns the distinct labels across all operands, in ascending
// sort order (the tie-break order the estimator falls back to).
func (s *Subscript) Labels() []Label {
	seen := make(map[Label]bool)
	for _, ops := range s.OperandLabels {
		for _, l := range ops {
			seen[l] = true
		}
	}
	out := make([]Label, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsResultLabel reports whether l is part of the projection.
func (s *Subscript) IsResultLabel(l Label) bool {
	for _, r := range s.ResultLabels {
		if r == l {
			return true
		}
	}
	return false
}

// IsJoinLabel reports whether l occurs in two or more operand slots, across
// operands or within a single operand.
func (s *Subscript) IsJoinLabel(l Label) bool {
	return len(s.Occurrences(l)) >= 2
}

// IsLeaf reports whether the subscript has no labels left (terminal case of
// the einsum recursion).
func (s *Subscript) IsLeaf() bool {
	return len(s.Labels()) == 0
}

// LonelyFactor names a label that occurs exactly once and is not part of
// the projection: its contribution is a multiplicative factor (the
// cardinality of its one operand-dimension) under COUNTED, and it is
// eliminated entirely under DISTINCT.
type LonelyFactor struct {
	Label        Label
	OperandIndex int
	Position     int
}

// LonelyFactors returns every label that occurs exactly once and is not a
// result label. These are left in OperandLabels (dimension positions must
// stay aligned with the underlying hypertrie's depth) but an Einsum
// evaluator must never choose one as the next join label: it resolves each
// directly to a cardinality multiplier instead.
func (s *Subscript) LonelyFactors() []LonelyFactor {
	var out []LonelyFactor
	for l, occs := range s.occurrences() {
		if len(occs) != 1 || s.IsResultLabel(l) {
			continue
		}
		out = append(out, LonelyFactor{Label: l, OperandIndex: occs[0].OperandIndex, Position: occs[0].Position})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// Optimized bundles a Subscript with its precomputed lonely-factor
// bookkeeping. Optimize never mutates OperandLabels/ResultLabels (those
// stay aligned with operand dimension indices); it only classifies which
// labels an Einsum evaluator should treat as pre-resolved. Because Base is
// the receiver unchanged, Optimize is trivially idempotent:
// Optimize(Optimize(S).Base) reproduces the same LonelyFactors as
// Optimize(S).
func (s *Subscript) Optimize() Optimized {
	return Optimized{Base: s, LonelyFactors: s.LonelyFactors()}
}

// Optimized is the result of Subscript.Optimize.
type Optimized struct {
	Base          *Subscript
	LonelyFactors []LonelyFactor
}

// RemoveLabel returns the residual subscript after label l has been bound
// during evaluation recursion: every occurrence of l is dropped from each
// operand's label sequence (shifting later positions down) and from the
// result labels (the caller is responsible for re-attaching the bound value
// to results). The removed occurrences are returned in their pre-removal
// (operand, position) coordinates, for slicing the corresponding hypertrie
// dimensions to l's bound value before recursing.
func (s *Subscript) RemoveLabel(l Label) (*Subscript, []Occurrence) {
	var occs []Occurrence
	newOperands := make([][]Label, len(s.OperandLabels))
	for oi, labels := range s.OperandLabels {
		kept := make([]Label, 0, len(labels))
		for pos, lab := range labels {
			if lab == l {
				occs = append(occs, Occurrence{OperandIndex: oi, Position: pos})
				continue
			}
			kept = append(kept, lab)
		}
		newOperands[oi] = kept
	}
	newResult := make([]Label, 0, len(s.ResultLabels))
	for _, lab := range s.ResultLabels {
		if lab != l {
			newResult = append(newResult, lab)
		}
	}
	return &Subscript{OperandLabels: newOperands, ResultLabels: newResult, Modifier: s.Modifier}, occs
}

// Component is one connected component of the ODG: a standalone
// sub-subscript plus the indices (into the original operand list) of the
// operands it draws from.
type Component struct {
	Subscript      *Subscript
	OperandIndexes []int
}

// IndependentComponents partitions the subscript by ODG connectivity:
// labels co-occurring in the same operand are always in the same
// component, so every operand's labels lie entirely within one component
// (an operand with zero labels belongs to none and is dropped — it is
// already resolved to a boolean and handled at the query-package level,
// not here). A lonely label lies in the component of its one operand; only
// a label that is the sole label of its operands has no co-occurrence edges
// and forms a singleton component, which is evaluated on its own and
// combined with the other components by cross product.
//
// The union-find here is a small, fixed-size (<=63 labels) hand-rolled
// graph walk: the corpus never reaches for a generic graph library for
// structures this size (see DESIGN.md), so this one does not either.
func (s *Subscript) IndependentComponents() []Component {
	labels := s.Labels()
	parent := make(map[Label]Label, len(labels))
	for _, l := range labels {
		parent[l] = l
	}
	var find func(Label) Label
	find = func(l Label) Label {
		for parent[l] != l {
			parent[l] = parent[parent[l]]
			l = parent[l]
		}
		return l
	}
	union := func(a, b Label) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	operandComponentOf := make([]Label, len(s.OperandLabels))
	for oi, ops := range s.OperandLabels {
		if len(ops) == 0 {
			continue
		}
		for i := 1; i < len(ops); i++ {
			union(ops[0], ops[i])
		}
		operandComponentOf[oi] = find(ops[0])
	}
	// A second pass is needed because a later union() can re-parent the
	// root recorded in operandComponentOf[oi] for an earlier operand.
	for oi, ops := range s.OperandLabels {
		if len(ops) > 0 {
			operandComponentOf[oi] = find(ops[0])
		}
	}

	rootOrder := make([]Label, 0)
	rootSeen := make(map[Label]bool)
	byRoot := make(map[Label][]int)
	for oi, ops := range s.OperandLabels {
		if len(ops) == 0 {
			continue
		}
		root := operandComponentOf[oi]
		if !rootSeen[root] {
			rootSeen[root] = true
			rootOrder = append(rootOrder, root)
		}
		byRoot[root] = append(byRoot[root], oi)
	}
	sort.Slice(rootOrder, func(i, j int) bool { return rootOrder[i] < rootOrder[j] })

	components := make([]Component, 0, len(rootOrder))
	for _, root := range rootOrder {
		operandIdxs := byRoot[root]
		sort.Ints(operandIdxs)

		componentLabels := make(map[Label]bool)
		subOperands := make([][]Label, len(operandIdxs))
		for i, oi := range operandIdxs {
			subOperands[i] = append([]Label(nil), s.OperandLabels[oi]...)
			for _, l := range s.OperandLabels[oi] {
				componentLabels[l] = true
			}
		}
		var subResult []Label
		for _, l := range s.ResultLabels {
			if componentLabels[l] {
				subResult = append(subResult, l)
			}
		}
		components = append(components, Component{
			Subscript:      &Subscript{OperandLabels: subOperands, ResultLabels: subResult, Modifier: s.Modifier},
			OperandIndexes: operandIdxs,
		})
	}
	return components
}

// Degree returns the number of distinct labels l co-occurs with in any
// operand — the ODG degree used by the estimator's tie-break.
func (s *Subscript) Degree(l Label) int {
	neighbors := make(map[Label]bool)
	for _, ops := range s.OperandLabels {
		hasL := false
		for _, lab := range ops {
			if lab == l {
				hasL = true
				break
			}
		}
		if !hasL {
			continue
		}
		for _, lab := range ops {
			if lab != l {
				neighbors[lab] = true
			}
		}
	}
	return len(neighbors)
}
