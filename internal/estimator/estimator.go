// Package estimator implements the engine's sole query planner. It scores
// each remaining label by the tightest operand-dimension cardinality that
// bears it and picks the smallest as the next join label, breaking ties
// deterministically.
//
// The scoring shape is grounded on the teacher's
// internal/sparql/optimizer/optimizer.go estimateSelectivity, which scores
// candidate join orders from bound-position heuristics and breaks ties with
// a stable sort over insertion order; here the heuristic is swapped for a
// minimum-cardinality rule and the tie-break for ODG degree then label
// order.
package estimator

import (
	"sort"

	"github.com/aleksaelezovic/tentris-go/internal/hypertrie"
	"github.com/aleksaelezovic/tentris-go/internal/subscript"
)

// Cost returns est(L): the minimum, over every operand position bearing
// label l, of that operand's dimension cardinality. Returns 0 if l has no
// occurrences left in s (already resolved).
func Cost(s *subscript.Subscript, operands []*hypertrie.Node, l subscript.Label) uint64 {
	occs := s.Occurrences(l)
	if len(occs) == 0 {
		return 0
	}
	min := operands[occs[0].OperandIndex].Card(occs[0].Position)
	for _, occ := range occs[1:] {
		if c := operands[occ.OperandIndex].Card(occ.Position); c < min {
			min = c
		}
	}
	return min
}

// Pick selects the next join label: smallest Cost, ties broken by highest
// ODG degree, then label sort order. ok is false when s has no candidate
// labels left.
//
// exclude removes labels from consideration before scoring — the Einsum
// operator uses this to keep non-result lonely labels out of the estimator
// entirely, since those are resolved by a cardinality multiplier rather
// than by picking and slicing.
func Pick(s *subscript.Subscript, operands []*hypertrie.Node, exclude ...subscript.Label) (label subscript.Label, cost uint64, ok bool) {
	excluded := make(map[subscript.Label]bool, len(exclude))
	for _, l := range exclude {
		excluded[l] = true
	}

	var labels []subscript.Label
	for _, l := range s.Labels() {
		if !excluded[l] {
			labels = append(labels, l)
		}
	}
	if len(labels) == 0 {
		return 0, 0, false
	}

	type scored struct {
		label  subscript.Label
		cost   uint64
		degree int
	}
	scores := make([]scored, len(labels))
	for i, l := range labels {
		scores[i] = scored{label: l, cost: Cost(s, operands, l), degree: s.Degree(l)}
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].cost != scores[j].cost {
			return scores[i].cost < scores[j].cost
		}
		if scores[i].degree != scores[j].degree {
			return scores[i].degree > scores[j].degree
		}
		return scores[i].label < scores[j].label
	})

	best := scores[0]
	return best.label, best.cost, true
}
