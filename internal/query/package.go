// Package query assembles and caches query execution packages: the
// immutable, per-query bundle of sliced operands and subscript an Einsum
// evaluator runs over.
//
// Construction is grounded on the teacher's constructor-takes-explicit-
// handles idiom (an explicit store handle passed into the constructor
// rather than a package-level global), generalized from "slice three flat
// Badger indexes" to "slice one hypertrie root per triple pattern".
package query

import (
	"fmt"

	"github.com/aleksaelezovic/tentris-go/internal/hypertrie"
	"github.com/aleksaelezovic/tentris-go/internal/subscript"
	"github.com/aleksaelezovic/tentris-go/pkg/bgp"
)

// Package bundles everything an Einsum evaluator needs for one query: the
// subscript built from its triple patterns, the already-sliced operands,
// and the projection. Immutable once Build returns; a *Package may be
// handed to any number of concurrently-running evaluators, each single-
// threaded internally.
type Package struct {
	SPARQLText string
	Subscript  *subscript.Subscript
	Projection []subscript.Label
	Ask        bool
	Operands   []*hypertrie.Node

	// IsTriviallyEmpty is set when some triple pattern can never match:
	// an UnresolvedTerm position, or a slice that collapsed to False.
	// Subscript and Operands are left zero-valued in that case; Evaluate
	// short-circuits on it without touching the Einsum operator at all.
	IsTriviallyEmpty bool
}

// Build slices q's triple patterns against root (the store's depth-3
// subject/predicate/object hypertrie) and assembles the resulting
// Subscript.
func Build(q *bgp.Query, root *hypertrie.Node) (*Package, error) {
	labels := q.VarToLabel
	if labels == nil {
		labels = bgp.AssignLabels(q.Patterns)
	}

	pkg := &Package{SPARQLText: q.SPARQL, Ask: q.Ask}
	for _, v := range q.Projection {
		pkg.Projection = append(pkg.Projection, labels[v])
	}

	operandLabels := make([]subscript.PatternLabels, 0, len(q.Patterns))
	operands := make([]*hypertrie.Node, 0, len(q.Patterns))

	for _, p := range q.Patterns {
		key := make(hypertrie.Key, 0, 3)
		var patLabels subscript.PatternLabels
		unresolved := false
		for _, pos := range p.Positions() {
			switch {
			case pos.Unresolved:
				unresolved = true
			case pos.IsVariable():
				l, ok := labels[pos.Variable]
				if !ok {
					return nil, fmt.Errorf("query: variable %q in %q has no label", pos.Variable, q.SPARQL)
				}
				key = append(key, hypertrie.Wildcard)
				patLabels = append(patLabels, l)
			default:
				key = append(key, pos.ID)
			}
		}
		if unresolved {
			pkg.IsTriviallyEmpty = true
			break
		}

		sliced := root.Slice(key)
		if sliced.IsBool() {
			if !sliced.Bool() {
				pkg.IsTriviallyEmpty = true
				break
			}
			// A fully-bound pattern that matched: a depth-0 True operand
			// with no labels, carried along for uniformity but never
			// touched again (subscript.IndependentComponents drops
			// zero-label operands).
		} else if sliced.Empty() {
			pkg.IsTriviallyEmpty = true
			break
		}
		operandLabels = append(operandLabels, patLabels)
		operands = append(operands, sliced)
	}

	if pkg.IsTriviallyEmpty {
		return pkg, nil
	}

	modifier := subscript.Counted
	if q.Distinct {
		modifier = subscript.Distinct
	}
	sub, err := subscript.FromPatterns(operandLabels, pkg.Projection, modifier)
	if err != nil {
		return nil, fmt.Errorf("query: building subscript for %q: %w", q.SPARQL, err)
	}
	pkg.Subscript = sub
	pkg.Operands = operands
	return pkg, nil
}
