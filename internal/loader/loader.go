// Package loader builds an in-memory boolean hypertrie from a stream of RDF
// triples: interning terms and building the depth-3 (subject, predicate,
// object) root, grounded on the teacher's internal/store/store.go
// insertQuadInTxn batch shape.
//
// This is also the one place in the module where parallelizing work inside
// a single logical operation is legitimate: loading happens once, outside
// any query's evaluation, so it does not conflict with the
// single-threaded-per-query evaluator contract the way parallelizing
// einsum's join would.
package loader

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/aleksaelezovic/tentris-go/internal/dictionary"
	"github.com/aleksaelezovic/tentris-go/internal/hypertrie"
	"github.com/aleksaelezovic/tentris-go/pkg/rdf"
)

// batchSize bounds how many triples one interning goroutine handles, so
// InternAll's fan-out scales with dataset size instead of spawning one
// goroutine per triple.
const batchSize = 4096

// InternAll interns every triple's terms into dict, processing batches
// concurrently, and returns the interned (subject, predicate, object) ID
// triples in input order.
func InternAll(ctx context.Context, dict *dictionary.Dictionary, triples []*rdf.Triple) ([][]dictionary.TermID, error) {
	out := make([][]dictionary.TermID, len(triples))
	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(triples); start += batchSize {
		start := start
		end := start + batchSize
		if end > len(triples) {
			end = len(triples)
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				t := triples[i]
				out[i] = []dictionary.TermID{
					dict.Intern(t.Subject),
					dict.Intern(t.Predicate),
					dict.Intern(t.Object),
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Build interns every triple and builds the depth-3 hypertrie over the
// deduplicated result (hypertrie.Build requires distinct tuples; it does
// not deduplicate on its own).
func Build(ctx context.Context, dict *dictionary.Dictionary, triples []*rdf.Triple) (*hypertrie.Node, error) {
	tuples, err := InternAll(ctx, dict, triples)
	if err != nil {
		return nil, err
	}
	return hypertrie.Build(dedupeTuples(tuples), 3), nil
}

func dedupeTuples(tuples [][]dictionary.TermID) [][]dictionary.TermID {
	seen := make(map[[3]dictionary.TermID]bool, len(tuples))
	out := make([][]dictionary.TermID, 0, len(tuples))
	for _, t := range tuples {
		key := [3]dictionary.TermID{t[0], t[1], t[2]}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}
