package estimator

import (
	"testing"

	"github.com/aleksaelezovic/tentris-go/internal/dictionary"
	"github.com/aleksaelezovic/tentris-go/internal/hypertrie"
	"github.com/aleksaelezovic/tentris-go/internal/subscript"
)

func id(v uint64) dictionary.TermID { return dictionary.TermID(v) }

func tuple(ids ...uint64) []dictionary.TermID {
	out := make([]dictionary.TermID, len(ids))
	for i, v := range ids {
		out[i] = id(v)
	}
	return out
}

func TestPickChoosesSmallestCardinality(t *testing.T) {
	// Operand 0: (x,y) over 3 x-values, 1 y-value -> Card(0)=3, Card(1)=1.
	op0 := hypertrie.Build([][]dictionary.TermID{
		tuple(1, 100), tuple(2, 100), tuple(3, 100),
	}, 2)
	s, err := subscript.New([][]subscript.Label{{'x', 'y'}}, []subscript.Label{'x', 'y'}, subscript.Counted)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	label, cost, ok := Pick(s, []*hypertrie.Node{op0})
	if !ok {
		t.Fatalf("expected a label to be picked")
	}
	if label != 'y' {
		t.Fatalf("expected y (cardinality 1) to win over x (cardinality 3), got %q", label)
	}
	if cost != 1 {
		t.Fatalf("expected cost 1, got %d", cost)
	}
}

func TestPickTieBreaksByDegreeThenLabel(t *testing.T) {
	// Both x and z have the same cardinality (1) in their operands;
	// x co-occurs with both y and z (degree 2), z only with x (degree 1).
	opA := hypertrie.Build([][]dictionary.TermID{tuple(1, 10)}, 2)  // x,y: card(x)=1, card(y)=1
	opB := hypertrie.Build([][]dictionary.TermID{tuple(1, 20)}, 2) // x,z: card(x)=1, card(z)=1

	s, err := subscript.New(
		[][]subscript.Label{{'x', 'y'}, {'x', 'z'}},
		[]subscript.Label{'y', 'z'},
		subscript.Counted,
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	label, _, ok := Pick(s, []*hypertrie.Node{opA, opB})
	if !ok {
		t.Fatalf("expected a label to be picked")
	}
	if label != 'x' {
		t.Fatalf("expected x (degree 2) to win the tie over y/z (degree 1), got %q", label)
	}
}

// Property: estimator monotonicity — replacing an operand
// with a slice of itself never increases est(L) for any remaining label.
func TestEstimatorMonotonicityUnderSlicing(t *testing.T) {
	full := hypertrie.Build([][]dictionary.TermID{
		tuple(1, 100), tuple(1, 200), tuple(2, 100),
	}, 2) // dims: (x, y); card(y) = 2 over the whole operand

	sliced := full.Slice(hypertrie.Key{id(1), hypertrie.Wildcard}) // fix x=1: card(y) = 2 -> should not increase

	s, err := subscript.New([][]subscript.Label{{'y'}}, []subscript.Label{'y'}, subscript.Counted)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	fullNode := hypertrie.Build([][]dictionary.TermID{{id(100)}, {id(200)}}, 1)
	_ = fullNode // dims unused directly; comparing via Card below

	fullCost := Cost(s, []*hypertrie.Node{depthOneFromOriginal(full)}, 'y')
	slicedCost := Cost(s, []*hypertrie.Node{sliced}, 'y')

	if slicedCost > fullCost {
		t.Fatalf("expected slicing to not increase cardinality: full=%d sliced=%d", fullCost, slicedCost)
	}
}

// depthOneFromOriginal projects the full 2-depth operand's y-dimension
// alone, to compare against the sliced operand on equal footing (same
// depth, same dimension semantics).
func depthOneFromOriginal(full *hypertrie.Node) *hypertrie.Node {
	var ys [][]dictionary.TermID
	for _, t := range full.Tuples() {
		ys = append(ys, []dictionary.TermID{t[1]})
	}
	return hypertrie.Build(ys, 1)
}
