package query

import (
	"context"
	"testing"
	"time"

	"github.com/aleksaelezovic/tentris-go/internal/dictionary"
	"github.com/aleksaelezovic/tentris-go/internal/einsum"
	"github.com/aleksaelezovic/tentris-go/internal/hypertrie"
	"github.com/aleksaelezovic/tentris-go/pkg/bgp"
)

func buildPackage(t *testing.T, root *hypertrie.Node, q *bgp.Query) *Package {
	t.Helper()
	pkg, err := Build(q, root)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return pkg
}

func TestEvaluateTriviallyEmptySkipsEinsum(t *testing.T) {
	root := hypertrie.Build([][]dictionary.TermID{tuple('a', 'p', 'b')}, 3)
	q := &bgp.Query{
		SPARQL: "q",
		Patterns: []bgp.TriplePattern{
			{Subject: bgp.Var("x"), Predicate: bgp.Bound(id('z')), Object: bgp.Var("y")},
		},
	}
	pkg := buildPackage(t, root, q)

	called := false
	status, stats, err := Evaluate(context.Background(), pkg, func(einsum.Entry) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if status != StatusOK {
		t.Fatalf("expected StatusOK, got %s", status)
	}
	if called {
		t.Fatalf("onBinding should never be called for a trivially empty package")
	}
	if stats.BindingsEmitted != 0 {
		t.Fatalf("expected 0 bindings, got %d", stats.BindingsEmitted)
	}
}

func TestEvaluateEmitsEveryBinding(t *testing.T) {
	root := hypertrie.Build([][]dictionary.TermID{
		tuple('a', 'p', 'b'),
		tuple('c', 'p', 'd'),
	}, 3)
	q := &bgp.Query{
		SPARQL: "q",
		Patterns: []bgp.TriplePattern{
			{Subject: bgp.Var("x"), Predicate: bgp.Bound(id('p')), Object: bgp.Var("y")},
		},
		Projection: []bgp.Variable{"x", "y"},
	}
	pkg := buildPackage(t, root, q)

	var seen int
	status, stats, err := Evaluate(context.Background(), pkg, func(einsum.Entry) error {
		seen++
		return nil
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if status != StatusOK {
		t.Fatalf("expected StatusOK, got %s", status)
	}
	if seen != 2 || stats.BindingsEmitted != 2 {
		t.Fatalf("expected 2 bindings, saw %d, stats reported %d", seen, stats.BindingsEmitted)
	}
}

func TestEvaluateSerializationErrorStopsEarly(t *testing.T) {
	root := hypertrie.Build([][]dictionary.TermID{
		tuple('a', 'p', 'b'),
		tuple('c', 'p', 'd'),
	}, 3)
	q := &bgp.Query{
		SPARQL: "q",
		Patterns: []bgp.TriplePattern{
			{Subject: bgp.Var("x"), Predicate: bgp.Bound(id('p')), Object: bgp.Var("y")},
		},
		Projection: []bgp.Variable{"x", "y"},
	}
	pkg := buildPackage(t, root, q)

	sentinel := errTestSerialize{}
	status, _, err := Evaluate(context.Background(), pkg, func(einsum.Entry) error {
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("expected the serializer's own error, got %v", err)
	}
	if status != StatusSerializationTimeout {
		t.Fatalf("expected StatusSerializationTimeout, got %s", status)
	}
}

type errTestSerialize struct{}

func (errTestSerialize) Error() string { return "serializer stopped" }

func TestEvaluateAskReturnsTrueOnFirstBinding(t *testing.T) {
	root := hypertrie.Build([][]dictionary.TermID{tuple('a', 'p', 'b')}, 3)
	q := &bgp.Query{
		SPARQL: "ask",
		Patterns: []bgp.TriplePattern{
			{Subject: bgp.Var("x"), Predicate: bgp.Bound(id('p')), Object: bgp.Var("y")},
		},
		Ask: true,
	}
	pkg := buildPackage(t, root, q)

	ok, status, err := EvaluateAsk(context.Background(), pkg)
	if err != nil {
		t.Fatalf("EvaluateAsk: %v", err)
	}
	if !ok {
		t.Fatalf("expected ASK to report true")
	}
	if status != StatusOK {
		t.Fatalf("expected StatusOK, got %s", status)
	}
}

func TestEvaluateAskReturnsFalseForTriviallyEmpty(t *testing.T) {
	root := hypertrie.Build([][]dictionary.TermID{tuple('a', 'p', 'b')}, 3)
	q := &bgp.Query{
		SPARQL: "ask",
		Patterns: []bgp.TriplePattern{
			{Subject: bgp.Var("x"), Predicate: bgp.Bound(id('z')), Object: bgp.Var("y")},
		},
		Ask: true,
	}
	pkg := buildPackage(t, root, q)

	ok, status, err := EvaluateAsk(context.Background(), pkg)
	if err != nil {
		t.Fatalf("EvaluateAsk: %v", err)
	}
	if ok {
		t.Fatalf("expected ASK to report false for a trivially empty package")
	}
	if status != StatusOK {
		t.Fatalf("expected StatusOK, got %s", status)
	}
}

func TestEvaluateProcessingTimeout(t *testing.T) {
	var tuples [][]dictionary.TermID
	for i := uint64(0); i < 5000; i++ {
		tuples = append(tuples, []dictionary.TermID{id(i), id('p'), id(i)})
	}
	root := hypertrie.Build(tuples, 3)
	q := &bgp.Query{
		SPARQL: "slow",
		Patterns: []bgp.TriplePattern{
			{Subject: bgp.Var("x"), Predicate: bgp.Bound(id('p')), Object: bgp.Var("y")},
		},
		Projection: []bgp.Variable{"x", "y"},
	}
	pkg := buildPackage(t, root, q)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	status, _, err := Evaluate(ctx, pkg, func(einsum.Entry) error { return nil })
	if err == nil {
		t.Fatalf("expected a processing timeout error")
	}
	if status != StatusProcessingTimeout {
		t.Fatalf("expected StatusProcessingTimeout, got %s", status)
	}
}
