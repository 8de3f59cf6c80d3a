// Command tentris is a demo CLI over the evaluator core: it loads a small
// in-memory graph, runs a handful of BGPs through the query cache and
// Einsum operator, and prints the resulting bindings. It mirrors
// cmd/trigo/main.go's demo subcommand; serve is dropped since this module
// has no HTTP surface.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aleksaelezovic/tentris-go/internal/dictionary"
	"github.com/aleksaelezovic/tentris-go/internal/einsum"
	"github.com/aleksaelezovic/tentris-go/internal/loader"
	"github.com/aleksaelezovic/tentris-go/internal/query"
	"github.com/aleksaelezovic/tentris-go/internal/resultshape"
	"github.com/aleksaelezovic/tentris-go/pkg/bgp"
	"github.com/aleksaelezovic/tentris-go/pkg/rdf"
)

func main() {
	if len(os.Args) < 2 || os.Args[1] != "demo" {
		fmt.Println("Usage: tentris demo")
		os.Exit(1)
	}
	runDemo()
}

func runDemo() {
	fmt.Println("=== Tentris boolean-hypertrie demo ===")

	dict := dictionary.New()
	alice := rdf.NewNamedNode("http://example.org/alice")
	bob := rdf.NewNamedNode("http://example.org/bob")
	carol := rdf.NewNamedNode("http://example.org/carol")
	knows := rdf.NewNamedNode("http://xmlns.com/foaf/0.1/knows")
	name := rdf.NewNamedNode("http://xmlns.com/foaf/0.1/name")

	triples := []*rdf.Triple{
		rdf.NewTriple(alice, knows, bob),
		rdf.NewTriple(alice, knows, carol),
		rdf.NewTriple(bob, knows, carol),
		rdf.NewTriple(alice, name, rdf.NewLiteral("Alice")),
		rdf.NewTriple(bob, name, rdf.NewLiteral("Bob")),
		rdf.NewTriple(carol, name, rdf.NewLiteral("Carol")),
	}

	ctx := context.Background()
	root, err := loader.Build(ctx, dict, triples)
	if err != nil {
		log.Fatalf("building hypertrie: %v", err)
	}
	fmt.Printf("loaded %d triples, %d terms\n\n", root.Size(), dict.Size())

	knownBy := &bgp.Query{
		SPARQL: "SELECT ?x ?y WHERE { ?x <foaf:knows> ?y }",
		Patterns: []bgp.TriplePattern{
			{Subject: bgp.Var("x"), Predicate: bgp.Bound(dict.Intern(knows)), Object: bgp.Var("y")},
		},
		Projection: []bgp.Variable{"x", "y"},
	}
	named := &bgp.Query{
		SPARQL: "SELECT ?p ?n WHERE { ?p <foaf:name> ?n }",
		Patterns: []bgp.TriplePattern{
			{Subject: bgp.Var("p"), Predicate: bgp.Bound(dict.Intern(name)), Object: bgp.Var("n")},
		},
		Projection: []bgp.Variable{"p", "n"},
	}
	byText := map[string]*bgp.Query{knownBy.SPARQL: knownBy, named.SPARQL: named}
	parse := func(sparqlText string) (*bgp.Query, error) {
		q, ok := byText[sparqlText]
		if !ok {
			return nil, fmt.Errorf("unknown demo query %q", sparqlText)
		}
		return q, nil
	}

	cache, err := query.NewCache(parse, root, 1<<16)
	if err != nil {
		log.Fatalf("building query cache: %v", err)
	}
	defer cache.Close()

	// Multiple independent queries run concurrently on independent
	// evaluator instances; each evaluator below stays single-threaded
	// internally regardless of how many run alongside it.
	queries := []string{knownBy.SPARQL, named.SPARQL}
	g, gctx := errgroup.WithContext(ctx)
	for _, q := range queries {
		q := q
		g.Go(func() error { return runQuery(gctx, cache, dict, q) })
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("demo query failed: %v", err)
	}
}

func runQuery(ctx context.Context, cache *query.Cache, dict *dictionary.Dictionary, sparqlText string) error {
	pkg, parseDur, err := cache.Get(sparqlText)
	if err != nil {
		return fmt.Errorf("query %q: %w", sparqlText, err)
	}

	deadline, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	fmt.Printf("--- %s ---\n", sparqlText)
	status, stats, err := query.Evaluate(deadline, pkg, func(e einsum.Entry) error {
		row, err := resultshape.FromEntry(dict, e)
		if err != nil {
			return err
		}
		printRow(row)
		return nil
	})
	stats.ParseNS = parseDur.Nanoseconds()
	if err != nil {
		return fmt.Errorf("query %q: %s: %w", sparqlText, status, err)
	}
	fmt.Printf("status=%s bindings=%d parse=%dns execute=%dns serialize=%dns\n\n",
		status, stats.BindingsEmitted, stats.ParseNS, stats.ExecuteNS, stats.SerializeNS)
	return nil
}

func printRow(row resultshape.Row) {
	for i, v := range row.Values {
		if v.Bound {
			fmt.Printf("  [%d]=%s", i, v.Value)
		} else {
			fmt.Printf("  [%d]=?", i)
		}
	}
	fmt.Printf("  (count=%d)\n", row.Count)
}
