package query

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aleksaelezovic/tentris-go/internal/dictionary"
	"github.com/aleksaelezovic/tentris-go/internal/hypertrie"
	"github.com/aleksaelezovic/tentris-go/pkg/bgp"
)

func TestCacheGetBuildsOnceAndMemoizes(t *testing.T) {
	root := hypertrie.Build([][]dictionary.TermID{tuple('a', 'p', 'b')}, 3)
	var builds atomic.Int32
	parse := func(sparqlText string) (*bgp.Query, error) {
		builds.Add(1)
		return &bgp.Query{
			SPARQL: sparqlText,
			Patterns: []bgp.TriplePattern{
				{Subject: bgp.Var("x"), Predicate: bgp.Bound(id('p')), Object: bgp.Var("y")},
			},
			Projection: []bgp.Variable{"x", "y"},
		}, nil
	}

	cache, err := NewCache(parse, root, 100)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	defer cache.Close()

	if _, _, err := cache.Get("Q"); err != nil {
		t.Fatalf("first Get: %v", err)
	}
	if _, _, err := cache.Get("Q"); err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if got := builds.Load(); got != 1 {
		t.Fatalf("expected exactly 1 parse call across two Gets, got %d", got)
	}
}

func TestCacheGetDedupsConcurrentBuilds(t *testing.T) {
	root := hypertrie.Build([][]dictionary.TermID{tuple('a', 'p', 'b')}, 3)
	var builds atomic.Int32
	start := make(chan struct{})
	parse := func(sparqlText string) (*bgp.Query, error) {
		<-start
		builds.Add(1)
		return &bgp.Query{
			SPARQL: sparqlText,
			Patterns: []bgp.TriplePattern{
				{Subject: bgp.Var("x"), Predicate: bgp.Bound(id('p')), Object: bgp.Var("y")},
			},
		}, nil
	}

	cache, err := NewCache(parse, root, 100)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	defer cache.Close()

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, _, err := cache.Get("Q"); err != nil {
				t.Errorf("Get: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := builds.Load(); got != 1 {
		t.Fatalf("expected exactly 1 build across %d concurrent Gets, got %d", n, got)
	}
}

func TestCacheGetSurfacesUnparsableAndDoesNotCacheIt(t *testing.T) {
	root := hypertrie.Build([][]dictionary.TermID{tuple('a', 'p', 'b')}, 3)
	var calls atomic.Int32
	parse := func(sparqlText string) (*bgp.Query, error) {
		calls.Add(1)
		return nil, errors.New("bad syntax")
	}

	cache, err := NewCache(parse, root, 100)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	defer cache.Close()

	if _, _, err := cache.Get("bogus"); !errors.Is(err, ErrUnparsable) {
		t.Fatalf("expected ErrUnparsable, got %v", err)
	}
	if _, _, err := cache.Get("bogus"); !errors.Is(err, ErrUnparsable) {
		t.Fatalf("expected ErrUnparsable again, got %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected the parser to be retried (failures are not cached), got %d calls", got)
	}
}
