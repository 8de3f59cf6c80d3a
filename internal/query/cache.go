package query

import (
	"fmt"
	"time"

	ristretto "github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"

	"github.com/aleksaelezovic/tentris-go/internal/hypertrie"
	"github.com/aleksaelezovic/tentris-go/pkg/bgp"
)

// ParseFunc turns SPARQL text into a normalized bgp.Query. The surface
// parser is an external collaborator; Cache only needs its result type.
type ParseFunc func(sparqlText string) (*bgp.Query, error)

// Cache memoizes Package construction by SPARQL text behind a bounded
// ristretto cache, with at-most-one concurrent build per key. Eviction follows
// ristretto's frequency-based admission and eviction policy, not
// least-recently-used order. The bound and the
// single-flight property are both explicit third-party dependencies —
// ristretto for the former, golang.org/x/sync/singleflight for the latter —
// rather than a hand-rolled map+mutex, the same way the teacher reaches for
// badger instead of writing its own LSM tree.
type Cache struct {
	store *ristretto.Cache[string, *Package]
	group singleflight.Group
	parse ParseFunc
	root  *hypertrie.Node
}

// NewCache creates a Cache bounded to roughly maxCost units of stored
// packages (ristretto cost accounting; Get stores each package at cost 1,
// so maxCost is approximately the number of distinct queries kept warm).
func NewCache(parse ParseFunc, root *hypertrie.Node, maxCost int64) (*Cache, error) {
	store, err := ristretto.NewCache(&ristretto.Config[string, *Package]{
		NumCounters:        maxCost * 10,
		MaxCost:            maxCost,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("query: creating cache: %w", err)
	}
	return &Cache{store: store, parse: parse, root: root}, nil
}

// buildResult is what one singleflight.Group.Do call produces: the
// Package plus how long this particular call spent parsing and building it
// (zero for a call that found the Package already cached).
type buildResult struct {
	pkg      *Package
	buildDur time.Duration
}

// Get returns the memoized Package for sparqlText, parsing and building it
// on a miss, along with how long that parse-and-build step took (zero on a
// cache hit). Concurrent callers racing on the same text share one build;
// the loser never touches the parser or the hypertrie, and both callers
// see the same build duration since they share the same underlying work.
func (c *Cache) Get(sparqlText string) (*Package, time.Duration, error) {
	if pkg, ok := c.store.Get(sparqlText); ok {
		return pkg, 0, nil
	}

	v, err, _ := c.group.Do(sparqlText, func() (any, error) {
		if pkg, ok := c.store.Get(sparqlText); ok {
			return buildResult{pkg: pkg}, nil
		}
		start := time.Now()
		q, err := c.parse(sparqlText)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnparsable, sparqlText, err)
		}
		pkg, err := Build(q, c.root)
		if err != nil {
			return nil, err
		}
		buildDur := time.Since(start)
		c.store.Set(sparqlText, pkg, 1)
		c.store.Wait()
		return buildResult{pkg: pkg, buildDur: buildDur}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	res := v.(buildResult)
	return res.pkg, res.buildDur, nil
}

// Close releases the cache's background goroutines.
func (c *Cache) Close() { c.store.Close() }
