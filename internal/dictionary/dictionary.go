// Package dictionary implements the term dictionary: the bijection between
// RDF terms and 64-bit Term IDs that every other core component (hypertrie,
// subscript, einsum) addresses terms through.
//
// The dictionary is built once at load time and read many times during query
// evaluation; writers (interning new terms during bulk load) and readers
// (lookups during result materialization) may run concurrently. Internally it
// shards its state across a fixed number of stripes, each guarded by its own
// sync.RWMutex, so no single lock serializes every write. The read path is
// not lock-free: Lookup and Size take each stripe's read lock in turn.
package dictionary

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/aleksaelezovic/tentris-go/pkg/rdf"
	"github.com/zeebo/xxh3"
)

// TermID is an opaque 64-bit integer identifying an RDF term. Within one
// Dictionary's lifetime, id(term(x)) == x and term(id(t)) == t.
type TermID uint64

const stripeCount = 64

// ErrUnknownTerm is returned by Lookup for a TermID never produced by Intern.
var ErrUnknownTerm = fmt.Errorf("dictionary: unknown term id")

type stripe struct {
	mu     sync.RWMutex
	byTerm map[string]TermID // canonical lexical key -> id
	terms  map[TermID]rdf.Term
}

// Dictionary is a thread-safe, append-only Term <-> TermID bijection.
type Dictionary struct {
	stripes [stripeCount]*stripe
	next    atomic.Uint64
}

// New creates an empty term dictionary.
func New() *Dictionary {
	d := &Dictionary{}
	for i := range d.stripes {
		d.stripes[i] = &stripe{
			byTerm: make(map[string]TermID),
			terms:  make(map[TermID]rdf.Term),
		}
	}
	// TermID 0 is reserved as "no id" so a zero-valued TermID is never
	// mistaken for a real interned term.
	d.next.Store(1)
	return d
}

// canonicalKey produces a lexical form that disambiguates term kinds
// (an IRI, a blank node, and a literal with the same text must never collide).
func canonicalKey(term rdf.Term) string {
	switch t := term.(type) {
	case *rdf.NamedNode:
		return "I" + t.IRI
	case *rdf.BlankNode:
		return "B" + t.ID
	case *rdf.Literal:
		key := "L" + t.Value
		if t.Language != "" {
			key += "@" + t.Language
		} else if t.Datatype != nil {
			key += "^^" + t.Datatype.IRI
		}
		return key
	default:
		return "?" + term.String()
	}
}

func (d *Dictionary) stripeFor(key string) *stripe {
	h := xxh3.Hash128([]byte(key))
	return d.stripes[h.Lo%stripeCount]
}

// Intern returns the stable TermID for term, assigning a fresh one on first
// sight. Safe for concurrent use.
func (d *Dictionary) Intern(term rdf.Term) TermID {
	key := canonicalKey(term)
	s := d.stripeFor(key)

	s.mu.RLock()
	if id, ok := s.byTerm[key]; ok {
		s.mu.RUnlock()
		return id
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byTerm[key]; ok {
		return id
	}
	id := TermID(d.next.Add(1) - 1)
	s.byTerm[key] = id
	s.terms[id] = term
	return id
}

// Lookup returns the term interned under id, or ErrUnknownTerm.
func (d *Dictionary) Lookup(id TermID) (rdf.Term, error) {
	// The id was minted by some stripe's Intern call but is looked up
	// without knowing which one, so every stripe must be checked. Stripes
	// are small and this path is not on the hot per-binding loop (callers
	// resolve TermIDs to terms once per emitted row, not once per probe).
	for _, s := range d.stripes {
		s.mu.RLock()
		if t, ok := s.terms[id]; ok {
			s.mu.RUnlock()
			return t, nil
		}
		s.mu.RUnlock()
	}
	return nil, ErrUnknownTerm
}

// Size returns the number of distinct terms interned so far.
func (d *Dictionary) Size() int {
	total := 0
	for _, s := range d.stripes {
		s.mu.RLock()
		total += len(s.terms)
		s.mu.RUnlock()
	}
	return total
}

// EncodeID renders a TermID as a big-endian 8-byte key, for the snapshot
// keyspaces in snapshot.go.
func EncodeID(id TermID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

// DecodeID is the inverse of EncodeID.
func DecodeID(buf []byte) TermID {
	return TermID(binary.BigEndian.Uint64(buf))
}
