// Package bgp is the external interface between a SPARQL surface parser and
// the evaluator core: a Basic Graph Pattern already split into triple
// patterns, with every term position classified as a bound constant, a
// projected or join variable, or a term the parser saw but the dictionary
// has never interned (UnresolvedTerm).
//
// Nothing in this package touches SPARQL syntax. A real surface parser
// (not part of this module) produces a Query by walking its own parse tree
// and resolving every constant it finds to the TermID the dictionary already
// holds for it, without minting new term IDs. dictionary.Dictionary offers no
// such non-minting term-to-ID method: Intern assigns fresh IDs to unseen
// terms, and Lookup maps a TermID back to its term.
package bgp

import (
	"github.com/aleksaelezovic/tentris-go/internal/dictionary"
	"github.com/aleksaelezovic/tentris-go/internal/subscript"
)

// Variable names a SPARQL variable by its surface name, without the
// leading '?' or '$'.
type Variable string

// TermPosition is one subject/predicate/object slot of a TriplePattern.
// Exactly one of "is a variable", "is a bound constant", or Unresolved
// holds; the zero value is the bound constant TermID(0), which never
// occurs in practice since dictionary reserves id 0 as "no id".
type TermPosition struct {
	Variable   Variable
	ID         dictionary.TermID
	Unresolved bool
}

// Bound builds a constant term position already resolved to id.
func Bound(id dictionary.TermID) TermPosition { return TermPosition{ID: id} }

// Var builds a variable term position.
func Var(name Variable) TermPosition { return TermPosition{Variable: name} }

// UnresolvedTerm builds a term position for a constant the parser saw in
// the query text but that the dictionary has never interned. A pattern
// containing one makes the whole query trivially empty: no graph can
// contain a term that was never assigned an id.
func UnresolvedTerm() TermPosition { return TermPosition{Unresolved: true} }

// IsVariable reports whether t names a variable.
func (t TermPosition) IsVariable() bool { return t.Variable != "" }

// TriplePattern is one BGP triple, each position independently bound,
// variable, or unresolved.
type TriplePattern struct {
	Subject, Predicate, Object TermPosition
}

// Positions returns p's three slots in subject-predicate-object order, the
// order every hypertrie slice key and subscript label sequence is built
// from.
func (p TriplePattern) Positions() [3]TermPosition {
	return [3]TermPosition{p.Subject, p.Predicate, p.Object}
}

// Query is a normalized SPARQL query: a conjunction of triple patterns plus
// the projection and result modifier.
type Query struct {
	SPARQL     string
	Patterns   []TriplePattern
	Projection []Variable
	Distinct   bool
	Ask        bool

	// VarToLabel optionally supplies the parser's own label assignment.
	// When nil, AssignLabels provides the core's default (first-occurrence
	// order).
	VarToLabel map[Variable]subscript.Label
}

// alphabet is the label set a BGP can draw from: 62 labels (a-z, A-Z, 0-9),
// which caps a query at 62 distinct variables, and byte values make
// natural, readable labels for the
// common case of a handful of variables.
var alphabet = func() []subscript.Label {
	var out []subscript.Label
	for c := 'a'; c <= 'z'; c++ {
		out = append(out, subscript.Label(c))
	}
	for c := 'A'; c <= 'Z'; c++ {
		out = append(out, subscript.Label(c))
	}
	for c := '0'; c <= '9'; c++ {
		out = append(out, subscript.Label(c))
	}
	return out
}()

// AssignLabels gives each distinct variable across patterns a fresh Label,
// in first-occurrence order (subject, predicate, object within each
// pattern, patterns in slice order). This is the core's fallback when a
// Query arrives without its own VarToLabel; fresh-label assignment per
// distinct variable is this adapter's job rather than internal/subscript's.
func AssignLabels(patterns []TriplePattern) map[Variable]subscript.Label {
	out := make(map[Variable]subscript.Label)
	next := 0
	assign := func(t TermPosition) {
		if !t.IsVariable() {
			return
		}
		if _, ok := out[t.Variable]; ok {
			return
		}
		if next >= len(alphabet) {
			return // beyond the 62-label budget: the variable gets no label, and query.Build rejects the query
		}
		out[t.Variable] = alphabet[next]
		next++
	}
	for _, p := range patterns {
		for _, pos := range p.Positions() {
			assign(pos)
		}
	}
	return out
}
