// Package resultshape adapts an einsum binding stream into the per-slot
// {bound, type, value, datatype, lang} shape a SPARQL-results serializer
// wants. It does no I/O: shaping a row and writing it out are different
// concerns, the same separation the teacher keeps between
// results.FormatSelectResultsJSON (a pure function over an
// already-materialized SelectResult) and whatever writes the response
// body.
package resultshape

import (
	"github.com/aleksaelezovic/tentris-go/internal/dictionary"
	"github.com/aleksaelezovic/tentris-go/internal/einsum"
	"github.com/aleksaelezovic/tentris-go/pkg/rdf"
)

// Value is one projected slot. Bound is false for a label einsum never
// assigned (dictionary.TermID(0)), which the SPARQL results grammar
// represents as an absent binding rather than a null term.
type Value struct {
	Bound    bool
	Type     string // "uri", "bnode", or "literal"
	Value    string
	Datatype string
	Lang     string
}

// Row is one projected solution: one Value per projection slot plus the
// COUNTED multiplicity (always 1 under DISTINCT).
type Row struct {
	Values []Value
	Count  uint64
}

// Lookup resolves a dictionary.TermID to the rdf.Term it was interned
// from. *dictionary.Dictionary satisfies it directly; tests can supply a
// stub instead of building a real dictionary.
type Lookup interface {
	Lookup(id dictionary.TermID) (rdf.Term, error)
}

// FromEntry shapes one einsum.Entry into a Row, resolving every bound
// TermID through lookup.
func FromEntry(lookup Lookup, e einsum.Entry) (Row, error) {
	row := Row{Values: make([]Value, len(e.Values)), Count: e.Count}
	for i, id := range e.Values {
		if id == 0 {
			continue
		}
		term, err := lookup.Lookup(id)
		if err != nil {
			return Row{}, err
		}
		row.Values[i] = termToValue(term)
	}
	return row, nil
}

func termToValue(term rdf.Term) Value {
	switch t := term.(type) {
	case *rdf.NamedNode:
		return Value{Bound: true, Type: "uri", Value: t.IRI}
	case *rdf.BlankNode:
		return Value{Bound: true, Type: "bnode", Value: t.ID}
	case *rdf.Literal:
		v := Value{Bound: true, Type: "literal", Value: t.Value}
		switch {
		case t.Language != "":
			v.Lang = t.Language
		case t.Datatype != nil:
			v.Datatype = t.Datatype.IRI
		}
		return v
	default:
		return Value{Bound: true, Type: "literal", Value: term.String()}
	}
}
