package dictionary

import (
	"bytes"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/aleksaelezovic/tentris-go/pkg/rdf"
)

// Snapshotting writes exactly two keyspaces into one shared BadgerDB: the
// id2term direction (scanned on Load to rebuild the dictionary) and the
// term2id direction (kept so an on-disk dictionary could answer Intern
// without a full reload, even though this package's own Load always scans
// id2term only). A one-byte prefix is enough to keep them apart since
// dictionary is the only thing writing to this DB.
const (
	prefixID2Term byte = 'i'
	prefixTerm2ID byte = 't'
)

func id2termKey(id TermID) []byte {
	return append([]byte{prefixID2Term}, EncodeID(id)...)
}

func term2idKey(encoded []byte) []byte {
	return append([]byte{prefixTerm2ID}, encoded...)
}

// Term kind tags for the lexical encoding snapshotted to storage. These are
// distinct from canonicalKey's prefixes: canonicalKey only needs to avoid
// collisions within one process, while this encoding also has to survive a
// round trip back into an rdf.Term.
const (
	kindNamedNode byte = 'I'
	kindBlankNode byte = 'B'
	kindLiteral   byte = 'L'
)

// encodeTerm renders term as bytes a later process can decode back into the
// same concrete rdf.Term. Literal fields are null-separated; term lexical
// forms are free text but RDF forbids embedded NUL, so this never collides.
func encodeTerm(term rdf.Term) []byte {
	switch t := term.(type) {
	case *rdf.NamedNode:
		return append([]byte{kindNamedNode}, []byte(t.IRI)...)
	case *rdf.BlankNode:
		return append([]byte{kindBlankNode}, []byte(t.ID)...)
	case *rdf.Literal:
		buf := append([]byte{kindLiteral}, []byte(t.Value)...)
		buf = append(buf, 0)
		buf = append(buf, []byte(t.Language)...)
		buf = append(buf, 0)
		if t.Datatype != nil {
			buf = append(buf, []byte(t.Datatype.IRI)...)
		}
		return buf
	default:
		return append([]byte{kindLiteral}, []byte(term.String())...)
	}
}

func decodeTerm(buf []byte) (rdf.Term, error) {
	if len(buf) == 0 {
		return nil, fmt.Errorf("dictionary: empty encoded term")
	}
	kind, rest := buf[0], buf[1:]
	switch kind {
	case kindNamedNode:
		return rdf.NewNamedNode(string(rest)), nil
	case kindBlankNode:
		return rdf.NewBlankNode(string(rest)), nil
	case kindLiteral:
		value, tail, ok := cutByte(rest, 0)
		if !ok {
			return nil, fmt.Errorf("dictionary: malformed literal encoding")
		}
		lang, datatype, ok := cutByte(tail, 0)
		if !ok {
			return nil, fmt.Errorf("dictionary: malformed literal encoding")
		}
		switch {
		case len(lang) > 0:
			return rdf.NewLiteralWithLanguage(string(value), string(lang)), nil
		case len(datatype) > 0:
			return rdf.NewLiteralWithDatatype(string(value), rdf.NewNamedNode(string(datatype))), nil
		default:
			return rdf.NewLiteral(string(value)), nil
		}
	default:
		return nil, fmt.Errorf("dictionary: unknown encoded term kind %q", kind)
	}
}

func cutByte(buf []byte, sep byte) (before, after []byte, found bool) {
	for i, b := range buf {
		if b == sep {
			return buf[:i], buf[i+1:], true
		}
	}
	return nil, nil, false
}

// Snapshot writes every interned term to db under both keyspaces, so a
// later Load call can reconstruct the same bijection including TermID
// values. The hypertrie itself is not snapshotted; it is rebuilt from the
// dataset at the next load.
//
// A dictionary snapshotted from a large bulk load can carry millions of
// terms, two writes each — far past what fits in one BadgerDB transaction's
// default size and count limits. WriteBatch exists for exactly this:
// it auto-commits and opens a fresh transaction whenever the current one
// would overflow, so Snapshot never has to pick a batch size itself or
// split the stripe loop into chunks.
func (d *Dictionary) Snapshot(db *badger.DB) error {
	wb := db.NewWriteBatch()
	defer wb.Cancel()

	for _, s := range d.stripes {
		s.mu.RLock()
		for id, term := range s.terms {
			encoded := encodeTerm(term)
			if err := wb.Set(id2termKey(id), encoded); err != nil {
				s.mu.RUnlock()
				return fmt.Errorf("dictionary: writing id2term: %w", err)
			}
			if err := wb.Set(term2idKey(encoded), EncodeID(id)); err != nil {
				s.mu.RUnlock()
				return fmt.Errorf("dictionary: writing term2id: %w", err)
			}
		}
		s.mu.RUnlock()
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("dictionary: flushing snapshot: %w", err)
	}
	return db.Sync()
}

// Load rebuilds a Dictionary from a snapshot written by Snapshot, restoring
// every TermID exactly as it was before the restart — so a hypertrie rebuilt
// from the same dataset still addresses the same cells. Only the id2term
// keyspace is scanned; term2id exists for a future on-disk Intern path, not
// for Load.
func Load(db *badger.DB) (*Dictionary, error) {
	d := New()

	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{prefixID2Term}
		it := txn.NewIterator(opts)
		defer it.Close()

		var maxID TermID
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			id := DecodeID(bytes.TrimPrefix(item.Key(), opts.Prefix))

			encoded, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("dictionary: reading id2term value: %w", err)
			}
			term, err := decodeTerm(encoded)
			if err != nil {
				return fmt.Errorf("dictionary: decoding term for id %d: %w", id, err)
			}

			key := canonicalKey(term)
			s := d.stripeFor(key)
			s.mu.Lock()
			s.byTerm[key] = id
			s.terms[id] = term
			s.mu.Unlock()

			if id > maxID {
				maxID = id
			}
		}
		if maxID > 0 {
			d.next.Store(uint64(maxID) + 1)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}
