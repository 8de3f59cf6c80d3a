// Package einsum implements the streaming multi-way join operator: given a
// Subscript and its sliced operands, it enumerates every binding consistent
// with all operands, driven entirely by the cardinality estimator's label
// choice at each step.
//
// The iterator shape — Next/Err, background goroutine producing on a
// channel — mirrors the teacher's Next()/Binding()/Close() executor
// iterators (internal/sparql/executor/executor.go), adapted from a
// recursive nestedLoopJoinIterator over two plan children to an n-ary
// recursive join over however many operands one label connects. Err's
// "valid only once Next returns false" contract follows bufio.Scanner,
// the same shape the teacher itself borrows the idiom from.
//
// Each evaluator is single-threaded internally: everything below runs on
// the one goroutine New starts, with no further fan-out. Independent
// queries run concurrently by running independent evaluators, not by
// parallelizing inside one.
package einsum

import (
	"context"
	"encoding/binary"
	"errors"

	"github.com/aleksaelezovic/tentris-go/internal/dictionary"
	"github.com/aleksaelezovic/tentris-go/internal/estimator"
	"github.com/aleksaelezovic/tentris-go/internal/hypertrie"
	"github.com/aleksaelezovic/tentris-go/internal/subscript"
)

// probeInterval is how many yielded bindings pass between deadline checks,
// in addition to the check made on every recursive call.
const probeInterval = 500

// ErrProcessingTimeout is Iterator.Err's value when ctx's deadline fired
// before the join exhausted every branch.
var ErrProcessingTimeout = errors.New("einsum: processing timeout")

// Entry is one emitted binding, aligned with the Subscript's ResultLabels.
// Every result label is bound before a binding is emitted; lonely,
// unprojected dimensions are folded into Count instead of being enumerated
// and have no slot in Values.
type Entry struct {
	Values []dictionary.TermID
	Count  uint64
}

// bound is a label -> TermID assignment, indexed directly by the label
// byte. A fixed-size array keeps the join's hot path allocation-free; index
// 0 is never written since no Subscript produces label 0 (subscript.Label
// is never the dictionary's reserved null id in practice, but leaving slot
// 0 alone costs nothing and avoids relying on that).
type bound [256]dictionary.TermID

// Iterator streams the bindings produced by one Run call.
type Iterator struct {
	ch     chan Entry
	cancel context.CancelFunc
	err    error
}

// Run starts evaluating sub over operands, returning an Iterator whose
// background goroutine runs until Next is fully drained or Close is
// called. operands[i] must have depth len(sub.OperandLabels[i]).
func Run(ctx context.Context, sub *subscript.Subscript, operands []*hypertrie.Node) *Iterator {
	ctx, cancel := context.WithCancel(ctx)
	it := &Iterator{ch: make(chan Entry), cancel: cancel}

	e := &evaluator{
		ctx:          ctx,
		distinct:     sub.Modifier == subscript.Distinct,
		resultLabels: sub.ResultLabels,
		out:          it.ch,
	}
	if e.distinct {
		e.seen = make(map[string]bool)
	}

	go func() {
		defer close(it.ch)
		it.err = e.eval(sub, operands, bound{}, 1, e.emit)
	}()
	return it
}

// Next blocks until a binding is ready or the iterator is exhausted.
func (it *Iterator) Next() (Entry, bool) {
	entry, ok := <-it.ch
	return entry, ok
}

// Err returns why Next stopped yielding, or nil on normal exhaustion.
// Valid only after Next has returned ok == false.
func (it *Iterator) Err() error { return it.err }

// Close stops the background evaluation. Cancellation is cooperative: the
// goroutine notices at its next probe point rather than being forced to
// stop mid-step. Safe to call any number of times, and safe to call
// without having drained Next.
func (it *Iterator) Close() { it.cancel() }

// leafFunc is invoked once per fully-resolved branch of the recursion: a
// binding plus the multiplicity accumulated along the way. Component
// cross-products chain leafFuncs together so that reaching the end of one
// component's join resumes the next component instead of emitting early.
type leafFunc func(b bound, count uint64) error

type evaluator struct {
	ctx          context.Context
	distinct     bool
	resultLabels []subscript.Label
	seen         map[string]bool
	out          chan<- Entry
	yielded      int
}

// probe reports ErrProcessingTimeout once ctx's deadline has passed,
// passing through any other context error (notably context.Canceled from
// an early Close) unwrapped.
func (e *evaluator) probe() error {
	if e.ctx.Err() == context.DeadlineExceeded {
		return ErrProcessingTimeout
	}
	return e.ctx.Err()
}

// eval recurses over sub, slicing one join label at a time, until no
// labels remain, then calls leaf. Every call checks the deadline first, so
// a deeply nested join notices an expired deadline without waiting for the
// next binding to be ready.
func (e *evaluator) eval(sub *subscript.Subscript, operands []*hypertrie.Node, b bound, count uint64, leaf leafFunc) error {
	if err := e.probe(); err != nil {
		return err
	}

	labels := sub.Labels()
	if len(labels) == 0 {
		return leaf(b, count)
	}

	// Connected components are recomputed at every call, not just once at
	// the top: binding a join label can split what was one component into
	// several.
	components := sub.IndependentComponents()
	if len(components) > 1 {
		return e.evalComponents(components, operands, b, count, 0, leaf)
	}

	opt := sub.Optimize()
	if len(opt.LonelyFactors) == len(labels) {
		// Every remaining label is a non-result lonely factor: nothing
		// left to slice, resolve directly.
		return e.finalizeLonely(opt.LonelyFactors, operands, b, count, leaf)
	}

	exclude := make([]subscript.Label, len(opt.LonelyFactors))
	for i, lf := range opt.LonelyFactors {
		exclude[i] = lf.Label
	}
	l, _, ok := estimator.Pick(sub, operands, exclude...)
	if !ok {
		return e.finalizeLonely(opt.LonelyFactors, operands, b, count, leaf)
	}
	return e.evalLabel(sub, operands, l, b, count, leaf)
}

// evalComponents evaluates components[idx..] as a cross product: every
// combination of a binding from this component with a binding from the
// rest multiplies their counts.
func (e *evaluator) evalComponents(components []subscript.Component, operands []*hypertrie.Node, b bound, count uint64, idx int, leaf leafFunc) error {
	if idx == len(components) {
		return leaf(b, count)
	}
	comp := components[idx]
	subOperands := make([]*hypertrie.Node, len(comp.OperandIndexes))
	for i, oi := range comp.OperandIndexes {
		subOperands[i] = operands[oi]
	}
	return e.eval(comp.Subscript, subOperands, b, count, func(nb bound, nc uint64) error {
		return e.evalComponents(components, operands, nb, nc, idx+1, leaf)
	})
}

// evalLabel binds l to each value it can take, slicing every operand that
// bears it and recursing on the residual subscript.
func (e *evaluator) evalLabel(sub *subscript.Subscript, operands []*hypertrie.Node, l subscript.Label, b bound, count uint64, leaf leafFunc) error {
	occs := sub.Occurrences(l)

	// The driver occurrence is whichever operand-dimension has the fewest
	// distinct values for l; its Keys() is the candidate set probed
	// against every other occurrence, minimizing wasted probes.
	driver := occs[0]
	driverCard := operands[driver.OperandIndex].Card(driver.Position)
	for _, occ := range occs[1:] {
		if c := operands[occ.OperandIndex].Card(occ.Position); c < driverCard {
			driver, driverCard = occ, c
		}
	}

	residual, removed := sub.RemoveLabel(l)
	isResult := sub.IsResultLabel(l)

	for _, v := range operands[driver.OperandIndex].Keys(driver.Position) {
		if err := e.probe(); err != nil {
			return err
		}
		newOperands, ok := sliceAll(operands, removed, v)
		if !ok {
			continue
		}
		nb := b
		if isResult {
			nb[l] = v
		}
		if err := e.eval(residual, newOperands, nb, count, leaf); err != nil {
			return err
		}
	}
	return nil
}

// sliceAll fixes every occurrence of the just-bound label to v, one operand
// at a time (an operand may bear the label at more than one position, which
// is why occurrences are grouped by OperandIndex before slicing). ok is
// false as soon as any operand's slice collapses to False: v is not a
// consistent binding for this branch.
func sliceAll(operands []*hypertrie.Node, removed []subscript.Occurrence, v dictionary.TermID) ([]*hypertrie.Node, bool) {
	byOperand := make(map[int][]int, len(removed))
	for _, occ := range removed {
		byOperand[occ.OperandIndex] = append(byOperand[occ.OperandIndex], occ.Position)
	}

	out := append([]*hypertrie.Node(nil), operands...)
	for oi, positions := range byOperand {
		node := operands[oi]
		key := make(hypertrie.Key, node.Depth())
		for i := range key {
			key[i] = hypertrie.Wildcard
		}
		for _, p := range positions {
			key[p] = v
		}
		sliced := node.Slice(key)
		if sliced.IsBool() && !sliced.Bool() {
			return nil, false
		}
		out[oi] = sliced
	}
	return out, true
}

// finalizeLonely resolves every remaining non-result lonely label by
// multiplying in its operand's Size(), grouped by OperandIndex so that an
// operand carrying two or more lonely dimensions at once contributes its
// joint cardinality exactly once rather than the (generally larger, and
// wrong) product of its per-dimension cardinalities.
func (e *evaluator) finalizeLonely(factors []subscript.LonelyFactor, operands []*hypertrie.Node, b bound, count uint64, leaf leafFunc) error {
	if e.distinct {
		// Lonely non-result labels are eliminated, not counted, under
		// DISTINCT.
		return leaf(b, count)
	}
	multiplier := uint64(1)
	seenOperand := make(map[int]bool, len(factors))
	for _, f := range factors {
		if seenOperand[f.OperandIndex] {
			continue
		}
		seenOperand[f.OperandIndex] = true
		multiplier *= operands[f.OperandIndex].Size()
	}
	return leaf(b, count*multiplier)
}

// emit resolves b against resultLabels and sends the Entry downstream,
// deduplicating under DISTINCT.
func (e *evaluator) emit(b bound, count uint64) error {
	values := make([]dictionary.TermID, len(e.resultLabels))
	for i, l := range e.resultLabels {
		values[i] = b[l]
	}

	if e.distinct {
		key := distinctKey(values)
		if e.seen[key] {
			return nil
		}
		e.seen[key] = true
		count = 1
	}

	e.yielded++
	select {
	case e.out <- Entry{Values: values, Count: count}:
	case <-e.ctx.Done():
		return e.probe()
	}

	if e.yielded%probeInterval == 0 {
		return e.probe()
	}
	return nil
}

func distinctKey(values []dictionary.TermID) string {
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.BigEndian.PutUint64(buf[i*8:], uint64(v))
	}
	return string(buf)
}
