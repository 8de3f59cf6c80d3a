package query

import (
	"context"
	"errors"
	"time"

	"github.com/aleksaelezovic/tentris-go/internal/einsum"
)

// Stats accompanies a query's terminal Status. ParseNS is the caller's to
// fill in from the duration Cache.Get reports (parsing and plan-building
// happen before Evaluate is ever called, so Evaluate itself never touches
// it); ExecuteNS and SerializeNS are measured separately here, around each
// call to the join iterator and each call to onBinding respectively, so
// that time spent inside a slow serializer is never misattributed to the
// join.
type Stats struct {
	BindingsEmitted uint64
	ParseNS         int64
	ExecuteNS       int64
	SerializeNS     int64
}

// Evaluate drains pkg's join over onBinding, which a serializer supplies to
// render each binding as it arrives rather than after the whole result is
// materialized. onBinding returning an error aborts the stream and is
// reported as StatusSerializationTimeout, the downstream counterpart to
// StatusProcessingTimeout, which reports einsum.ErrProcessingTimeout.
func Evaluate(ctx context.Context, pkg *Package, onBinding func(einsum.Entry) error) (Status, Stats, error) {
	var stats Stats
	if pkg.IsTriviallyEmpty {
		return StatusOK, stats, nil
	}

	it := einsum.Run(ctx, pkg.Subscript, pkg.Operands)
	defer it.Close()

	for {
		nextStart := time.Now()
		entry, ok := it.Next()
		stats.ExecuteNS += time.Since(nextStart).Nanoseconds()
		if !ok {
			break
		}
		stats.BindingsEmitted++

		serializeStart := time.Now()
		err := onBinding(entry)
		stats.SerializeNS += time.Since(serializeStart).Nanoseconds()
		if err != nil {
			return StatusSerializationTimeout, stats, err
		}
	}

	if err := it.Err(); err != nil {
		if errors.Is(err, einsum.ErrProcessingTimeout) {
			return StatusProcessingTimeout, stats, err
		}
		return StatusUnexpected, stats, err
	}
	return StatusOK, stats, nil
}

// EvaluateAsk reports whether pkg has at least one binding, stopping the
// join after the first one: an ASK query never needs the full result.
func EvaluateAsk(ctx context.Context, pkg *Package) (bool, Status, error) {
	if pkg.IsTriviallyEmpty {
		return false, StatusOK, nil
	}

	it := einsum.Run(ctx, pkg.Subscript, pkg.Operands)
	defer it.Close()

	if _, ok := it.Next(); ok {
		return true, StatusOK, nil
	}
	if err := it.Err(); err != nil {
		if errors.Is(err, einsum.ErrProcessingTimeout) {
			return false, StatusProcessingTimeout, err
		}
		return false, StatusUnexpected, err
	}
	return false, StatusOK, nil
}
