package pipeline

import (
	"fmt"

	"nexusminer/internal/bigint"
	"nexusminer/internal/difficulty"
	"nexusminer/internal/fermat"
	"nexusminer/internal/locator"
	"nexusminer/internal/minererr"
	"nexusminer/internal/wheel"
)

// chainResult is one queued candidate's classification: the confirmed
// chain length preceding its first Fermat failure, and the resulting
// difficulty (spec.md §4.5).
type chainResult struct {
	row        int64
	column     int
	length     int
	difficulty float64
}

// candidateEntry records where one locator candidate's deltas begin
// in a fermatQueue's flattened Deltas slice, so chainResult can walk
// its k consecutive offsets back out of a flushed batch's Results.
type candidateEntry struct {
	row     int64
	column  int
	baseIdx int
}

// fermatQueue accumulates locator candidates, relative to a single
// sieve origin, across segment batches until Flush is called or the
// queue reaches capacity (spec.md §4.3's batch_cap, and §5's "the
// locator stalls when the Fermat queue is full").
type fermatQueue struct {
	origin   bigint.U1024
	wheel    *wheel.Wheel
	pattern  *wheel.Pattern
	capacity int

	deltas  []uint64
	entries []candidateEntry
}

// newFermatQueue builds a queue that flushes no later than maxDeltas
// queued deltas. Add appends a whole candidate's k offsets at a time,
// so the trip point is set maxDeltas-(k-1) deltas early: without that
// margin, a candidate straddling the limit (k not dividing maxDeltas)
// would push the queue past maxDeltas before the capacity check fires,
// and fermat.NewBatch rejects any batch larger than MaxBatchSize.
func newFermatQueue(origin bigint.U1024, w *wheel.Wheel, pattern *wheel.Pattern, maxDeltas int) *fermatQueue {
	capacity := maxDeltas - (pattern.Len() - 1)
	return &fermatQueue{origin: origin, wheel: w, pattern: pattern, capacity: capacity}
}

// Add queues every offset of candidate c and reports whether the
// queue has reached capacity and must be flushed before more
// candidates can be added.
func (q *fermatQueue) Add(c locator.Candidate) bool {
	base := len(q.deltas)
	for oi := 0; oi < q.pattern.Len(); oi++ {
		delta := c.Row*wheel.Modulus + q.wheel.Residue(c.Column) + q.pattern.Offsets[oi]
		q.deltas = append(q.deltas, uint64(delta))
	}
	q.entries = append(q.entries, candidateEntry{row: c.Row, column: c.Column, baseIdx: base})
	return len(q.deltas) >= q.capacity
}

// Len returns the number of deltas currently queued.
func (q *fermatQueue) Len() int { return len(q.deltas) }

// Flush runs every queued delta through tester and classifies each
// candidate's confirmed chain. The queue is cleared unconditionally,
// even on error: a rejected or malformed batch must not be retried
// verbatim on the next flush, since every later flush would keep
// failing the same way and the worker would silently stop producing
// shares while q.deltas grows without bound.
func (q *fermatQueue) Flush(tester Tester) ([]chainResult, error) {
	if len(q.deltas) == 0 {
		return nil, nil
	}
	deltas, entries := q.deltas, q.entries
	q.deltas, q.entries = nil, nil

	batch, err := fermat.NewBatch(q.origin, deltas)
	if err != nil {
		return nil, fmt.Errorf("pipeline: building fermat batch: %w", err)
	}
	result, err := tester.Run(batch)
	if err != nil {
		return nil, fmt.Errorf("pipeline: running fermat batch: %w: %w", err, minererr.ErrDeviceFailure)
	}
	if result.Attempted != len(deltas) {
		return nil, fmt.Errorf("pipeline: fermat batch attempted %d, queued %d: %w",
			result.Attempted, len(deltas), minererr.ErrArithmeticMismatch)
	}

	k := q.pattern.Len()
	chains := make([]chainResult, 0, len(entries))
	for _, e := range entries {
		chains = append(chains, classifyChain(batch, result, e, k))
	}
	return chains, nil
}

// classifyChain walks a candidate's k consecutive offsets in the
// flushed batch's results, stopping at the first Fermat failure. If
// every offset in the pattern passed, the chain's length is the full
// pattern length and it carries no fractional component, since
// FractionalLength requires a failing terminal to derive one from.
func classifyChain(batch *fermat.Batch, result *fermat.Result, e candidateEntry, k int) chainResult {
	for oi := 0; oi < k; oi++ {
		idx := e.baseIdx + oi
		if result.Results[idx] == 1 {
			continue
		}
		terminal := batch.Candidate(idx)
		return chainResult{row: e.row, column: e.column, length: oi, difficulty: difficulty.Of(oi, terminal)}
	}
	return chainResult{row: e.row, column: e.column, length: k, difficulty: float64(k)}
}
