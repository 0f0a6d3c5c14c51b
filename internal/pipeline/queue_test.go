package pipeline

import (
	"errors"
	"math/big"
	"testing"

	"nexusminer/internal/bigint"
	"nexusminer/internal/difficulty"
	"nexusminer/internal/fermat"
	"nexusminer/internal/locator"
	"nexusminer/internal/wheel"
)

// errTester always fails, for exercising Flush's error paths.
type errTester struct{ err error }

func (e errTester) Run(b *fermat.Batch) (*fermat.Result, error) { return nil, e.err }

// mismatchTester reports fewer attempts than it was given, tripping
// the queue's cross-check against minererr.ErrArithmeticMismatch.
type mismatchTester struct{}

func (mismatchTester) Run(b *fermat.Batch) (*fermat.Result, error) {
	return &fermat.Result{Attempted: len(b.Deltas) - 1, Results: make([]byte, len(b.Deltas))}, nil
}

// stubTester returns Results built from a caller-supplied predicate
// over the batch's candidate index, letting tests pin down exactly
// which deltas "pass" without running real Fermat exponentiations.
type stubTester struct {
	pass func(idx int) bool
}

func (s stubTester) Run(b *fermat.Batch) (*fermat.Result, error) {
	res := &fermat.Result{Results: make([]byte, len(b.Deltas)), Attempted: len(b.Deltas)}
	for i := range b.Deltas {
		if s.pass(i) {
			res.Results[i] = 1
			res.Passed++
		}
	}
	return res, nil
}

func smallPattern(t *testing.T) *wheel.Pattern {
	t.Helper()
	p, err := wheel.NewPattern([]int64{0, 2, 6, 8})
	if err != nil {
		t.Fatalf("NewPattern: %v", err)
	}
	return p
}

func TestFermatQueueAddReportsCapacity(t *testing.T) {
	t.Parallel()
	w := wheel.New()
	pattern := smallPattern(t)
	q := newFermatQueue(bigint.U1024{}, w, pattern, 8) // maxDeltas = 2 candidates * 4 offsets; trips at 8-(4-1) = 5 deltas

	c1 := locator.Candidate{Row: 0, Column: 0}
	if full := q.Add(c1); full {
		t.Fatalf("queue reported full after one candidate")
	}
	if q.Len() != pattern.Len() {
		t.Fatalf("Len() = %d, want %d", q.Len(), pattern.Len())
	}

	c2 := locator.Candidate{Row: 1, Column: 0}
	if full := q.Add(c2); !full {
		t.Fatalf("queue did not report full at capacity")
	}
}

func TestFermatQueueFlushClassifiesFirstFailure(t *testing.T) {
	t.Parallel()
	w := wheel.New()
	pattern := smallPattern(t) // offsets 0, 2, 6, 8 -> k = 4
	q := newFermatQueue(bigint.U1024{}, w, pattern, fermat.MaxBatchSize)

	q.Add(locator.Candidate{Row: 5, Column: 0})

	// offset index 2 (the third queued delta for this candidate)
	// fails; the two before it pass.
	tester := stubTester{pass: func(idx int) bool { return idx != 2 }}

	chains, err := q.Flush(tester)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(chains) != 1 {
		t.Fatalf("len(chains) = %d, want 1", len(chains))
	}
	if chains[0].length != 2 {
		t.Fatalf("length = %d, want 2", chains[0].length)
	}
	if chains[0].difficulty <= 2 || chains[0].difficulty >= 3 {
		t.Fatalf("difficulty = %v, want in (2, 3)", chains[0].difficulty)
	}
	if q.Len() != 0 {
		t.Fatalf("queue not reset after Flush, Len() = %d", q.Len())
	}
}

func TestFermatQueueFlushFullPatternHasNoFraction(t *testing.T) {
	t.Parallel()
	w := wheel.New()
	pattern := smallPattern(t)
	q := newFermatQueue(bigint.U1024{}, w, pattern, fermat.MaxBatchSize)

	q.Add(locator.Candidate{Row: 0, Column: 0})
	tester := stubTester{pass: func(idx int) bool { return true }}

	chains, err := q.Flush(tester)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if chains[0].length != pattern.Len() {
		t.Fatalf("length = %d, want %d", chains[0].length, pattern.Len())
	}
	if chains[0].difficulty != float64(pattern.Len()) {
		t.Fatalf("difficulty = %v, want exactly %d", chains[0].difficulty, pattern.Len())
	}
}

func TestFermatQueueFlushEmptyIsNoop(t *testing.T) {
	t.Parallel()
	w := wheel.New()
	pattern := smallPattern(t)
	q := newFermatQueue(bigint.U1024{}, w, pattern, fermat.MaxBatchSize)

	chains, err := q.Flush(stubTester{pass: func(int) bool { return true }})
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if chains != nil {
		t.Fatalf("Flush on an empty queue returned %v, want nil", chains)
	}
}

func TestFermatQueueMultipleCandidatesClassifyIndependently(t *testing.T) {
	t.Parallel()
	w := wheel.New()
	pattern := smallPattern(t)
	q := newFermatQueue(bigint.U1024{}, w, pattern, fermat.MaxBatchSize)

	q.Add(locator.Candidate{Row: 0, Column: 0})  // deltas 0-3
	q.Add(locator.Candidate{Row: 10, Column: 1}) // deltas 4-7

	// First candidate fails immediately (idx 0); second passes fully.
	tester := stubTester{pass: func(idx int) bool { return idx >= 4 }}
	chains, err := q.Flush(tester)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(chains) != 2 {
		t.Fatalf("len(chains) = %d, want 2", len(chains))
	}
	if chains[0].length != 0 {
		t.Fatalf("chains[0].length = %d, want 0", chains[0].length)
	}
	if chains[1].length != pattern.Len() {
		t.Fatalf("chains[1].length = %d, want %d", chains[1].length, pattern.Len())
	}
}

// TestFermatQueueAddNeverOverflowsMaxBatchSize covers a pattern length
// that does not evenly divide the batch cap: without the capacity
// margin in newFermatQueue, the queue could grow past MaxBatchSize
// before Add reports full, and the next Flush's fermat.NewBatch call
// would reject the oversized batch.
func TestFermatQueueAddNeverOverflowsMaxBatchSize(t *testing.T) {
	t.Parallel()
	w := wheel.New()
	pattern, err := wheel.NewPattern([]int64{0, 2, 6, 8, 12, 14, 18, 20, 24, 26}) // k = 10
	if err != nil {
		t.Fatalf("NewPattern: %v", err)
	}
	q := newFermatQueue(bigint.U1024{}, w, pattern, fermat.MaxBatchSize)

	for row := int64(0); ; row++ {
		full := q.Add(locator.Candidate{Row: row, Column: 0})
		if q.Len() > fermat.MaxBatchSize {
			t.Fatalf("queue grew to %d deltas, want at most %d", q.Len(), fermat.MaxBatchSize)
		}
		if full {
			break
		}
	}
}

// TestFermatQueueFlushClearsQueueOnTesterError and
// TestFermatQueueFlushClearsQueueOnArithmeticMismatch guard against a
// queue that keeps re-accumulating a batch it has already failed to
// run: every later Flush would fail the same way and no candidate
// past the failure point would ever be tested.
func TestFermatQueueFlushClearsQueueOnTesterError(t *testing.T) {
	t.Parallel()
	w := wheel.New()
	pattern := smallPattern(t)
	q := newFermatQueue(bigint.U1024{}, w, pattern, fermat.MaxBatchSize)
	q.Add(locator.Candidate{Row: 0, Column: 0})

	if _, err := q.Flush(errTester{err: errors.New("device gone")}); err == nil {
		t.Fatalf("Flush: want error")
	}
	if q.Len() != 0 {
		t.Fatalf("queue not cleared after tester error, Len() = %d", q.Len())
	}
}

func TestFermatQueueFlushClearsQueueOnArithmeticMismatch(t *testing.T) {
	t.Parallel()
	w := wheel.New()
	pattern := smallPattern(t)
	q := newFermatQueue(bigint.U1024{}, w, pattern, fermat.MaxBatchSize)
	q.Add(locator.Candidate{Row: 0, Column: 0})

	if _, err := q.Flush(mismatchTester{}); err == nil {
		t.Fatalf("Flush: want error")
	}
	if q.Len() != 0 {
		t.Fatalf("queue not cleared after arithmetic mismatch, Len() = %d", q.Len())
	}
}

func TestClassifyChainDifficultyMatchesBatchCandidate(t *testing.T) {
	t.Parallel()
	origin := bigint.FromBig(big.NewInt(1_000_000_007))
	deltas := []uint64{0, 2, 6, 8}
	batch, err := fermat.NewBatch(origin, deltas)
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}
	result := &fermat.Result{Results: []byte{1, 1, 0, 1}, Attempted: 4, Passed: 3}

	ch := classifyChain(batch, result, candidateEntry{row: 0, column: 0, baseIdx: 0}, 4)
	if ch.length != 2 {
		t.Fatalf("length = %d, want 2", ch.length)
	}

	want := difficulty.Of(2, batch.Candidate(2))
	if ch.difficulty != want {
		t.Fatalf("difficulty = %v, want %v (from terminal %s)", ch.difficulty, want, batch.Candidate(2))
	}
}
