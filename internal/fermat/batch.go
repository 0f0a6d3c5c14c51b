package fermat

import (
	"fmt"
	"math/big"

	"nexusminer/internal/bigint"
)

// MaxBatchSize is spec.md §4.3's batch_cap upper bound.
const MaxBatchSize = 1 << 14

// Batch is spec.md §3's FermatBatch: a shared 1024-bit base S and a
// list of small offsets, tested as p_j = S + Delta_j.
type Batch struct {
	Base   bigint.U1024
	Deltas []uint64
}

// NewBatch validates and wraps a batch. Deltas are copied so the
// caller's slice can be reused for the next batch.
func NewBatch(base bigint.U1024, deltas []uint64) (*Batch, error) {
	if len(deltas) == 0 {
		return nil, fmt.Errorf("fermat: batch has no candidates")
	}
	if len(deltas) > MaxBatchSize {
		return nil, fmt.Errorf("fermat: batch size %d exceeds cap %d", len(deltas), MaxBatchSize)
	}
	cp := make([]uint64, len(deltas))
	copy(cp, deltas)
	return &Batch{Base: base, Deltas: cp}, nil
}

// Candidate returns p_j = S + Delta_j for index j.
func (b *Batch) Candidate(j int) *big.Int {
	return new(big.Int).Add(b.Base.ToBig(), new(big.Int).SetUint64(b.Deltas[j]))
}

// Result is the per-batch outcome spec.md §4.3 requires: a result
// byte per input in submission order, plus the (attempted, passed)
// counters used to cross-check against the locator's emission count.
type Result struct {
	Attempted int
	Passed    int
	Results   []byte // 0 or 1, aligned with Batch.Deltas
}

// RunCPU evaluates every candidate in the batch with the arbitrary-
// precision reference test. This is the CPU verification path
// spec.md §6's Environment section requires to exist, and the
// cross-check oracle for Testable Property 4; it is not the
// production path (that dispatches to fermat_cuda.go's GPU batch).
func (b *Batch) RunCPU() *Result {
	res := &Result{Results: make([]byte, len(b.Deltas))}
	for j := range b.Deltas {
		if Test(b.Candidate(j)) {
			res.Results[j] = 1
			res.Passed++
		}
		res.Attempted++
	}
	return res
}

// MontgomeryParams precomputes n0' for every candidate's low limb, the
// host-side step spec.md §4.3 describes ("only the low limb varies
// per candidate, so n0' ... is recomputed per candidate"): the device
// kernel receives these alongside the batch rather than deriving them
// itself.
func (b *Batch) MontgomeryParams() []bigint.MontgomeryParams {
	baseLow := b.Base[0]
	out := make([]bigint.MontgomeryParams, len(b.Deltas))
	for j, d := range b.Deltas {
		lowLimb, _ := bigint.U1024{0: baseLow}.AddUint64(d)
		out[j] = bigint.NewMontgomeryParams(lowLimb[0])
	}
	return out
}
