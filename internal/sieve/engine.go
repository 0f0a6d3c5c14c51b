package sieve

import (
	"nexusminer/internal/bigint"
	"nexusminer/internal/wheel"
)

// Engine is the CPU reference implementation of spec.md §4.1's
// wheel-factorised segmented sieve: set_origin, sieve_batch and
// count_survivors. A GPU-backed GPUEngine exists in sieve_cuda.go
// (build tag cuda; sieve_stub.go's GPUEngine always fails to
// construct). This Engine is built in every configuration, is the
// fallback when no device is present, and is what every correctness
// test in this package exercises directly.
type Engine struct {
	w       *wheel.Wheel
	pattern *wheel.Pattern
	limit   int64
	primes  []int64

	origin bigint.U1024
	sm     *StartingMultiples
}

// NewEngine builds an engine for wheel w, constellation pattern, and
// sieving-prime limit L (spec.md §6 sieving_prime_limit_log2).
func NewEngine(w *wheel.Wheel, pattern *wheel.Pattern, limit int64) *Engine {
	return &Engine{
		w:       w,
		pattern: pattern,
		limit:   limit,
		primes:  SievingPrimes(limit),
	}
}

// Primes returns the sieving-prime table used by this engine.
func (e *Engine) Primes() []int64 { return e.primes }

// SetOrigin recomputes s_{q,i} for the new sieve origin S (spec.md
// §4.1 set_origin), called once per block.
func (e *Engine) SetOrigin(origin bigint.U1024) {
	e.origin = origin
	e.sm = BuildStartingMultiples(e.w, e.pattern, e.primes, origin)
}

// SieveBatch clears bits for a contiguous range of rows
// [baseRow, baseRow+rows) across every offset plane, applying every
// sieving prime's strikes to every offset (spec.md §4.1 sieve_batch).
// It is deterministic given the same origin, baseRow and rows.
func (e *Engine) SieveBatch(baseRow, rows int64) *Bitmap {
	if e.sm == nil {
		panic("sieve: SieveBatch called before SetOrigin")
	}
	bm := NewBitmap(rows, e.w.Size(), e.pattern.Len())
	wheelSize := e.w.Size()
	offsets := e.pattern.Len()

	for _, d := range e.sm.degens {
		markAllPlanes(bm, d, wheelSize, offsets, rows)
	}
	for _, s := range e.sm.strided {
		strikePlanes(bm, s, wheelSize, offsets, rows, baseRow)
	}
	return bm
}

// markAllPlanes clears every residue a degenerate prime rules out for
// every row, independent of row position (spec.md §4.1: the jW term
// vanishes mod a prime dividing W, so the same residues are marked for
// every row). The per-offset mask is identical across rows, so a
// word-aligned row clears in one op via Bitmap.ClearWordMask's
// small-prime mask table instead of one Clear call per residue.
func markAllPlanes(bm *Bitmap, d degenerate, wheelSize, offsets int, rows int64) {
	for oi := 0; oi < offsets; oi++ {
		var mask uint64
		for ri := 0; ri < wheelSize; ri++ {
			if d.markAll[oi*wheelSize+ri] {
				mask |= uint64(1) << uint(ri)
			}
		}
		if mask == 0 {
			continue
		}
		for j := int64(0); j < rows; j++ {
			if wordAligned(j, wheelSize) {
				bm.ClearWordMask(oi, j, mask)
				continue
			}
			for ri := 0; ri < wheelSize; ri++ {
				if mask&(uint64(1)<<uint(ri)) != 0 {
					bm.Clear(oi, j, ri)
				}
			}
		}
	}
}

// wordAligned reports whether row j's wheelSize residue columns fall
// entirely inside one 64-bit backing word, the precondition
// Bitmap.ClearWordMask needs to be safe: a mask shifted into a word
// that a row's bits straddle would corrupt the next row's bits.
func wordAligned(j int64, wheelSize int) bool {
	idx := j * int64(wheelSize)
	return idx%64+int64(wheelSize) <= 64
}

func strikePlanes(bm *Bitmap, s stridedPrime, wheelSize, offsets int, rows, baseRow int64) {
	q := s.prime
	for oi := 0; oi < offsets; oi++ {
		for ri := 0; ri < wheelSize; ri++ {
			abs := s.start[oi*wheelSize+ri]
			local := (abs - baseRow) % q
			if local < 0 {
				local += q
			}
			for j := local; j < rows; j += q {
				bm.Clear(oi, j, ri)
			}
		}
	}
}
