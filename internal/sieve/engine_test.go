package sieve

import (
	"math/big"
	"testing"

	"nexusminer/internal/bigint"
	"nexusminer/internal/wheel"
)

func mustPattern(t *testing.T, offsets []int64) *wheel.Pattern {
	t.Helper()
	p, err := wheel.NewPattern(offsets)
	if err != nil {
		t.Fatalf("NewPattern: %v", err)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return p
}

// TestWheelSmokeSC is scenario S-C: S=0, a single-row sweep, and a
// sieving-prime limit too small to strike anything, so every bit at
// the 48 wheel-coprime residues must survive untouched.
func TestWheelSmokeSC(t *testing.T) {
	t.Parallel()
	w := wheel.New()
	pattern := mustPattern(t, []int64{0})

	eng := NewEngine(w, pattern, 7)
	eng.SetOrigin(bigint.FromBig(big.NewInt(0)))
	bm := eng.SieveBatch(0, 1)

	if got := bm.CountSurvivors(); int(got) != w.Size() {
		t.Fatalf("survivors = %d, want %d", got, w.Size())
	}
	for i := 0; i < w.Size(); i++ {
		if !bm.Get(0, 0, i) {
			t.Fatalf("residue index %d (value %d) unexpectedly cleared", i, w.Residue(i))
		}
	}
}

// TestSoundnessAndCompleteness exercises Testable Properties 1 and 2
// against a brute-force trial-division oracle over a small range.
// The origin is chosen large enough that no candidate value can
// coincide with one of its own sieving primes, the classic
// self-elimination pitfall of a plain Eratosthenes sieve.
func TestSoundnessAndCompleteness(t *testing.T) {
	t.Parallel()
	w := wheel.New()
	pattern := mustPattern(t, []int64{0, 2, 6, 8, 12, 18, 20})

	const limit = 97
	const rows = 40
	const origin = 1_000_003 * int64(wheel.Modulus) // a multiple of W, well above `limit`

	eng := NewEngine(w, pattern, limit)
	eng.SetOrigin(bigint.FromBig(big.NewInt(origin)))
	bm := eng.SieveBatch(0, rows)

	primes := eng.Primes()
	for j := int64(0); j < rows; j++ {
		for i := 0; i < w.Size(); i++ {
			for oi, off := range pattern.Offsets {
				value := origin + j*int64(wheel.Modulus) + w.Residue(i) + off
				composite := false
				for _, q := range primes {
					if value%q == 0 {
						composite = true
						break
					}
				}
				got := bm.Get(oi, j, i)
				if composite && got {
					t.Fatalf("soundness violated: value %d divisible by a sieving prime but bit (j=%d,i=%d,o=%d) still set", value, j, i, oi)
				}
				if !composite && !got {
					t.Fatalf("completeness violated: value %d not divisible by any sieving prime <= %d but bit (j=%d,i=%d,o=%d) cleared", value, limit, j, i, oi)
				}
			}
		}
	}
}

// TestSurvivorCountMatchesOracle exercises the S-A scenario's spirit
// at a scale small enough to run quickly: the sieve's survivor count
// over a swept range must match an independent trial-division oracle
// exactly, rather than merely approximate a theoretical density (the
// wheel's exclusion of 2,3,5,7 interacts with small sieving primes
// that divide the offsets in a way a flat prod(1-k/q) model does not
// capture, so only an exact oracle count is a sound check). The
// literal 10^6-limit/10^8-range S-A scenario is out of reach for a
// routine test run; this keeps the same shape at a tractable scale.
func TestSurvivorCountMatchesOracle(t *testing.T) {
	t.Parallel()
	w := wheel.New()
	pattern := mustPattern(t, []int64{0, 2, 6, 8, 12, 18, 20, 26})

	const limit = 997
	const rows = 500
	const origin = 999_983 * int64(wheel.Modulus)

	eng := NewEngine(w, pattern, limit)
	eng.SetOrigin(bigint.FromBig(big.NewInt(origin)))
	bm := eng.SieveBatch(0, rows)

	primes := eng.Primes()
	var oracle int64
	for j := int64(0); j < rows; j++ {
		for i := 0; i < w.Size(); i++ {
			for _, off := range pattern.Offsets {
				value := origin + j*int64(wheel.Modulus) + w.Residue(i) + off
				composite := false
				for _, q := range primes {
					if value%q == 0 {
						composite = true
						break
					}
				}
				if !composite {
					oracle++
				}
			}
		}
	}

	if got := bm.CountSurvivors(); got != oracle {
		t.Fatalf("survivor count %d, want oracle count %d", got, oracle)
	}
}

// TestSieveBatchDeterministic checks that repeated batches over the
// same origin and row range produce identical bitmaps.
func TestSieveBatchDeterministic(t *testing.T) {
	t.Parallel()
	w := wheel.New()
	pattern := mustPattern(t, []int64{0, 4, 6})
	eng := NewEngine(w, pattern, 101)
	eng.SetOrigin(bigint.FromBig(big.NewInt(2_000_000_000)))

	a := eng.SieveBatch(0, 30)
	b := eng.SieveBatch(0, 30)

	for o := 0; o < pattern.Len(); o++ {
		wa, wb := a.PlaneWords(o), b.PlaneWords(o)
		for idx := range wa {
			if wa[idx] != wb[idx] {
				t.Fatalf("non-deterministic sieve_batch at plane %d word %d: %x vs %x", o, idx, wa[idx], wb[idx])
			}
		}
	}
}

// TestSieveBatchSequentialMatchesSinglePass checks that splitting a
// swept range into two sequential batches yields the same survivors
// as sieving the whole range in one pass, i.e. the s_{q,i} advance
// across a batch boundary correctly.
func TestSieveBatchSequentialMatchesSinglePass(t *testing.T) {
	t.Parallel()
	w := wheel.New()
	pattern := mustPattern(t, []int64{0, 4, 6, 10})
	eng := NewEngine(w, pattern, 200)
	eng.SetOrigin(bigint.FromBig(big.NewInt(50_000_000)))

	whole := eng.SieveBatch(0, 60)

	eng2 := NewEngine(w, pattern, 200)
	eng2.SetOrigin(bigint.FromBig(big.NewInt(50_000_000)))
	first := eng2.SieveBatch(0, 30)
	second := eng2.SieveBatch(30, 30)

	for oi := 0; oi < pattern.Len(); oi++ {
		for j := int64(0); j < 30; j++ {
			for i := 0; i < w.Size(); i++ {
				if whole.Get(oi, j, i) != first.Get(oi, j, i) {
					t.Fatalf("first half mismatch at (oi=%d,j=%d,i=%d)", oi, j, i)
				}
				if whole.Get(oi, j+30, i) != second.Get(oi, j, i) {
					t.Fatalf("second half mismatch at (oi=%d,j=%d,i=%d)", oi, j, i)
				}
			}
		}
	}
}
