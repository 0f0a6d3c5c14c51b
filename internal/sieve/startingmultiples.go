package sieve

import (
	"nexusminer/internal/bigint"
	"nexusminer/internal/wheel"
)

// degenerate marks a sieving prime that divides the wheel modulus
// itself (q in {3,5,7}); spec.md §4.1 notes the jW term vanishes mod
// such q, so every row is either entirely marked or entirely spared
// for a given (offset, residue) pair.
type degenerate struct {
	prime    int64
	markAll  []bool // indexed by offset*wheelSize + residue
}

// stridedPrime is a sieving prime coprime to W: the recurrence
// j_{n+1} = j_n + q holds, so only the first hit row per (offset,
// residue) pair needs to be stored (spec.md §4.1, §3 SievingPrime's
// s_{q,i}).
type stridedPrime struct {
	prime int64
	start []int64 // indexed by offset*wheelSize + residue, value in [0, prime)
}

// StartingMultiples is the s_{q,i} table of spec.md §3, computed once
// per sieve origin via set_origin and consulted by every segment batch
// until the next origin change. It is a host-side reference structure
// suitable for the CPU verification engine and for small/medium test
// sieves; production-scale tables (L in the hundreds of millions) are
// the GPU's responsibility and are represented here only as the
// same-shaped recurrence a device kernel would seed per launch.
type StartingMultiples struct {
	w         *wheel.Wheel
	pattern   *wheel.Pattern
	degens    []degenerate
	strided   []stridedPrime
}

// BuildStartingMultiples computes s_{q,i} for every sieving prime
// against origin S (spec.md §4.1 set_origin).
func BuildStartingMultiples(w *wheel.Wheel, pattern *wheel.Pattern, primes []int64, origin bigint.U1024) *StartingMultiples {
	sm := &StartingMultiples{w: w, pattern: pattern}
	wheelSize := w.Size()
	k := pattern.Len()

	for _, q := range primes {
		if wheel.Modulus%q == 0 {
			mark := make([]bool, k*wheelSize)
			sMod := origin.Mod64(uint64(q))
			for oi := 0; oi < k; oi++ {
				for ri := 0; ri < wheelSize; ri++ {
					c := (int64(sMod) + w.Residue(ri) + pattern.Offsets[oi]) % q
					mark[oi*wheelSize+ri] = c == 0
				}
			}
			sm.degens = append(sm.degens, degenerate{prime: q, markAll: mark})
			continue
		}

		winv := modInverse(wheel.Modulus%q, q)
		sMod := int64(origin.Mod64(uint64(q)))
		start := make([]int64, k*wheelSize)
		for oi := 0; oi < k; oi++ {
			for ri := 0; ri < wheelSize; ri++ {
				c := (sMod + w.Residue(ri) + pattern.Offsets[oi]) % q
				j0 := ((-c % q) + q) % q
				j0 = (j0 * winv) % q
				start[oi*wheelSize+ri] = j0
			}
		}
		sm.strided = append(sm.strided, stridedPrime{prime: q, start: start})
	}
	return sm
}

// modInverse returns a^{-1} mod m for a coprime to m, via the
// extended Euclidean algorithm.
func modInverse(a, m int64) int64 {
	a %= m
	if a < 0 {
		a += m
	}
	g, x, _ := extGCD(a, m)
	if g != 1 {
		panic("sieve: modInverse: a and m are not coprime")
	}
	x %= m
	if x < 0 {
		x += m
	}
	return x
}

func extGCD(a, b int64) (g, x, y int64) {
	if b == 0 {
		return a, 1, 0
	}
	g, x1, y1 := extGCD(b, a%b)
	return g, y1, x1 - (a/b)*y1
}
