// Package locator implements the chain locator of spec.md §4.2: given
// a swept sieve bitmap and the constellation pattern, it emits every
// base position whose surviving offsets meet the minimum chain
// length.
//
// The sieve engine in internal/sieve materialises one bitmap plane
// per pattern offset, all addressed by the same (row, residue)
// coordinate (spec.md §4.1's "sieving is performed per offset"). That
// choice collapses spec.md's described "(Δj, Δi) wheel coordinate"
// translation step: offset o_i's survival at base (j, i) is simply
// the bit at (j, i) in plane i, so the locator's window is a single
// column across the planes rather than a sliding multi-row window.
package locator

import (
	"math/bits"

	"nexusminer/internal/sieve"
)

// Candidate is spec.md §3's ChainCandidate: a base wheel position and
// the bitmask of pattern offsets that survived there.
type Candidate struct {
	Row    int64
	Column int
	Mask   uint64
}

// Scan walks bm in residue-major (row, column) order and emits every
// base position whose survivor mask has at least kMin bits set,
// ordered ascending by (Row, Column) per spec.md §4.2's tie-break. A
// position is only emitted if offset 0 survives there (the dedup rule
// of spec.md §4.2), whatever the popcount of the other offsets.
func Scan(bm *sieve.Bitmap, kMin int) []Candidate {
	offsets := bm.Offsets()
	if offsets == 0 || offsets > 64 {
		panic("locator: pattern length must be in [1, 64]")
	}

	var out []Candidate
	for j := int64(0); j < bm.Rows(); j++ {
		for i := 0; i < bm.WheelSize(); i++ {
			if !bm.Get(0, j, i) {
				continue
			}
			var mask uint64
			for o := 0; o < offsets; o++ {
				if bm.Get(o, j, i) {
					mask |= 1 << uint(o)
				}
			}
			if bits.OnesCount64(mask) >= kMin {
				out = append(out, Candidate{Row: j, Column: i, Mask: mask})
			}
		}
	}
	return out
}
