package sieve

import "math/bits"

// Bitmap holds one plane per pattern offset over N wheel rows of
// wheelSize residue columns each (spec.md §3 SegmentBitmap, §4.1: "the
// bitmap is indexed by (j, i) ... numbers equivalent to a wheel factor
// are never materialised"). A bit is 1 while its integer remains a
// candidate; sieving only clears bits, matching the spec's "never
// re-sets" invariant.
type Bitmap struct {
	planes    [][]uint64
	rows      int64
	wheelSize int
}

// NewBitmap allocates a bitmap for rows wheel rows, wheelSize residue
// columns per row, and one plane per offset. Every bit starts set.
func NewBitmap(rows int64, wheelSize, offsets int) *Bitmap {
	bitsPerPlane := rows * int64(wheelSize)
	words := (bitsPerPlane + 63) / 64
	planes := make([][]uint64, offsets)
	for o := range planes {
		plane := make([]uint64, words)
		for w := range plane {
			plane[w] = ^uint64(0)
		}
		// Clear any bits beyond bitsPerPlane in the final word so
		// CountSurvivors never counts padding as a survivor.
		if rem := bitsPerPlane % 64; rem != 0 && words > 0 {
			mask := uint64(1)<<uint(rem) - 1
			plane[words-1] &= mask
		}
		planes[o] = plane
	}
	return &Bitmap{planes: planes, rows: rows, wheelSize: wheelSize}
}

func (b *Bitmap) bitIndex(j int64, i int) int64 {
	return j*int64(b.wheelSize) + int64(i)
}

// Get reports whether bit (j, i) is still set in offset plane o.
func (b *Bitmap) Get(o int, j int64, i int) bool {
	idx := b.bitIndex(j, i)
	word := b.planes[o][idx/64]
	return word&(uint64(1)<<uint(idx%64)) != 0
}

// Clear clears bit (j, i) in offset plane o.
func (b *Bitmap) Clear(o int, j int64, i int) {
	idx := b.bitIndex(j, i)
	b.planes[o][idx/64] &^= uint64(1) << uint(idx%64)
}

// ClearWordMask XORs out (clears) the bits set in mask at the word
// containing row j's residue columns, for wheel rows small enough
// that multiple residue columns fit in one 64-bit word (spec.md
// §4.1's "small primes ... precomputed mask table ... XOR'd in"). It
// assumes the row fits entirely inside a single word, true whenever
// wheelSize <= 64 and the row is word-aligned.
func (b *Bitmap) ClearWordMask(o int, j int64, mask uint64) {
	idx := b.bitIndex(j, 0)
	b.planes[o][idx/64] &^= mask << uint(idx%64)
}

// Rows returns the number of wheel rows represented.
func (b *Bitmap) Rows() int64 { return b.rows }

// WheelSize returns the number of residue columns per row.
func (b *Bitmap) WheelSize() int { return b.wheelSize }

// Offsets returns the number of pattern-offset planes.
func (b *Bitmap) Offsets() int { return len(b.planes) }

// CountSurvivors returns the total population count across every
// offset plane, used for telemetry and the expected-survivor-ratio
// check of Testable Property / scenario S-A.
func (b *Bitmap) CountSurvivors() int64 {
	var total int64
	for _, plane := range b.planes {
		for _, w := range plane {
			total += int64(bits.OnesCount64(w))
		}
	}
	return total
}

// CountSurvivorsForOffset returns the population count of a single
// offset plane.
func (b *Bitmap) CountSurvivorsForOffset(o int) int64 {
	var total int64
	for _, w := range b.planes[o] {
		total += int64(bits.OnesCount64(w))
	}
	return total
}

// PlaneWords exposes the raw backing words for offset plane o so a
// device readback can overwrite them directly after a GPU sieve_batch
// dispatch, without per-bit Clear calls across a host/device copy.
func (b *Bitmap) PlaneWords(o int) []uint64 { return b.planes[o] }
