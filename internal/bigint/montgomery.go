package bigint

// MontgomeryParams is the per-candidate precomputation the Fermat
// batcher hands to the GPU kernel alongside each 1024-bit candidate:
// only the low limb of p varies between candidates in a batch (the
// high 960 bits are the shared batch base S), so n0' is cheap to
// recompute host-side per candidate rather than re-derived on device
// (spec.md §4.3).
type MontgomeryParams struct {
	N0Prime uint64 // -p^{-1} mod 2^64
}

// NewMontgomeryParams derives n0' = -p0^{-1} mod 2^64 from the low
// limb of an odd modulus p, via the standard Newton-Raphson inverse
// used by every Montgomery arithmetic implementation: starting from a
// 2-bit-accurate approximation (p0 itself, since p0*p0 ≡ 1 mod 4 for
// odd p0), each iteration doubles the number of correct bits.
func NewMontgomeryParams(p0 uint64) MontgomeryParams {
	if p0&1 == 0 {
		panic("bigint: NewMontgomeryParams: modulus must be odd")
	}
	y := p0
	for i := 0; i < 5; i++ {
		y = y * (2 - p0*y)
	}
	return MontgomeryParams{N0Prime: -y}
}
