package locator

import (
	"math/big"

	"nexusminer/internal/bigint"
	"nexusminer/internal/wheel"
)

// Nonce computes the reported nonce for a candidate's base position,
// per spec.md §4.2: the 64-bit offset from origin S is
// j0*W + R[i0], and the nonce is S + j0*W + R[i0] - H.
//
// This is host-side control-plane arithmetic (building one value per
// emitted candidate, not a hot-loop operation), so math/big is used
// directly rather than U1024's limited arithmetic, consistent with
// spec.md §9's big-integer design note.
func Nonce(origin bigint.U1024, h bigint.U1024, w *wheel.Wheel, c Candidate) bigint.U1024 {
	offset := new(big.Int).Mul(big.NewInt(c.Row), big.NewInt(wheel.Modulus))
	offset.Add(offset, big.NewInt(w.Residue(c.Column)))

	nonce := new(big.Int).Add(origin.ToBig(), offset)
	nonce.Sub(nonce, h.ToBig())
	if nonce.Sign() < 0 {
		panic("locator: nonce computation underflowed below zero")
	}
	return bigint.FromBig(nonce)
}

// BasePrime reconstructs the candidate's base value S + j0*W + R[i0],
// the prime that the reported nonce plus H must equal (spec.md §8
// Testable Property 5: "reported_nonce + H equals the candidate's
// confirmed base prime").
func BasePrime(origin bigint.U1024, w *wheel.Wheel, c Candidate) bigint.U1024 {
	offset := new(big.Int).Mul(big.NewInt(c.Row), big.NewInt(wheel.Modulus))
	offset.Add(offset, big.NewInt(w.Residue(c.Column)))
	base := new(big.Int).Add(origin.ToBig(), offset)
	return bigint.FromBig(base)
}
