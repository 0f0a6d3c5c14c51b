// Package fermat implements the batch Fermat probable-prime tester of
// spec.md §4.3: 2^(p-1) mod p == 1 for every candidate in a batch.
//
// The base=2 Fermat test itself is grounded on
// _examples/other_examples/coldbrew233-tss-crypto__safe_prime.go's
// fermatBase2 pre-screen, generalised here from a single *big.Int
// check into the batched, origin-relative form spec.md §4.3 requires:
// a shared 1024-bit base S plus a list of small 64-bit deltas.
package fermat

import "math/big"

var (
	bigOne = big.NewInt(1)
	bigTwo = big.NewInt(2)
)

// Test reports whether p passes the base-2 Fermat test: 2^(p-1) mod p
// == 1. Values below 2 and even values are decided outright (only 2
// itself passes) rather than via modular exponentiation on a
// non-invertible base, mirroring fermatBase2's own short-circuits.
func Test(p *big.Int) bool {
	if p.Sign() <= 0 || p.Cmp(bigTwo) < 0 {
		return false
	}
	if p.Bit(0) == 0 {
		return p.Cmp(bigTwo) == 0
	}
	return Residue(p).Cmp(bigOne) == 0
}

// Residue returns 2^(p-1) mod p, the Fermat witness value. A passing
// candidate has Residue(p) == 1; a failing one's residue is the input
// the difficulty package's fractional-length calculation needs
// (spec.md §4.5: "the fractional difficulty from the first failed
// Fermat residue"). p must be odd and >= 3; callers needing the
// even/sub-2 short-circuits should call Test instead.
func Residue(p *big.Int) *big.Int {
	exponent := new(big.Int).Sub(p, bigOne)
	return new(big.Int).Exp(bigTwo, exponent, p)
}
