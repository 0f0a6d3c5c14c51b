// Package difficulty implements spec.md §4.5's classifier: a
// confirmed chain's difficulty is its integer length plus a
// fractional component derived from the first candidate in the
// sequence that failed the Fermat test.
package difficulty

import (
	"math/big"

	"nexusminer/internal/fermat"
)

// FractionalLength computes f in [0,1) from the Fermat residue of the
// chain's first failing candidate terminal: f = (terminal - residue) /
// terminal. A residue of 1 would mean the candidate actually passed
// Fermat, which is a caller error (the terminal is defined as the one
// that failed).
func FractionalLength(terminal *big.Int) float64 {
	residue := fermat.Residue(terminal)
	if residue.Cmp(big.NewInt(1)) == 0 {
		panic("difficulty: FractionalLength called on a Fermat-passing terminal")
	}
	diff := new(big.Int).Sub(terminal, residue)
	f, _ := new(big.Rat).SetFrac(diff, terminal).Float64()
	return f
}

// Of returns a confirmed chain's difficulty, length + f(terminal),
// where length is the count of confirmed probable primes preceding
// terminal and terminal is the first candidate in the sequence that
// failed the Fermat test.
func Of(length int, terminal *big.Int) float64 {
	return float64(length) + FractionalLength(terminal)
}

// Target converts the block's nBits field into the comparison
// threshold spec.md §4.5 specifies: target = nBits / 10^7.
func Target(nBits uint32) float64 {
	return float64(nBits) / 1e7
}

// Accept reports whether a chain's difficulty meets or exceeds the
// block's target.
func Accept(chainDifficulty, target float64) bool {
	return chainDifficulty >= target
}
