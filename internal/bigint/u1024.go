// Package bigint implements the fixed-width 1024-bit integer
// representation that candidate primes and sieve origins use on the
// hot path. Production modular exponentiation runs on the GPU against
// this same 16-limb layout; math/big is reserved for host-side setup
// and cross-checking, never for the per-candidate hot loop.
package bigint

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"math/bits"
)

// Limbs is the number of 64-bit words in a U1024 (16 * 64 = 1024 bits).
const Limbs = 16

// U1024 is an unsigned 1024-bit integer, limbs ordered least-significant
// first (U1024[0] holds bits 0-63). This is the "fixed 16-limb"
// representation spec.md's Design Notes mandate for device buffers.
type U1024 [Limbs]uint64

// FromBig converts a non-negative, at-most-1024-bit big.Int into a
// U1024. It panics if x is negative or does not fit, mirroring the
// host-side setup helpers the teacher uses around its block hashing
// (there, malformed input is a programmer error, not a runtime one).
func FromBig(x *big.Int) U1024 {
	if x.Sign() < 0 {
		panic("bigint: FromBig: negative value")
	}
	if x.BitLen() > Limbs*64 {
		panic(fmt.Sprintf("bigint: FromBig: value has %d bits, want <= %d", x.BitLen(), Limbs*64))
	}
	var buf [Limbs * 8]byte
	x.FillBytes(buf[:])
	var out U1024
	for i := 0; i < Limbs; i++ {
		off := len(buf) - (i+1)*8
		out[i] = binary.BigEndian.Uint64(buf[off : off+8])
	}
	return out
}

// ToBig converts u to a big.Int, for host-side verification and for
// handing candidates to the external difficulty/hash collaborators.
func (u U1024) ToBig() *big.Int {
	var buf [Limbs * 8]byte
	for i := 0; i < Limbs; i++ {
		off := len(buf) - (i+1)*8
		binary.BigEndian.PutUint64(buf[off:off+8], u[i])
	}
	return new(big.Int).SetBytes(buf[:])
}

// String renders u as a decimal string, for logging and test failures.
func (u U1024) String() string {
	return u.ToBig().String()
}

// Add returns a+b and the final carry-out (0 or 1).
func (a U1024) Add(b U1024) (U1024, uint64) {
	var out U1024
	var carry uint64
	for i := 0; i < Limbs; i++ {
		out[i], carry = bits.Add64(a[i], b[i], carry)
	}
	return out, carry
}

// AddUint64 returns a+x and the final carry-out.
func (a U1024) AddUint64(x uint64) (U1024, uint64) {
	var out U1024
	var carry uint64
	out[0], carry = bits.Add64(a[0], x, 0)
	for i := 1; i < Limbs; i++ {
		out[i], carry = bits.Add64(a[i], 0, carry)
	}
	return out, carry
}

// Sub returns a-b and the final borrow-out (1 if a < b).
func (a U1024) Sub(b U1024) (U1024, uint64) {
	var out U1024
	var borrow uint64
	for i := 0; i < Limbs; i++ {
		out[i], borrow = bits.Sub64(a[i], b[i], borrow)
	}
	return out, borrow
}

// Cmp returns -1, 0, or 1 as a is less than, equal to, or greater than b.
func (a U1024) Cmp(b U1024) int {
	for i := Limbs - 1; i >= 0; i-- {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// IsZero reports whether a is the zero value.
func (a U1024) IsZero() bool {
	for _, limb := range a {
		if limb != 0 {
			return false
		}
	}
	return true
}

// IsEven reports whether a's least significant bit is clear.
func (a U1024) IsEven() bool {
	return a[0]&1 == 0
}

// Mod64 returns a mod q for a small modulus q (q must be non-zero).
// Used by the starting-multiples computation, which only ever needs
// the sieve origin reduced modulo a sieving prime.
func (a U1024) Mod64(q uint64) uint64 {
	if q == 0 {
		panic("bigint: Mod64: modulus is zero")
	}
	// math/big's word-limited Mod is the correct, spec-sanctioned tool
	// here (host-side setup, not the hot loop): spec.md §9 reserves the
	// "no generic big-int dependency" rule for the device path only.
	m := new(big.Int).Mod(a.ToBig(), new(big.Int).SetUint64(q))
	return m.Uint64()
}
