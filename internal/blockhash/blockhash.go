// Package blockhash defines the opaque Skein->Keccak collaborator
// contract of spec.md §6: the core calls an external hasher on
// header_bytes to obtain the 1024-bit H it sieves around. The
// production hasher (Skein-1024 feeding Keccak) is out of scope
// (Non-goal); this package only ships the interface plus a
// deterministic stand-in fast enough to drive the pipeline's
// benchmark and tests without one.
package blockhash

import (
	"encoding/binary"

	"github.com/cloudflare/circl/simd/keccakf1600"
)

// Hasher is the opaque collaborator spec.md §6 describes: it reduces
// an arbitrary-length block header to the 1024-bit value H the sieve
// treats as its chain origin.
type Hasher interface {
	Hash(headerBytes []byte) [128]byte
}

// BenchHasher is a SIMD Keccak-f[1600] sponge used only as a
// test/benchmark double for Hasher. It is not the production Skein->
// Keccak hash spec.md §6 specifies and must never be mistaken for it;
// it exists solely so internal/pipeline's tests and
// cmd/nexus-miner's --benchmark mode have a fast, deterministic
// header hasher to exercise without a real Skein implementation.
type BenchHasher struct{}

// NewBenchHasher constructs a BenchHasher.
func NewBenchHasher() *BenchHasher { return &BenchHasher{} }

// Hash absorbs headerBytes into a Keccak-f[1600] sponge, one 200-byte
// (1600-bit) state's worth of rate per permutation, and squeezes the
// first 128 bytes (1024 bits) of the final state as H.
func (h *BenchHasher) Hash(headerBytes []byte) [128]byte {
	// keccakf1600 only exposes interleaved two- and four-way permutation
	// state; a single Keccak-f[1600] lane is obtained by driving StateX2
	// and only ever reading/writing its first (even-indexed) lane.
	var perm keccakf1600.StateX2
	state := perm.Initialize(false)

	for offset := 0; offset < len(headerBytes); offset += 200 {
		end := min(offset+200, len(headerBytes))
		var buf [200]byte
		copy(buf[:], headerBytes[offset:end])
		for w := 0; w < 25; w++ {
			state[2*w] ^= binary.LittleEndian.Uint64(buf[w*8 : w*8+8])
		}
		perm.Permute()
	}
	if len(headerBytes) == 0 {
		perm.Permute()
	}

	var out [128]byte
	for w := 0; w < 16; w++ {
		binary.LittleEndian.PutUint64(out[w*8:w*8+8], state[2*w])
	}
	return out
}
