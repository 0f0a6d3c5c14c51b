package bigint

import "testing"

func TestNewMontgomeryParams(t *testing.T) {
	t.Parallel()
	cases := []uint64{3, 5, 7, 0xFFFFFFFFFFFFFFFB, 1000000007}
	for _, p0 := range cases {
		params := NewMontgomeryParams(p0)
		// p0 * n0' ≡ -1 (mod 2^64), the defining property of n0'.
		if product := p0 * params.N0Prime; product != ^uint64(0) {
			t.Fatalf("p0=%d: p0*n0' = %d, want %d", p0, product, ^uint64(0))
		}
	}
}

func TestNewMontgomeryParamsRejectsEven(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on even modulus")
		}
	}()
	NewMontgomeryParams(4)
}
