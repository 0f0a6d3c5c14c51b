// Package sieve implements the wheel-factorised segmented sieve
// described by spec.md §4.1: a bitmap of wheel positions, one plane
// per pattern offset, cleared by sieving primes up to a configured
// limit.
//
// The prime table and segmented-marking approach are grounded on
// _examples/other_examples/IoFinnet-threshlib__primes.go's
// GetPrimesUpTo (a plain Eratosthenes sieve used to seed a larger
// arithmetic routine) and on
// _examples/other_examples/anisomorphic-Parallel-Prime-Sieve__main.go's
// segmented, bit-packed OddBits approach to sweeping a large integer
// range in fixed-size chunks.
package sieve

// SievingPrimes returns every prime q with 3 <= q <= limit, using a
// plain Eratosthenes sieve over odd candidates. 2 is excluded: wheel
// residues are odd, W and the pattern offsets are even, so with an
// even origin every sieved value is odd and 2 never contributes a
// useful strike.
func SievingPrimes(limit int64) []int64 {
	if limit < 3 {
		return nil
	}
	composite := make([]bool, limit+1)
	var primes []int64
	for n := int64(3); n <= limit; n += 2 {
		if composite[n] {
			continue
		}
		primes = append(primes, n)
		for m := n * n; m <= limit; m += 2 * n {
			composite[m] = true
		}
	}
	return primes
}
