// Package minererr defines the five error kinds spec.md §7 assigns a
// distinct recovery policy to: configuration invalid, device failure,
// arithmetic mismatch, stale block, and callback not set. Call sites
// wrap a sentinel with fmt.Errorf's %w the same way the teacher wraps
// every error it returns (see blockchain.go), so callers can still
// dispatch on kind via errors.Is while keeping the teacher's plain
// wrapped-error convention instead of a custom error interface.
package minererr

import "errors"

var (
	// ErrConfigInvalid is kind (i): refuse to start.
	ErrConfigInvalid = errors.New("minererr: configuration invalid")
	// ErrDeviceFailure is kind (ii): worker-fatal, escalate to the
	// supervisor.
	ErrDeviceFailure = errors.New("minererr: device failure")
	// ErrArithmeticMismatch is kind (iii): the batch is discarded,
	// the worker is marked unhealthy but continues.
	ErrArithmeticMismatch = errors.New("minererr: arithmetic mismatch")
	// ErrStaleBlock is kind (iv): dropped silently, recovered locally.
	ErrStaleBlock = errors.New("minererr: stale block")
	// ErrNoCallback is kind (v): logged and dropped, recovered locally.
	ErrNoCallback = errors.New("minererr: callback not set")
)

// Policy describes what a Controller should do with an error of a
// given kind, per spec.md §7's policy table.
type Policy int

const (
	// PolicyRecover drops the error after logging; the worker
	// continues unaffected.
	PolicyRecover Policy = iota
	// PolicyEscalate surfaces the error to the supervisor; the
	// worker is stopped or marked unhealthy.
	PolicyEscalate
	// PolicyRefuse means the process must not start at all.
	PolicyRefuse
)

// PolicyFor returns the recovery policy for err, matched against the
// five sentinels via errors.Is. An error matching none of them
// defaults to PolicyEscalate, since an unclassified failure is safer
// treated as worker-fatal than silently dropped.
func PolicyFor(err error) Policy {
	switch {
	case errors.Is(err, ErrConfigInvalid):
		return PolicyRefuse
	case errors.Is(err, ErrDeviceFailure), errors.Is(err, ErrArithmeticMismatch):
		return PolicyEscalate
	case errors.Is(err, ErrStaleBlock), errors.Is(err, ErrNoCallback):
		return PolicyRecover
	default:
		return PolicyEscalate
	}
}
