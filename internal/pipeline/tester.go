// Package pipeline implements spec.md §4.4's controller: one Worker
// per configured device sweeping its own nonce subspace, feeding
// candidates into a per-worker Fermat queue, classifying completed
// chains, and handing qualifying shares off to an I/O pool so a slow
// submission callback never stalls the mining loop.
//
// The state machine and its stopCh/resultCh-style cancellation is
// grounded on Miner.miningLoop and Miner.mineWithWorkers in
// cmd/dilithium-gpu-miner/miner.go: a long-running per-worker loop
// that polls a shared "is this still the block we're working on"
// check on every iteration and a statsLoop reporting counters, here
// generalised from one SHA-256 hash per nonce to one sieve batch plus
// a Fermat-queue flush per iteration. PoolWorker.mineAndSubmitShares
// in cmd/dilithium-gpu-miner/pool.go contributes the other half:
// canceling one in-flight attempt as soon as newer work replaces it,
// here implemented as a generation counter rather than a context
// rebuilt per attempt, since a worker's sieve origin (not a
// cancellation token) is what actually needs to change between
// blocks.
package pipeline

import (
	"fmt"

	"nexusminer/internal/fermat"
)

// Tester abstracts the Fermat batch backend: fermat.Batch.RunCPU for
// the CPU reference path, or *fermat.GPUTester for a cuda build.
// Worker and Controller only ever see this interface, which is what
// lets this package's tests substitute stub testers.
type Tester interface {
	Run(b *fermat.Batch) (*fermat.Result, error)
}

type cpuTester struct{}

func (cpuTester) Run(b *fermat.Batch) (*fermat.Result, error) {
	return b.RunCPU(), nil
}

// NewCPUTester returns the CPU reference Tester, the fallback path
// spec.md §6's Environment section requires whenever no GPU is
// present or the cross-check invariant is being exercised.
func NewCPUTester() Tester { return cpuTester{} }

// NewTester builds a GPU-backed Tester on deviceID when useGPU is set
// and this binary was built with the cuda tag, falling back to the
// CPU reference Tester with a logged warning otherwise. A Controller
// shares one Tester across every worker, so multi-device Fermat
// dispatch (as opposed to multi-device sieving, which newSieveEngine
// does select per worker) targets the first configured device only.
func NewTester(useGPU bool, deviceID int) Tester {
	if useGPU {
		gpu, err := fermat.NewGPUTester(deviceID, fermat.MaxBatchSize)
		if err == nil {
			return gpu
		}
		fmt.Printf("[!] device %d: %v, falling back to CPU fermat\n", deviceID, err)
	}
	return cpuTester{}
}
