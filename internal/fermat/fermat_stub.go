//go:build !cuda

package fermat

import "fmt"

// GPUFermatAvailable is false in binaries built without the cuda tag.
const GPUFermatAvailable = false

// GPUTester is a stub when CUDA is unavailable; NewGPUTester always
// fails so callers fall back to Batch.RunCPU.
type GPUTester struct{}

// NewGPUTester returns an error when CUDA is unavailable.
func NewGPUTester(deviceID int, batchCap int64) (*GPUTester, error) {
	return nil, fmt.Errorf("fermat: GPU Fermat testing not available - rebuild with build tag 'cuda'")
}

// Close is a no-op stub.
func (t *GPUTester) Close() {}

// Run is a no-op stub.
func (t *GPUTester) Run(b *Batch) (*Result, error) {
	return nil, fmt.Errorf("fermat: GPU Fermat testing not available")
}
