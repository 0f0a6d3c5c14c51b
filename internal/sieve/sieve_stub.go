//go:build !cuda

package sieve

import (
	"fmt"

	"nexusminer/internal/bigint"
	"nexusminer/internal/wheel"
)

// GPUSievingAvailable is false in binaries built without the cuda
// tag, mirroring the teacher's GPUMiningAvailable constant.
const GPUSievingAvailable = false

// GPUEngine is a stub when CUDA is unavailable; NewGPUEngine always
// fails so callers fall back to the CPU reference Engine.
type GPUEngine struct{}

// NewGPUEngine returns an error when CUDA is unavailable.
func NewGPUEngine(deviceID int, w *wheel.Wheel, pattern *wheel.Pattern, limit int64) (*GPUEngine, error) {
	return nil, fmt.Errorf("sieve: GPU sieving not available - rebuild with build tag 'cuda'")
}

// Close is a no-op stub.
func (e *GPUEngine) Close() {}

// Primes is a no-op stub.
func (e *GPUEngine) Primes() []int64 { return nil }

// SetOrigin is a no-op stub.
func (e *GPUEngine) SetOrigin(origin bigint.U1024) error {
	return fmt.Errorf("sieve: GPU sieving not available")
}

// SieveBatch is a no-op stub.
func (e *GPUEngine) SieveBatch(baseRow, rows int64) (*Bitmap, error) {
	return nil, fmt.Errorf("sieve: GPU sieving not available")
}
