//go:build cuda

package fermat

/*
#cgo LDFLAGS: -L${SRCDIR}/../../cuda -L/usr/local/cuda/lib64 -lgpuminer -lcudart -lstdc++
#cgo CFLAGS: -I/usr/local/cuda/include

#include <stdint.h>
#include <stdlib.h>

int fermat_gpu_init(int device_id, int64_t batch_cap);
void fermat_gpu_cleanup(int device_id);

int fermat_gpu_batch(
    int             device_id,
    const uint64_t* base_limbs,
    const uint64_t* deltas,
    const uint64_t* n0_primes,
    int64_t         count,
    uint8_t*        out_results
);
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// GPUFermatAvailable is true when this binary was built with the cuda
// tag, mirroring sieve.GPUSievingAvailable.
const GPUFermatAvailable = true

// GPUTester dispatches Fermat batches to a CUDA device, using the
// sliding 5-bit window Montgomery exponentiation spec.md §4.3
// mandates for the device path.
type GPUTester struct {
	deviceID int
}

// NewGPUTester claims deviceID and allocates device-side batch
// scratch sized for up to batchCap candidates.
func NewGPUTester(deviceID int, batchCap int64) (*GPUTester, error) {
	ret := C.fermat_gpu_init(C.int(deviceID), C.int64_t(batchCap))
	if ret != 0 {
		return nil, fmt.Errorf("fermat: gpu device %d init failed", deviceID)
	}
	return &GPUTester{deviceID: deviceID}, nil
}

// Close releases the device's batch scratch.
func (t *GPUTester) Close() {
	C.fermat_gpu_cleanup(C.int(t.deviceID))
}

// Run dispatches one device batch invocation, awaiting completion
// before reading results back (spec.md §4.3: "completion is awaited
// before results are read back").
func (t *GPUTester) Run(b *Batch) (*Result, error) {
	params := b.MontgomeryParams()
	n0Primes := make([]uint64, len(params))
	for i, p := range params {
		n0Primes[i] = p.N0Prime
	}

	out := make([]byte, len(b.Deltas))
	ret := C.fermat_gpu_batch(
		C.int(t.deviceID),
		(*C.uint64_t)(unsafe.Pointer(&b.Base[0])),
		(*C.uint64_t)(unsafe.Pointer(&b.Deltas[0])),
		(*C.uint64_t)(unsafe.Pointer(&n0Primes[0])),
		C.int64_t(len(b.Deltas)),
		(*C.uint8_t)(unsafe.Pointer(&out[0])),
	)
	if ret != 0 {
		return nil, fmt.Errorf("fermat: gpu device %d batch failed", t.deviceID)
	}

	res := &Result{Attempted: len(out), Results: out}
	for _, v := range out {
		if v == 1 {
			res.Passed++
		}
	}
	return res, nil
}
