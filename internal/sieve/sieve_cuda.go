//go:build cuda

package sieve

/*
#cgo LDFLAGS: -L${SRCDIR}/../../cuda -L/usr/local/cuda/lib64 -lgpuminer -lcudart -lstdc++
#cgo CFLAGS: -I/usr/local/cuda/include

#include <stdint.h>
#include <stdlib.h>

int sieve_gpu_init(int device_id, int wheel_size, int offsets, int64_t limit);
void sieve_gpu_cleanup(int device_id);

int sieve_gpu_set_origin(int device_id, const uint64_t* origin_limbs, const int64_t* sieving_primes, int64_t prime_count);

int sieve_gpu_batch(
    int        device_id,
    int64_t    base_row,
    int64_t    rows,
    uint64_t*  out_words,
    int64_t    words_per_plane
);
*/
import "C"

import (
	"fmt"
	"unsafe"

	"nexusminer/internal/bigint"
	"nexusminer/internal/wheel"
)

// GPUSievingAvailable is true when this binary was built with the
// cuda tag, mirroring the teacher's GPUMiningAvailable constant.
const GPUSievingAvailable = true

// GPUEngine dispatches sieve_batch to a CUDA device, matching the CPU
// Engine's shape so the pipeline controller can select either behind
// the same interface at startup (spec.md §9 "host/device buffer
// duality").
type GPUEngine struct {
	deviceID int
	w        *wheel.Wheel
	pattern  *wheel.Pattern
	limit    int64
	primes   []int64
}

// NewGPUEngine claims deviceID and allocates device-side sieve state.
func NewGPUEngine(deviceID int, w *wheel.Wheel, pattern *wheel.Pattern, limit int64) (*GPUEngine, error) {
	primes := SievingPrimes(limit)
	ret := C.sieve_gpu_init(C.int(deviceID), C.int(w.Size()), C.int(pattern.Len()), C.int64_t(limit))
	if ret != 0 {
		return nil, fmt.Errorf("sieve: gpu device %d init failed", deviceID)
	}
	return &GPUEngine{deviceID: deviceID, w: w, pattern: pattern, limit: limit, primes: primes}, nil
}

// Close releases the device's sieve state.
func (e *GPUEngine) Close() {
	C.sieve_gpu_cleanup(C.int(e.deviceID))
}

// Primes returns the sieving-prime table used by this engine.
func (e *GPUEngine) Primes() []int64 { return e.primes }

// SetOrigin uploads origin S and the sieving-prime table to the
// device and triggers its own s_{q,i} recomputation.
func (e *GPUEngine) SetOrigin(origin bigint.U1024) error {
	limbs := (*C.uint64_t)(unsafe.Pointer(&origin[0]))
	primesPtr := (*C.int64_t)(unsafe.Pointer(&e.primes[0]))
	ret := C.sieve_gpu_set_origin(C.int(e.deviceID), limbs, primesPtr, C.int64_t(len(e.primes)))
	if ret != 0 {
		return fmt.Errorf("sieve: gpu device %d set_origin failed", e.deviceID)
	}
	return nil
}

// SieveBatch dispatches one device-side sieve_batch invocation and
// reads the resulting bitmap back into host memory.
func (e *GPUEngine) SieveBatch(baseRow, rows int64) (*Bitmap, error) {
	bm := NewBitmap(rows, e.w.Size(), e.pattern.Len())
	wordsPerPlane := int64(len(bm.PlaneWords(0)))

	for o := 0; o < e.pattern.Len(); o++ {
		words := bm.PlaneWords(o)
		ret := C.sieve_gpu_batch(
			C.int(e.deviceID),
			C.int64_t(baseRow),
			C.int64_t(rows),
			(*C.uint64_t)(unsafe.Pointer(&words[0])),
			C.int64_t(wordsPerPlane),
		)
		if ret != 0 {
			return nil, fmt.Errorf("sieve: gpu device %d sieve_batch failed on offset plane %d", e.deviceID, o)
		}
	}
	return bm, nil
}
