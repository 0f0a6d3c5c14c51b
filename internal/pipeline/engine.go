package pipeline

import (
	"fmt"

	"nexusminer/internal/bigint"
	"nexusminer/internal/sieve"
	"nexusminer/internal/wheel"
)

// sieveEngine is the shape both sieve backends are normalised to:
// sieve.Engine's error-free CPU methods and sieve.GPUEngine's
// fallible device ones, so Worker can pick either at startup behind
// one interface rather than branching on cfg.UseGPU on every batch.
type sieveEngine interface {
	SetOrigin(origin bigint.U1024) error
	SieveBatch(baseRow, rows int64) (*sieve.Bitmap, error)
	Close()
}

// cpuEngine adapts *sieve.Engine's no-error methods to sieveEngine.
type cpuEngine struct {
	*sieve.Engine
}

func (e cpuEngine) SetOrigin(origin bigint.U1024) error {
	e.Engine.SetOrigin(origin)
	return nil
}

func (e cpuEngine) SieveBatch(baseRow, rows int64) (*sieve.Bitmap, error) {
	return e.Engine.SieveBatch(baseRow, rows), nil
}

func (cpuEngine) Close() {}

// newSieveEngine builds the GPU engine on deviceID when useGPU is
// set, falling back to the CPU reference engine with a logged warning
// if the binary wasn't built with the cuda tag or device init fails.
func newSieveEngine(useGPU bool, deviceID int, w *wheel.Wheel, pattern *wheel.Pattern, limit int64) sieveEngine {
	if useGPU {
		gpu, err := sieve.NewGPUEngine(deviceID, w, pattern, limit)
		if err == nil {
			return gpu
		}
		fmt.Printf("[!] worker %d: %v, falling back to CPU sieve\n", deviceID, err)
	}
	return cpuEngine{sieve.NewEngine(w, pattern, limit)}
}
