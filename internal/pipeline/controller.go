package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"nexusminer/internal/blockhash"
	"nexusminer/internal/blocksource"
	"nexusminer/internal/config"
	"nexusminer/internal/wheel"
)

// Controller fans one Worker out per configured device — the
// one-worker-per-device concurrency model of spec.md §5 — and joins
// them through an errgroup the way Miner.mineWithWorkers in
// cmd/dilithium-gpu-miner/miner.go joins its CPUWorker goroutines with
// a sync.WaitGroup, generalised here to propagate the first worker
// error (a device failure, say) as cancellation to every sibling
// worker instead of merely waiting for them to finish on their own.
type Controller struct {
	cfg     *config.Config
	workers []*Worker
	io      *ioExecutor
}

// NewController builds one Worker per cfg.DeviceIDs entry, or a
// single worker with InternalID 0 if DeviceIDs is empty (the CPU-only
// path).
func NewController(cfg *config.Config, w *wheel.Wheel, hasher blockhash.Hasher, tester Tester) *Controller {
	ids := cfg.DeviceIDs
	if len(ids) == 0 {
		ids = []int{0}
	}
	workers := make([]*Worker, len(ids))
	for i, id := range ids {
		workers[i] = NewWorker(id, cfg, w, hasher, tester)
	}
	return &Controller{
		cfg:     cfg,
		workers: workers,
		io:      newIOExecutor(len(workers) * 2),
	}
}

// Workers returns the controller's workers, for stats display.
func (c *Controller) Workers() []*Worker { return c.workers }

// SetBlock installs block on every worker. Each worker partitions its
// own nonce subspace by its InternalID, so no coordination between
// workers is needed beyond handing them the same block.
func (c *Controller) SetBlock(block *blocksource.Block) {
	for _, w := range c.workers {
		w.SetBlock(block)
	}
}

// Run launches every worker and blocks until ctx is canceled or a
// worker returns a fatal (non-context) error, at which point every
// other worker is canceled too.
func (c *Controller) Run(ctx context.Context) error {
	defer c.io.Close()

	g, gctx := errgroup.WithContext(ctx)
	for _, worker := range c.workers {
		worker := worker
		g.Go(func() error { return worker.Run(gctx, c.io) })
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("pipeline: controller: %w", err)
	}
	return nil
}
