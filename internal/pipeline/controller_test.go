package pipeline

import (
	"context"
	"testing"
	"time"

	"nexusminer/internal/blockhash"
	"nexusminer/internal/blocksource"
	"nexusminer/internal/wheel"
)

func TestControllerDefaultsToOneWorkerWithoutDeviceIDs(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	c := NewController(cfg, wheel.New(), blockhash.NewBenchHasher(), alwaysPassTester{})
	if len(c.Workers()) != 1 {
		t.Fatalf("len(Workers()) = %d, want 1", len(c.Workers()))
	}
	if c.Workers()[0].InternalID != 0 {
		t.Fatalf("InternalID = %d, want 0", c.Workers()[0].InternalID)
	}
}

func TestControllerOneWorkerPerDeviceID(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.DeviceIDs = []int{2, 5, 7}
	c := NewController(cfg, wheel.New(), blockhash.NewBenchHasher(), alwaysPassTester{})

	if len(c.Workers()) != 3 {
		t.Fatalf("len(Workers()) = %d, want 3", len(c.Workers()))
	}
	for i, wantID := range []int{2, 5, 7} {
		if got := c.Workers()[i].InternalID; got != wantID {
			t.Fatalf("Workers()[%d].InternalID = %d, want %d", i, got, wantID)
		}
	}
}

func TestControllerSetBlockPropagatesToEveryWorker(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.DeviceIDs = []int{0, 1}
	c := NewController(cfg, wheel.New(), blockhash.NewBenchHasher(), alwaysPassTester{})

	block := &blocksource.Block{HeaderBytes: []byte("x"), NBits: 1}
	c.SetBlock(block)

	for _, w := range c.Workers() {
		gen, b := w.currentBlock()
		if gen == 0 || b != block {
			t.Fatalf("worker %d did not receive the block", w.InternalID)
		}
	}
}

func TestControllerRunStopsCleanlyOnCancel(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.DeviceIDs = []int{0, 1}
	c := NewController(cfg, wheel.New(), blockhash.NewBenchHasher(), alwaysPassTester{})

	shares := make(chan blocksource.Share, 8)
	block := &blocksource.Block{
		HeaderBytes: []byte("controller test header"),
		NBits:       10_000_000,
		OnShare: func(s blocksource.Share) {
			select {
			case shares <- s:
			default:
			}
		},
	}
	c.SetBlock(block)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(ctx) }()

	select {
	case <-shares:
	case <-time.After(5 * time.Second):
		t.Fatalf("no share observed within timeout")
	}

	cancel()
	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("Run returned %v, want nil after a caller-initiated cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not exit after cancellation")
	}
}
