package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"nexusminer/internal/bigint"
	"nexusminer/internal/blockhash"
	"nexusminer/internal/blocksource"
	"nexusminer/internal/config"
	"nexusminer/internal/difficulty"
	"nexusminer/internal/fermat"
	"nexusminer/internal/locator"
	"nexusminer/internal/minererr"
	"nexusminer/internal/wheel"
)

// State is a worker's position in the Idle -> Priming -> Running ->
// Draining/Submitting state machine of spec.md §4.4.
type State int32

const (
	Idle State = iota
	Priming
	Running
	Draining
	Submitting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Priming:
		return "priming"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Submitting:
		return "submitting"
	default:
		return "unknown"
	}
}

// Stats holds the counters a worker exposes for progress display.
// Healthy starts true and is latched false by handleFlushError on an
// arithmetic mismatch (spec.md §7 kind (iii)): the worker keeps
// mining, but the supervisor should surface this to an operator
// rather than let it pass unnoticed.
type Stats struct {
	SegmentsSwept   atomic.Int64
	CandidatesFound atomic.Int64
	SharesFound     atomic.Int64
	Healthy         atomic.Bool
}

// Worker runs the sieve -> locate -> test -> classify loop for one
// device's nonce subspace. InternalID is the worker's high-16-bit
// nonce partition: spec.md §5 reserves 2^48 nonces per worker by
// placing InternalID in the top 16 bits of every nonce it can report,
// the disjointness this package's worker-subspace test checks.
type Worker struct {
	InternalID int

	cfg    *config.Config
	wheel  *wheel.Wheel
	hasher blockhash.Hasher
	tester Tester

	fermatSem *semaphore.Weighted

	Stats Stats

	mu    sync.Mutex
	state State
	block *blocksource.Block
	gen   uint64
}

// NewWorker builds a worker for device/internal ID id.
func NewWorker(id int, cfg *config.Config, w *wheel.Wheel, hasher blockhash.Hasher, tester Tester) *Worker {
	worker := &Worker{
		InternalID: id,
		cfg:        cfg,
		wheel:      w,
		hasher:     hasher,
		tester:     tester,
		fermatSem:  semaphore.NewWeighted(1),
	}
	worker.Stats.Healthy.Store(true)
	return worker
}

// State reports the worker's current state machine position.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// SetBlock installs a new block for the worker to mine, making
// whatever block it was previously working on stale. Staleness is
// the sole cancellation trigger of spec.md §5: an in-flight sieve
// batch or Fermat flush finishes, but the worker discards its output
// and re-primes against the new block as soon as it notices.
func (w *Worker) SetBlock(block *blocksource.Block) {
	w.mu.Lock()
	w.block = block
	w.gen++
	w.mu.Unlock()
}

func (w *Worker) currentBlock() (uint64, *blocksource.Block) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.gen, w.block
}

// Run executes the worker's state machine until ctx is canceled,
// cycling through whatever blocks SetBlock installs. It returns
// ctx.Err() on shutdown, a priming error wrapping
// minererr.ErrDeviceFailure (the sieve engine failed to accept the
// new origin), or any worker-fatal error runBlock hands back (a sieve
// batch failure, or a flush error handleFlushError does not recover
// from) — spec.md §7 kind (ii), a device failure, is
// worker-fatal, and the only way to actually escalate it to the
// supervisor is for this goroutine to return an error the Controller's
// errgroup sees and cancels every sibling worker over.
func (w *Worker) Run(ctx context.Context, io *ioExecutor) error {
	var lastGen uint64
	for {
		select {
		case <-ctx.Done():
			w.setState(Idle)
			return ctx.Err()
		default:
		}

		gen, block := w.currentBlock()
		if block == nil || gen == lastGen {
			w.setState(Idle)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Millisecond):
			}
			continue
		}
		lastGen = gen

		w.setState(Priming)
		origin, engine, h, err := w.prime(block)
		if err != nil {
			return fmt.Errorf("pipeline: worker %d priming: %w", w.InternalID, err)
		}

		w.setState(Running)
		fatal := w.runBlock(ctx, gen, engine, origin, h, block, io)
		engine.Close()
		if fatal != nil {
			w.setState(Idle)
			return fmt.Errorf("pipeline: worker %d: %w", w.InternalID, fatal)
		}
		w.setState(Draining)
	}
}

// prime computes this worker's sieve origin — the block's hash offset
// into this worker's reserved 2^48-nonce subspace, rounded up to an
// even value — and builds a fresh sieve engine against it, GPU-backed
// when cfg.UseGPU is set and this build was compiled with the cuda tag.
func (w *Worker) prime(block *blocksource.Block) (bigint.U1024, sieveEngine, bigint.U1024, error) {
	digest := w.hasher.Hash(block.HeaderBytes)
	h := bigint.FromBig(new(big.Int).SetBytes(digest[:]))

	subspace := new(big.Int).Lsh(big.NewInt(int64(w.InternalID)), 48)
	origin := bigint.FromBig(new(big.Int).Add(h.ToBig(), subspace))
	// Wheel residues are odd and validated pattern offsets are even, so
	// an even origin makes every candidate S + j*W + R[i] + o_i odd.
	// Since 2^48 is even, two workers' origins still differ by exactly
	// InternalID * 2^48.
	if !origin.IsEven() {
		origin, _ = origin.AddUint64(1)
	}

	engine := newSieveEngine(w.cfg.UseGPU, w.InternalID, w.wheel, w.cfg.Pattern, w.cfg.SievingPrimeLimit())
	if err := engine.SetOrigin(origin); err != nil {
		return origin, nil, h, fmt.Errorf("setting sieve origin: %w: %w", err, minererr.ErrDeviceFailure)
	}
	return origin, engine, h, nil
}

// runBlock sweeps segment batches against engine, draining locator
// candidates into a Fermat queue and classifying completed chains,
// until gen goes stale (a newer SetBlock arrived), ctx is canceled, or
// a sieve batch fails or a flush fails in a way handleFlushError
// treats as worker-fatal, in which case it returns that error for Run
// to propagate.
// sieve_iterations_log2 (spec.md §6) sets how many batches are swept
// between queue flushes, in addition to the batch_cap flush trigger.
func (w *Worker) runBlock(ctx context.Context, gen uint64, engine sieveEngine, origin, h bigint.U1024, block *blocksource.Block, io *ioExecutor) error {
	rows := w.cfg.SieveBatchRows()
	checkEvery := w.cfg.SieveIterations()
	target := difficulty.Target(block.NBits)

	queue := newFermatQueue(origin, w.wheel, w.cfg.Pattern, fermat.MaxBatchSize)

	flush := func() error {
		if queue.Len() == 0 {
			return nil
		}
		if err := w.fermatSem.Acquire(ctx, 1); err != nil {
			return nil
		}
		chains, err := queue.Flush(w.tester)
		w.fermatSem.Release(1)
		if err != nil {
			return w.handleFlushError(err)
		}
		// A newer SetBlock makes these chains stale: drop them instead
		// of reporting shares against the old block.
		if newGen, _ := w.currentBlock(); newGen != gen {
			return nil
		}
		w.classify(chains, origin, h, target, block, io)
		return nil
	}

	for batch := int64(0); ; batch++ {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if newGen, _ := w.currentBlock(); newGen != gen {
			return nil
		}

		bm, err := engine.SieveBatch(batch*rows, rows)
		if err != nil {
			wrapped := fmt.Errorf("sieving batch %d: %w: %w", batch, err, minererr.ErrDeviceFailure)
			fmt.Printf("[!] worker %d: %v\n", w.InternalID, wrapped)
			return wrapped
		}
		w.Stats.SegmentsSwept.Add(1)

		candidates := locator.Scan(bm, w.cfg.TestLevels)
		for i := range candidates {
			candidates[i].Row += batch * rows
		}
		for _, c := range candidates {
			w.Stats.CandidatesFound.Add(1)
			if queue.Add(c) {
				if err := flush(); err != nil {
					return err
				}
			}
		}

		if checkEvery > 0 && (batch+1)%checkEvery == 0 {
			if err := flush(); err != nil {
				return err
			}
		}
	}
}

// handleFlushError applies spec.md §7's recovery policy to a failed
// Fermat flush. An arithmetic mismatch escalates to the supervisor by
// latching Stats.Healthy false, but the worker keeps mining (spec.md
// §7 kind (iii): "the worker continues but is marked unhealthy").
// Anything else minererr.PolicyFor also escalates — a device failure
// surfacing through the tester, or an unclassified error falling
// through to PolicyFor's default, say — is returned to the caller as
// worker-fatal. A PolicyRecover verdict is logged and otherwise
// ignored; none of the kinds flush can currently produce classify that
// way.
func (w *Worker) handleFlushError(err error) error {
	fmt.Printf("[!] worker %d: %v\n", w.InternalID, err)
	switch minererr.PolicyFor(err) {
	case minererr.PolicyEscalate:
		if errors.Is(err, minererr.ErrArithmeticMismatch) {
			w.Stats.Healthy.Store(false)
			return nil
		}
		return err
	default:
		return nil
	}
}

// classify hands every chain meeting the block's target off to the
// I/O executor as a Share, computing its nonce from the candidate's
// wheel position (spec.md §4.2). A block with no OnShare callback
// drops the share and logs minererr.ErrNoCallback rather than
// panicking, spec.md §7 error kind (v)'s recovery policy.
func (w *Worker) classify(chains []chainResult, origin, h bigint.U1024, target float64, block *blocksource.Block, io *ioExecutor) {
	for _, ch := range chains {
		if !difficulty.Accept(ch.difficulty, target) {
			continue
		}
		w.setState(Submitting)
		w.Stats.SharesFound.Add(1)

		candidate := locator.Candidate{Row: ch.row, Column: ch.column}
		nonce := locator.Nonce(origin, h, w.wheel, candidate)

		share := blocksource.Share{
			InternalID:      fmt.Sprintf("%d", w.InternalID),
			Nonce:           nonce.ToBig().String(),
			NonceDifficulty: ch.difficulty,
		}

		if block.OnShare == nil {
			fmt.Printf("[!] worker %d: %v\n", w.InternalID,
				fmt.Errorf("found share has no callback to report to: %w", minererr.ErrNoCallback))
			w.setState(Running)
			continue
		}
		onShare := block.OnShare
		io.Post(func() { onShare(share) })
		w.setState(Running)
	}
}
