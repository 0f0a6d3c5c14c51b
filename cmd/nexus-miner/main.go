package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"nexusminer/internal/bigint"
	"nexusminer/internal/blockhash"
	"nexusminer/internal/blocksource"
	"nexusminer/internal/config"
	"nexusminer/internal/fermat"
	"nexusminer/internal/pipeline"
	"nexusminer/internal/sieve"
	"nexusminer/internal/wheel"
)

var AppVersion = "dev"

const banner = `
  _   __
 / | / /__  _  ____  _______
/  |/ / _ \| |/_/ / / / ___/
/ /|  /  __/>  </ /_/ (__  )
/_/ |_/\___/_/|_|\__,_/____/

  PRIME-CHAIN MINER v%s
  Wheel-Factorised Sieve | Batched Fermat Test | Multi-Device
`

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Printf("[!] configuration error: %v\n", err)
		os.Exit(1)
	}

	if cfg.ShowVersion {
		fmt.Printf("nexus-miner v%s\n", AppVersion)
		return
	}

	fmt.Printf(banner, AppVersion)
	fmt.Println()

	if cfg.Benchmark {
		runBenchmark(cfg)
		return
	}

	devices := deviceList(cfg)
	fmt.Printf("[*] Constellation:       %d offsets, max gap %d\n", cfg.Pattern.Len(), cfg.Pattern.MaxGap)
	fmt.Printf("[*] Sieving prime limit: 2^%d\n", cfg.SievingPrimeLimitLog2)
	fmt.Printf("[*] Segment batch rows:  2^%d\n", cfg.SieveBitsLog2)
	fmt.Printf("[*] Minimum chain level: %d\n", cfg.TestLevels)
	if cfg.UseGPU {
		fmt.Printf("[*] Mode:    GPU | Devices: %v\n", devices)
	} else {
		fmt.Printf("[*] Mode:    CPU | Workers: %d\n", len(devices))
	}
	fmt.Printf("[*] Block source: %s\n", cfg.BlockSourceURL)
	fmt.Printf("[*] Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Println()

	w := wheel.New()
	// Skein->Keccak header hashing is a Non-goal; BenchHasher stands in
	// as the collaborator the pipeline sieves around until a real one
	// is wired in.
	hasher := blockhash.NewBenchHasher()
	tester := pipeline.NewTester(cfg.UseGPU, devices[0])

	controller := pipeline.NewController(cfg, w, hasher, tester)
	source := blocksource.NewHTTPSource(cfg.BlockSourceURL, 2*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go pollBlocks(ctx, source, controller)

	runDone := make(chan error, 1)
	go func() { runDone <- controller.Run(ctx) }()

	fmt.Println("[*] Mining started. Press Ctrl+C to stop.")
	fmt.Println()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println()
	fmt.Println("[*] Shutting down...")
	cancel()

	if err := <-runDone; err != nil {
		fmt.Printf("[!] %v\n", err)
	}

	printSessionStats(controller)
}

// pollBlocks feeds the controller with whatever work the source hands
// out until ctx is canceled, the same shape as Miner.miningLoop's
// fetch-then-dispatch cycle in cmd/dilithium-gpu-miner/miner.go,
// generalised from a single miner to broadcasting each new block to
// every worker in the controller at once.
func pollBlocks(ctx context.Context, source blocksource.Source, controller *pipeline.Controller) {
	for {
		block, err := source.Next(ctx)
		if err != nil {
			return
		}
		controller.SetBlock(block)
	}
}

func deviceList(cfg *config.Config) []int {
	if len(cfg.DeviceIDs) == 0 {
		return []int{0}
	}
	return cfg.DeviceIDs
}

func printSessionStats(c *pipeline.Controller) {
	var segments, candidates, shares int64
	var unhealthy []int
	for _, worker := range c.Workers() {
		segments += worker.Stats.SegmentsSwept.Load()
		candidates += worker.Stats.CandidatesFound.Load()
		shares += worker.Stats.SharesFound.Load()
		if !worker.Stats.Healthy.Load() {
			unhealthy = append(unhealthy, worker.InternalID)
		}
	}

	fmt.Println()
	fmt.Printf("[*] Session complete\n")
	fmt.Printf("    Segments swept:   %d\n", segments)
	fmt.Printf("    Candidates found: %d\n", candidates)
	fmt.Printf("    Shares found:     %d\n", shares)
	if len(unhealthy) > 0 {
		fmt.Printf("[!] workers reporting arithmetic mismatches: %v\n", unhealthy)
	}
}

// runBenchmark measures sieve throughput and Fermat batch throughput
// without connecting to a block source, reporting progress with the
// same mpb bar shape as
// guiperry-HASHER/pipeline/1_DATA_MINER/internal/app/processor.go's
// PDF pipeline, retargeted from files-processed to
// segments-swept/candidates-tested.
func runBenchmark(cfg *config.Config) {
	w := wheel.New()
	origin := bigint.FromBig(big.NewInt(0).Lsh(big.NewInt(1), 900))

	fmt.Println("[*] Benchmarking the sieve...")
	rows := cfg.SieveBatchRows()
	const sieveBatches = 64

	engine := sieve.NewEngine(w, cfg.Pattern, cfg.SievingPrimeLimit())
	engine.SetOrigin(origin)

	p := mpb.New(mpb.WithWidth(80))
	sieveBar := p.AddBar(sieveBatches,
		mpb.PrependDecorators(
			decor.Name("Sieving: "),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO), "done!"),
		),
	)

	var survivors int64
	perOffset := make([]int64, cfg.Pattern.Len())
	start := time.Now()
	for i := int64(0); i < sieveBatches; i++ {
		bm := engine.SieveBatch(i*rows, rows)
		survivors += bm.CountSurvivors()
		for oi := range perOffset {
			perOffset[oi] += bm.CountSurvivorsForOffset(oi)
		}
		sieveBar.Increment()
	}
	p.Wait()
	sieveElapsed := time.Since(start).Seconds()
	sieveRate := float64(sieveBatches*rows*int64(w.Size())) / sieveElapsed

	fmt.Printf("    Wheel positions swept: %.0f/sec across %d offset planes\n", sieveRate, cfg.Pattern.Len())
	fmt.Printf("    Survivors sampled:     %d\n", survivors)
	for oi, n := range perOffset {
		fmt.Printf("      offset[%d] = %-6d survivors: %d\n", oi, cfg.Pattern.Offsets[oi], n)
	}
	fmt.Println()

	fmt.Println("[*] Benchmarking the Fermat tester...")
	const fermatRounds = 8
	deltas := make([]uint64, fermat.MaxBatchSize)
	for i := range deltas {
		deltas[i] = uint64(2*i + 1)
	}
	batch, err := fermat.NewBatch(origin, deltas)
	if err != nil {
		fmt.Printf("[!] benchmark: building fermat batch: %v\n", err)
		return
	}

	p2 := mpb.New(mpb.WithWidth(80))
	fermatBar := p2.AddBar(fermatRounds,
		mpb.PrependDecorators(
			decor.Name("Fermat:  "),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO), "done!"),
		),
	)

	start = time.Now()
	var passed int
	for i := 0; i < fermatRounds; i++ {
		result := batch.RunCPU()
		passed = result.Passed
		fermatBar.Increment()
	}
	p2.Wait()
	fermatElapsed := time.Since(start).Seconds()
	fermatRate := float64(fermatRounds*len(deltas)) / fermatElapsed

	fmt.Printf("    Fermat tests: %.0f/sec (batch size %d, %d passed in final round)\n", fermatRate, len(deltas), passed)
	fmt.Println()
	fmt.Println("[*] Benchmark complete")
}
