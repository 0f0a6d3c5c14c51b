// Package config builds the immutable Config value from command-line
// flags, an optional JSON file, and a .env overlay, replacing the
// teacher's/original source's process-wide globals per the "Global
// mutable state" design note.
//
// The .env loading call shape is grounded on
// guiperry-HASHER/pipeline/1_DATA_MINER/internal/app/config.go's
// LoadEnv; the flag set itself follows
// cmd/dilithium-gpu-miner/main.go's flat flag.String/Int/Bool
// declarations.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"nexusminer/internal/minererr"
	"nexusminer/internal/wheel"
)

// Config is the configuration surface of spec.md §6: the six
// enumerated mining options plus the ambient CLI/runtime ones this
// expansion adds. Once returned by Load it is never mutated.
type Config struct {
	SievingPrimeLimitLog2 int // L = 2^x, range 20-28
	SieveBitsLog2         int // segment batch size exponent, range 20-28
	SieveIterationsLog2   int // batches swept per block check
	TestLevels            int // k_min, range 1-10
	DeviceIDs             []int
	OffsetFile            string
	Pattern               *wheel.Pattern // parsed from OffsetFile

	BlockSourceURL string
	UseGPU         bool
	Benchmark      bool
	ShowVersion    bool
}

const (
	defaultSievingPrimeLimitLog2 = 24
	defaultSieveBitsLog2         = 22
	defaultSieveIterationsLog2   = 6
	defaultTestLevels            = 7
	defaultOffsetFile            = "offsets.txt"
	defaultBlockSourceURL        = "http://127.0.0.1:8080"
)

// SievingPrimeLimit returns L = 2^SievingPrimeLimitLog2.
func (c *Config) SievingPrimeLimit() int64 { return 1 << uint(c.SievingPrimeLimitLog2) }

// SieveBatchRows returns the number of wheel rows swept per segment
// batch, 2^SieveBitsLog2.
func (c *Config) SieveBatchRows() int64 { return 1 << uint(c.SieveBitsLog2) }

// SieveIterations returns the number of batches swept per block
// check, 2^SieveIterationsLog2.
func (c *Config) SieveIterations() int64 { return 1 << uint(c.SieveIterationsLog2) }

// LoadEnv loads a .env file into the process environment, the same
// call shape as guiperry-HASHER's app.LoadEnv: missing is not fatal,
// just logged.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("[~] no .env file found, using process environment")
	}
}

// fileOverlay is the JSON shape accepted by -config. Every field is a
// pointer (or nil slice) so applyFileOverlay can tell "absent from
// the file" apart from "explicitly zero".
type fileOverlay struct {
	SievingPrimeLimitLog2 *int    `json:"sieving_prime_limit_log2"`
	SieveBitsLog2         *int    `json:"sieve_bits_log2"`
	SieveIterationsLog2   *int    `json:"sieve_iterations_log2"`
	TestLevels            *int    `json:"test_levels"`
	DeviceIDs             []int   `json:"device_ids"`
	OffsetFile            *string `json:"offset_file"`
	BlockSourceURL        *string `json:"block_source_url"`
}

// Load builds a Config from, in increasing order of precedence:
// built-in defaults, a .env/process-environment overlay, an optional
// -config JSON file, and command-line flags. Flags always win over
// the file, and the file always wins over the environment.
func Load(args []string) (*Config, error) {
	LoadEnv()

	cfg := &Config{
		SievingPrimeLimitLog2: envInt("NEXUS_SIEVING_PRIME_LIMIT_LOG2", defaultSievingPrimeLimitLog2),
		SieveBitsLog2:         envInt("NEXUS_SIEVE_BITS_LOG2", defaultSieveBitsLog2),
		SieveIterationsLog2:   envInt("NEXUS_SIEVE_ITERATIONS_LOG2", defaultSieveIterationsLog2),
		TestLevels:            envInt("NEXUS_TEST_LEVELS", defaultTestLevels),
		OffsetFile:            envString("NEXUS_OFFSET_FILE", defaultOffsetFile),
		BlockSourceURL:        envString("NEXUS_BLOCK_SOURCE_URL", defaultBlockSourceURL),
	}
	if v := os.Getenv("NEXUS_DEVICE_IDS"); v != "" {
		ids, err := parseDeviceIDs(v)
		if err != nil {
			return nil, fmt.Errorf("config: NEXUS_DEVICE_IDS: %w: %w", err, minererr.ErrConfigInvalid)
		}
		cfg.DeviceIDs = ids
	}

	fs := flag.NewFlagSet("nexus-miner", flag.ContinueOnError)
	configFile := fs.String("config", "", "path to a JSON configuration file overlay")
	fs.IntVar(&cfg.SievingPrimeLimitLog2, "sieving-prime-limit-log2", cfg.SievingPrimeLimitLog2, "log2 of the sieving prime limit L (20-28)")
	fs.IntVar(&cfg.SieveBitsLog2, "sieve-bits-log2", cfg.SieveBitsLog2, "log2 of the segment batch size (20-28)")
	fs.IntVar(&cfg.SieveIterationsLog2, "sieve-iterations-log2", cfg.SieveIterationsLog2, "log2 of batches swept per block check")
	fs.IntVar(&cfg.TestLevels, "test-levels", cfg.TestLevels, "k_min: minimum surviving pattern offsets for a locator candidate (1-10)")
	fs.StringVar(&cfg.OffsetFile, "offset-file", cfg.OffsetFile, "path to the constellation pattern file")
	deviceIDs := fs.String("device-ids", joinInts(cfg.DeviceIDs), "comma-separated GPU device indices (max 8)")
	fs.StringVar(&cfg.BlockSourceURL, "block-source", cfg.BlockSourceURL, "block source HTTP endpoint")
	fs.BoolVar(&cfg.UseGPU, "gpu", false, "enable GPU sieve/Fermat kernels (requires a cuda build)")
	fs.BoolVar(&cfg.Benchmark, "benchmark", false, "run the sieve+Fermat benchmark and exit")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("config: parsing flags: %w: %w", err, minererr.ErrConfigInvalid)
	}

	if *configFile != "" {
		if err := applyFileOverlay(cfg, *configFile, fs); err != nil {
			return nil, err
		}
	}

	// --device-ids only overrides what the environment/file already
	// populated into cfg.DeviceIDs when the flag was actually passed,
	// or when nothing upstream set DeviceIDs at all (its default
	// string was computed from cfg.DeviceIDs before the file overlay
	// ran, so re-applying it unconditionally would clobber the file).
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	if (explicit["device-ids"] || cfg.DeviceIDs == nil) && *deviceIDs != "" {
		ids, err := parseDeviceIDs(*deviceIDs)
		if err != nil {
			return nil, fmt.Errorf("config: --device-ids: %w: %w", err, minererr.ErrConfigInvalid)
		}
		cfg.DeviceIDs = ids
	}

	if cfg.OffsetFile != "" {
		pattern, err := loadPattern(cfg.OffsetFile)
		if err != nil {
			return nil, err
		}
		cfg.Pattern = pattern
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadPattern(path string) (*wheel.Pattern, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: opening offset file %q: %w: %w", path, err, minererr.ErrConfigInvalid)
	}
	defer f.Close()

	pattern, err := wheel.ParsePattern(f)
	if err != nil {
		return nil, fmt.Errorf("config: parsing offset file %q: %w: %w", path, err, minererr.ErrConfigInvalid)
	}
	if err := pattern.Validate(); err != nil {
		return nil, fmt.Errorf("config: offset file %q: %w: %w", path, err, minererr.ErrConfigInvalid)
	}
	return pattern, nil
}

func applyFileOverlay(cfg *Config, path string, fs *flag.FlagSet) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %q: %w: %w", path, err, minererr.ErrConfigInvalid)
	}
	var overlay fileOverlay
	if err := json.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("config: parsing %q: %w: %w", path, err, minererr.ErrConfigInvalid)
	}

	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	if overlay.SievingPrimeLimitLog2 != nil && !explicit["sieving-prime-limit-log2"] {
		cfg.SievingPrimeLimitLog2 = *overlay.SievingPrimeLimitLog2
	}
	if overlay.SieveBitsLog2 != nil && !explicit["sieve-bits-log2"] {
		cfg.SieveBitsLog2 = *overlay.SieveBitsLog2
	}
	if overlay.SieveIterationsLog2 != nil && !explicit["sieve-iterations-log2"] {
		cfg.SieveIterationsLog2 = *overlay.SieveIterationsLog2
	}
	if overlay.TestLevels != nil && !explicit["test-levels"] {
		cfg.TestLevels = *overlay.TestLevels
	}
	if overlay.DeviceIDs != nil && !explicit["device-ids"] {
		cfg.DeviceIDs = overlay.DeviceIDs
	}
	if overlay.OffsetFile != nil && !explicit["offset-file"] {
		cfg.OffsetFile = *overlay.OffsetFile
	}
	if overlay.BlockSourceURL != nil && !explicit["block-source"] {
		cfg.BlockSourceURL = *overlay.BlockSourceURL
	}
	return nil
}

// Validate checks every range constraint spec.md §6 places on the
// configuration surface, returning an error wrapping
// minererr.ErrConfigInvalid on the first violation found.
func (c *Config) Validate() error {
	if c.SievingPrimeLimitLog2 < 20 || c.SievingPrimeLimitLog2 > 28 {
		return fmt.Errorf("config: sieving_prime_limit_log2 = %d, want 20-28: %w", c.SievingPrimeLimitLog2, minererr.ErrConfigInvalid)
	}
	if c.SieveBitsLog2 < 20 || c.SieveBitsLog2 > 28 {
		return fmt.Errorf("config: sieve_bits_log2 = %d, want 20-28: %w", c.SieveBitsLog2, minererr.ErrConfigInvalid)
	}
	if c.SieveIterationsLog2 < 0 {
		return fmt.Errorf("config: sieve_iterations_log2 = %d, must be non-negative: %w", c.SieveIterationsLog2, minererr.ErrConfigInvalid)
	}
	if c.TestLevels < 1 || c.TestLevels > 10 {
		return fmt.Errorf("config: test_levels = %d, want 1-10: %w", c.TestLevels, minererr.ErrConfigInvalid)
	}
	if len(c.DeviceIDs) > 8 {
		return fmt.Errorf("config: device_ids has %d entries, want at most 8: %w", len(c.DeviceIDs), minererr.ErrConfigInvalid)
	}
	for _, id := range c.DeviceIDs {
		if id < 0 {
			return fmt.Errorf("config: device id %d is negative: %w", id, minererr.ErrConfigInvalid)
		}
	}
	if c.Pattern == nil {
		return fmt.Errorf("config: no constellation pattern loaded: %w", minererr.ErrConfigInvalid)
	}
	return nil
}

func parseDeviceIDs(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid device id %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
