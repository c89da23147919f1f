// Package cli implements fsx's command-line surface: flag parsing,
// config resolution, and the signal-aware wrapper around the driver loop.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/fsxtest/fsx/internal/fsxcfg"
	"github.com/fsxtest/fsx/internal/fsxlog"
	"github.com/fsxtest/fsx/internal/ops"
)

// version is baked in at build time via -ldflags, matching the teacher's
// own version-stamping convention; "dev" is the fallback for local/go-run
// builds.
var version = "dev"

const usage = `fsx - stochastic file-system correctness tester

Usage: fsx [flags] <file>

Flags:
  -S, --seed <n>           PRNG seed (default: drawn from OS entropy)
  -N, --numops <n>         Number of operations to run (default: unlimited)
  -b, --simulate <n>       Simulate the first n ops in memory only, then
                            materialize the prefix to the real file
      --flen <n>           Hard file length cap (default 262144)
  -P, --artifact-dir <dir> Directory for .fsxgood/.fsxbad on mismatch
  -m, --monitor <from:to>  Byte range that promotes log level to warn
  -f, --config <file>      HuJSON config file (defaults merge under it)
      --weight <kind=n>    Override one operation kind's weight (repeatable)
      --opsize.min <n>     Minimum op length
      --opsize.max <n>     Maximum op length
      --opsize.align <n>   Alignment applied to every offset/length (power of 2)
      --blockmode          Disable truncate and posix_fallocate
      --no-size-checks     Skip fstat-based size verification
      --no-msync-after-write  Skip msync(MS_SYNC) after mapwrite
      --print-config       Print the fully resolved config as JSON and exit
  -v                       Increase verbosity (repeatable)
  -q                       Decrease verbosity (repeatable)
  -h, --help               Show this help
  -V, --version            Show version
`

// Run is fsx's entry point. It returns the process exit code: 0 on a
// clean completion (including a graceful interrupt), 1 on a detected
// mismatch, 2 on usage/config errors, and any other non-zero value for
// an unexpected I/O error surfaced by the driver.
func Run(_ io.Reader, out, errOut io.Writer, args []string, getenv func(string) string, sigCh <-chan os.Signal) int {
	if getenv == nil {
		getenv = func(string) string { return "" }
	}

	fs := flag.NewFlagSet("fsx", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		flagHelp      = fs.BoolP("help", "h", false, "")
		flagVersion   = fs.BoolP("version", "V", false, "")
		flagSeed      = fs.Int64P("seed", "S", -1, "")
		flagNumOps    = fs.Uint64P("numops", "N", 0, "")
		flagSimulate  = fs.Uint64P("simulate", "b", 0, "")
		flagFlen      = fs.Int64("flen", 0, "")
		flagArtifact  = fs.StringP("artifact-dir", "P", "", "")
		flagMonitor   = fs.StringP("monitor", "m", "", "")
		flagConfig    = fs.StringP("config", "f", "", "")
		flagWeights   = fs.StringArray("weight", nil, "")
		flagOpMin     = fs.Int64("opsize.min", -1, "")
		flagOpMax     = fs.Int64("opsize.max", -1, "")
		flagOpAlign   = fs.Int64("opsize.align", -1, "")
		flagBlockMode = fs.Bool("blockmode", false, "")
		flagNoSize    = fs.Bool("no-size-checks", false, "")
		flagNoMsync   = fs.Bool("no-msync-after-write", false, "")
		flagPrintCfg  = fs.Bool("print-config", false, "")
		flagVerbose   = fs.CountP("verbose", "v", "")
		flagQuiet     = fs.CountP("quiet", "q", "")
	)

	if err := fs.Parse(args[1:]); err != nil {
		fprintln(errOut, "error:", err)
		fprintln(errOut, usage)

		return 2
	}

	if *flagHelp {
		fprintln(out, usage)

		return 0
	}

	if *flagVersion {
		fprintln(out, "fsx", version)

		return 0
	}

	cfg := fsxcfg.Default()

	if *flagConfig != "" {
		merged, err := fsxcfg.LoadFile(cfg, *flagConfig)
		if err != nil {
			fprintln(errOut, "error:", err)

			return 2
		}

		cfg = merged
	}

	if err := applyFlagOverrides(&cfg, flagSeed, flagNumOps, flagSimulate, flagFlen,
		flagArtifact, flagMonitor, flagWeights, flagOpMin, flagOpMax, flagOpAlign,
		flagBlockMode, flagNoSize, flagNoMsync, fs); err != nil {
		fprintln(errOut, "error:", err)

		return 2
	}

	rest := fs.Args()
	if len(rest) != 1 {
		fprintln(errOut, "error: expected exactly one file argument")
		fprintln(errOut, usage)

		return 2
	}

	cfg.FileName = rest[0]

	if cfg.ArtifactDir == "" {
		cfg.ArtifactDir = filepath.Dir(cfg.FileName)
	}

	if !cfg.SeedSet {
		seed, err := drawSeed()
		if err != nil {
			fprintln(errOut, "error:", err)

			return 2
		}

		cfg.Seed = seed
	}

	if err := cfg.Validate(); err != nil {
		fprintln(errOut, "error:", err)

		return 2
	}

	cmdIO := NewIO(out, errOut)

	if *flagPrintCfg {
		printConfig(cmdIO, cfg)

		return cmdIO.Finish()
	}

	noColor := fsxlog.NoColorFromEnv(getenv)
	logger := fsxlog.New(errOut, int(*flagVerbose)-int(*flagQuiet), noColor)

	logger.Info("starting run", "file", cfg.FileName, "seed", cfg.Seed, "flen", cfg.Flen)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan int, 1)

	go func() {
		done <- runDriver(ctx, logger, cmdIO, cfg)
	}()

	select {
	case code := <-done:
		return code
	case <-sigCh:
		fprintln(errOut, "shutting down with 5s timeout...")
		cancel()
	}

	select {
	case code := <-done:
		return code
	case <-time.After(5 * time.Second):
		fprintln(errOut, "graceful shutdown timed out, forced exit")

		return 130
	case <-sigCh:
		fprintln(errOut, "graceful shutdown interrupted, forced exit")

		return 130
	}
}

func applyFlagOverrides(cfg *fsxcfg.Config, flagSeed *int64, flagNumOps, flagSimulate *uint64,
	flagFlen *int64, flagArtifact, flagMonitor *string, flagWeights *[]string,
	flagOpMin, flagOpMax, flagOpAlign *int64, flagBlockMode, flagNoSize, flagNoMsync *bool,
	fs *flag.FlagSet) error {
	if fs.Changed("seed") {
		cfg.Seed = uint64(*flagSeed)
		cfg.SeedSet = true
	}

	if fs.Changed("numops") {
		cfg.NumOps = *flagNumOps
	}

	if fs.Changed("simulate") {
		cfg.SimulateThrough = *flagSimulate
	}

	if fs.Changed("flen") {
		cfg.Flen = *flagFlen
	}

	if fs.Changed("artifact-dir") {
		cfg.ArtifactDir = *flagArtifact
	}

	if fs.Changed("blockmode") {
		cfg.BlockMode = *flagBlockMode
	}

	if fs.Changed("no-size-checks") {
		cfg.NoSizeChecks = *flagNoSize
	}

	if fs.Changed("no-msync-after-write") {
		cfg.NoMsyncAfterWrite = *flagNoMsync
	}

	if fs.Changed("opsize.min") {
		cfg.OpSize.Min = *flagOpMin
	}

	if fs.Changed("opsize.max") {
		cfg.OpSize.Max = *flagOpMax
	}

	if fs.Changed("opsize.align") {
		cfg.OpSize.Align = *flagOpAlign
	}

	if fs.Changed("monitor") {
		from, to, err := parseMonitorRange(*flagMonitor)
		if err != nil {
			return err
		}

		cfg.MonitorFrom, cfg.MonitorTo, cfg.MonitorSet = from, to, true
	}

	if fs.Changed("weight") {
		if cfg.Weights == nil {
			cfg.Weights = fsxcfg.Weights{}
		}

		for _, spec := range *flagWeights {
			name, n, err := parseWeightFlag(spec)
			if err != nil {
				return err
			}

			cfg.Weights[name] = n
		}
	}

	return nil
}

func parseMonitorRange(s string) (from, to int64, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid --monitor range %q, want FROM:TO", s)
	}

	from, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --monitor range %q: %w", s, err)
	}

	to, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --monitor range %q: %w", s, err)
	}

	return from, to, nil
}

func parseWeightFlag(s string) (kind string, weight uint32, err error) {
	parts := strings.SplitN(s, "=", 2)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("invalid --weight %q, want KIND=N", s)
	}

	if _, ok := ops.ParseKind(parts[0]); !ok {
		return "", 0, fmt.Errorf("invalid --weight %q: unrecognized operation kind %q", s, parts[0])
	}

	n, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("invalid --weight %q: %w", s, err)
	}

	return parts[0], uint32(n), nil
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}
