package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsxtest/fsx/internal/driver"
	"github.com/fsxtest/fsx/internal/fsxcfg"
	"github.com/fsxtest/fsx/internal/fsxlog"
	"github.com/fsxtest/fsx/internal/prng"
	"github.com/fsxtest/fsx/internal/target"
)

// runDriver probes capabilities, runs the driver loop, and maps the
// result onto fsx's exit code contract (spec.md §8): 0 clean, 1
// mismatch, other non-zero for an unexpected error.
func runDriver(ctx context.Context, logger *slog.Logger, cmdIO *IO, cfg fsxcfg.Config) int {
	caps, err := target.Probe(filepath.Dir(cfg.FileName))
	if err != nil {
		logger.Error("capability probe failed", "err", err)

		return 3
	}

	for _, k := range caps.Unsupported {
		cmdIO.Warn(fmt.Sprintf("%s is not supported on this platform; its weight has been zeroed", k))
	}

	result, err := driver.Run(ctx, logger, cfg, caps, cfg.FileName)
	if err != nil {
		logger.Error("run failed", "err", err)

		return 3
	}

	switch result.Outcome {
	case driver.OutcomeClean:
		logger.Info("run complete", "steps", result.StepsRun, "elapsed", fsxlog.Elapsed(result.Elapsed))
		cmdIO.Finish()

		return 0
	case driver.OutcomeInterrupted:
		logger.Warn("run interrupted", "steps", result.StepsRun, "elapsed", fsxlog.Elapsed(result.Elapsed))
		cmdIO.Finish()

		return 0
	case driver.OutcomeMismatch:
		for _, op := range result.RecentOps {
			fsxlog.Op(logger, slog.LevelError, op.Step, op.Kind.String(), op.Offset, op.Length)
		}

		logger.Error("mismatch", "steps", result.StepsRun, "diff", result.Mismatch.Diff, "good", result.Dump.GoodPath, "bad", result.Dump.BadPath)
		cmdIO.Finish()

		return 1
	default:
		return 3
	}
}

func drawSeed() (uint64, error) {
	return prng.DrawSeed()
}

// printConfig writes cfg as indented JSON to stdout, for --print-config.
func printConfig(cmdIO *IO, cfg fsxcfg.Config) {
	enc, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		cmdIO.Warn(fmt.Sprintf("failed to encode config: %v", err))

		return
	}

	cmdIO.Printf("%s\n", enc)
}
