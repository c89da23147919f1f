// Package driver runs fsx's main loop: drawing operations from the
// chooser, applying them through the executor, feeding the monitor, and
// dumping artifacts on the first mismatch (spec.md §4.7).
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsxtest/fsx/internal/dumper"
	"github.com/fsxtest/fsx/internal/executor"
	"github.com/fsxtest/fsx/internal/fsxcfg"
	"github.com/fsxtest/fsx/internal/fsxlog"
	"github.com/fsxtest/fsx/internal/monitor"
	"github.com/fsxtest/fsx/internal/ops"
	"github.com/fsxtest/fsx/internal/prng"
	"github.com/fsxtest/fsx/internal/shadow"
	"github.com/fsxtest/fsx/internal/target"
)

// Outcome is the terminal state of a Run.
type Outcome int

const (
	// OutcomeClean means every requested op executed and verified clean.
	OutcomeClean Outcome = iota
	// OutcomeInterrupted means the loop stopped early on a caller
	// cancellation (SIGINT/SIGTERM) with no inconsistency found.
	OutcomeInterrupted
	// OutcomeMismatch means the shadow and the real file disagreed.
	OutcomeMismatch
)

// Result summarizes a completed Run.
type Result struct {
	Outcome   Outcome
	StepsRun  uint64
	Elapsed   time.Duration
	Mismatch  *executor.Mismatch
	Dump      dumper.Result
	RecentOps []ops.Op
}

// Run drives cfg.NumOps operations (or until ctx is canceled) against the
// file at path, starting from the capability-probed weight table in caps.
func Run(ctx context.Context, logger *slog.Logger, cfg fsxcfg.Config, caps target.Capabilities, path string) (Result, error) {
	start := time.Now()

	weights := cfg.Weights.ToKindMap()
	for _, k := range caps.Unsupported {
		weights[k] = 0
	}

	chooser := ops.NewChooser(weights, ops.Params{
		SizeMin:   cfg.OpSize.Min,
		SizeMax:   cfg.OpSize.Max,
		Align:     cfg.OpSize.Align,
		Flen:      cfg.Flen,
		BlockMode: cfg.BlockMode,
	}, caps.Advice)

	logger.Info("enabled operations", "kinds", kindNames(chooser.EnabledKinds()))

	rng := prng.New(cfg.Seed)

	sh := shadow.New(cfg.Flen)

	rt, err := target.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("driver: %w", err)
	}
	defer rt.Close() //nolint:errcheck

	exec := executor.New(sh, rt, rng, cfg.NoSizeChecks, cfg.NoMsyncAfterWrite)

	mon := monitor.New(monitor.Window{From: cfg.MonitorFrom, To: cfg.MonitorTo, Set: cfg.MonitorSet})

	drawn := make([]ops.Op, 0, cfg.SimulateThrough)

	var step uint64

	for step = 1; cfg.NumOps == 0 || step <= cfg.NumOps; step++ {
		select {
		case <-ctx.Done():
			return Result{Outcome: OutcomeInterrupted, StepsRun: step - 1, Elapsed: time.Since(start)}, nil
		default:
		}

		op := chooser.Draw(rng, step)

		if step <= cfg.SimulateThrough {
			// Simulate-then-materialize: ops 1..B only touch the shadow.
			// At step B+1 the accumulated shadow prefix is written once to
			// the real file before that step's own op executes (spec.md
			// §4.7's pre-roll).
			drawn = append(drawn, op)

			if err := applyShadowOnly(sh, op, rng); err != nil {
				return Result{}, fmt.Errorf("driver: step %d: %w", step, err)
			}

			mon.Record(op)

			continue
		}

		if len(drawn) > 0 {
			if err := materialize(rt, sh); err != nil {
				return Result{}, fmt.Errorf("driver: materializing simulated prefix: %w", err)
			}

			logger.Info("materialized simulated prefix", "ops", len(drawn), "bytes", sh.Size())

			drawn = nil
		}

		oldSize, sizeErr := rt.Size()
		if sizeErr != nil {
			return Result{}, fmt.Errorf("driver: step %d: %w", step, sizeErr)
		}

		execErr := exec.Execute(op)

		mon.Record(op)

		level := slog.LevelInfo
		if mon.ShouldWarn(op, oldSize) {
			level = slog.LevelWarn
		}

		fsxlog.Op(logger, level, op.Step, op.Kind.String(), op.Offset, op.Length)

		if execErr == nil {
			continue
		}

		var mismatch *executor.Mismatch
		if errors.As(execErr, &mismatch) {
			dump, dumpErr := dumper.Dump(cfg.ArtifactDir, cfg.FileName, sh.Bytes(), readRealOrEmpty(rt, sh.Size()))
			if dumpErr != nil {
				return Result{}, fmt.Errorf("driver: dumping artifacts: %w", dumpErr)
			}

			logger.Error("mismatch detected", "step", op.Step, "kind", op.Kind.String(), "good", dump.GoodPath, "bad", dump.BadPath)

			return Result{
				Outcome:   OutcomeMismatch,
				StepsRun:  step,
				Elapsed:   time.Since(start),
				Mismatch:  mismatch,
				Dump:      dump,
				RecentOps: mon.Recent(),
			}, nil
		}

		return Result{}, fmt.Errorf("driver: step %d: %w", step, execErr)
	}

	return Result{Outcome: OutcomeClean, StepsRun: step - 1, Elapsed: time.Since(start)}, nil
}

// applyShadowOnly mutates the shadow model the same way Executor would,
// without touching the real file, for the pre-roll phase. Write content
// is still drawn from rng so the materialized prefix carries the same
// pseudorandom bytes a full (non-simulated) run would have produced, and
// so the draw order stays identical regardless of B.
func applyShadowOnly(sh *shadow.Shadow, op ops.Op, rng *prng.Source) error {
	switch op.Kind {
	case ops.Write, ops.MapWrite:
		data := rng.FillBytes(op.Length)

		return sh.Write(op.Offset, data)
	case ops.Truncate:
		return sh.Truncate(op.NewSize)
	case ops.PosixFallocate:
		return sh.Fallocate(op.Offset, op.Length)
	case ops.PunchHole:
		return sh.Punch(op.Offset, op.Length)
	case ops.Sendfile, ops.CopyFileRange:
		return sh.Copy(op.Extra.SrcOffset, op.Offset, op.Length)
	default:
		// Reads, fsync family, fadvise, invalidate, close_open have no
		// shadow-visible effect.
		return nil
	}
}

// materialize writes the shadow's current authoritative prefix to the
// real file in one pass, matching spec.md §4.7's "write the simulated
// prefix once" step.
func materialize(rt target.Target, sh *shadow.Shadow) error {
	data := sh.Bytes()
	if len(data) == 0 {
		return rt.Truncate(0)
	}

	if _, err := rt.Pwrite(0, data); err != nil {
		return err
	}

	return rt.Truncate(int64(len(data)))
}

// readRealOrEmpty reads the real file's current [0, length) prefix for
// the .fsxbad artifact. The real file may be shorter than length -- that
// mismatch in size is itself part of what triggered the dump -- so this
// clamps to whatever fstat actually reports rather than failing the dump
// over the same discrepancy it exists to record.
func readRealOrEmpty(rt target.Target, length int64) []byte {
	realSize, err := rt.Size()
	if err != nil {
		return nil
	}

	if realSize < length {
		length = realSize
	}

	b, err := rt.Pread(0, length)
	if err != nil {
		return nil
	}

	return b
}

func kindNames(ks []ops.Kind) []string {
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = k.String()
	}

	return out
}
