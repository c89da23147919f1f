package driver

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fsxtest/fsx/internal/fsxcfg"
	"github.com/fsxtest/fsx/internal/fsxlog"
	"github.com/fsxtest/fsx/internal/ops"
	"github.com/fsxtest/fsx/internal/target"
)

func baseConfig(t *testing.T) fsxcfg.Config {
	t.Helper()

	cfg := fsxcfg.Default()
	cfg.Flen = 8192
	cfg.Seed = 42
	cfg.SeedSet = true
	cfg.NumOps = 200
	cfg.ArtifactDir = t.TempDir()
	cfg.OpSize.Max = 512

	return cfg
}

func TestRunCleanCompletion(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.FileName = filepath.Join(t.TempDir(), "target.img")

	result, err := Run(context.Background(), fsxlog.DiscardLogger(), cfg, target.Capabilities{}, cfg.FileName)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Outcome != OutcomeClean {
		t.Fatalf("Outcome = %v, want OutcomeClean", result.Outcome)
	}

	if result.StepsRun != cfg.NumOps {
		t.Fatalf("StepsRun = %d, want %d", result.StepsRun, cfg.NumOps)
	}
}

func TestRunDeterministicAcrossIdenticalSeeds(t *testing.T) {
	t.Parallel()

	cfgA := baseConfig(t)
	cfgA.FileName = filepath.Join(t.TempDir(), "a.img")

	cfgB := baseConfig(t)
	cfgB.FileName = filepath.Join(t.TempDir(), "b.img")

	resultA, err := Run(context.Background(), fsxlog.DiscardLogger(), cfgA, target.Capabilities{}, cfgA.FileName)
	if err != nil {
		t.Fatalf("Run A: %v", err)
	}

	resultB, err := Run(context.Background(), fsxlog.DiscardLogger(), cfgB, target.Capabilities{}, cfgB.FileName)
	if err != nil {
		t.Fatalf("Run B: %v", err)
	}

	if resultA.StepsRun != resultB.StepsRun || resultA.Outcome != resultB.Outcome {
		t.Fatalf("runs with identical seed/config diverged: %+v vs %+v", resultA, resultB)
	}
}

func TestRunRespectsContextCancellation(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.NumOps = 0 // unlimited, so cancellation is the only way out
	cfg.FileName = filepath.Join(t.TempDir(), "target.img")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Run(ctx, fsxlog.DiscardLogger(), cfg, target.Capabilities{}, cfg.FileName)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Outcome != OutcomeInterrupted {
		t.Fatalf("Outcome = %v, want OutcomeInterrupted", result.Outcome)
	}
}

func TestRunZeroesUnsupportedKindWeight(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.FileName = filepath.Join(t.TempDir(), "target.img")
	cfg.Weights[ops.Sendfile.String()] = 50

	caps := target.Capabilities{Unsupported: []ops.Kind{ops.Sendfile}}

	result, err := Run(context.Background(), fsxlog.DiscardLogger(), cfg, caps, cfg.FileName)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Outcome != OutcomeClean {
		t.Fatalf("Outcome = %v, want OutcomeClean", result.Outcome)
	}
}

func TestRunWithSimulatedPrefix(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.FileName = filepath.Join(t.TempDir(), "target.img")
	cfg.SimulateThrough = 20

	result, err := Run(context.Background(), fsxlog.DiscardLogger(), cfg, target.Capabilities{}, cfg.FileName)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Outcome != OutcomeClean {
		t.Fatalf("Outcome = %v, want OutcomeClean", result.Outcome)
	}
}
