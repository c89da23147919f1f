//go:build linux

package target

import (
	"path/filepath"
	"testing"

	"github.com/fsxtest/fsx/internal/ops"
)

func TestAdviceToUnixCoversAllAdviceValues(t *testing.T) {
	t.Parallel()

	for _, a := range []ops.Advice{
		ops.AdviceNormal, ops.AdviceRandom, ops.AdviceSequential,
		ops.AdviceWillNeed, ops.AdviceDontNeed, ops.AdviceNoReuse,
	} {
		_ = adviceToUnix(a)
	}
}

func TestFallocatePunchHoleCopyFileRange(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "f.img")

	rt, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rt.Close() //nolint:errcheck

	if err := rt.Fallocate(0, 4096); err != nil {
		t.Fatalf("Fallocate: %v", err)
	}

	if err := rt.PunchHole(0, 512); err != nil {
		t.Fatalf("PunchHole: %v", err)
	}

	if _, err := rt.Pwrite(1024, []byte("copy-me-please..")); err != nil {
		t.Fatalf("Pwrite: %v", err)
	}

	n, err := rt.CopyFileRange(1024, 2048, 16)
	if err != nil {
		t.Fatalf("CopyFileRange: %v", err)
	}

	if n != 16 {
		t.Fatalf("CopyFileRange copied %d bytes, want 16", n)
	}

	got, err := rt.Pread(2048, 16)
	if err != nil {
		t.Fatalf("Pread: %v", err)
	}

	if string(got) != "copy-me-please.." {
		t.Fatalf("Pread after copy_file_range = %q", got)
	}
}

func TestFallocatePunchHoleZeroLengthIsNoop(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "f.img")

	rt, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rt.Close() //nolint:errcheck

	if err := rt.Fallocate(0, 0); err != nil {
		t.Fatalf("Fallocate with zero length should be a no-op, got: %v", err)
	}

	if err := rt.PunchHole(0, 0); err != nil {
		t.Fatalf("PunchHole with zero length should be a no-op, got: %v", err)
	}
}
