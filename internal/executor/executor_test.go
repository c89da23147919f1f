package executor

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/fsxtest/fsx/internal/ops"
	"github.com/fsxtest/fsx/internal/prng"
	"github.com/fsxtest/fsx/internal/shadow"
	"github.com/fsxtest/fsx/internal/target"
)

func newTestExecutor(t *testing.T, flen int64) (*Executor, *shadow.Shadow, target.Target) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "target.img")

	rt, err := target.Open(path)
	if err != nil {
		t.Fatalf("target.Open: %v", err)
	}

	t.Cleanup(func() { rt.Close() })

	if err := rt.Truncate(flen); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	sh := shadow.New(flen)
	if err := sh.Truncate(flen); err != nil {
		t.Fatalf("shadow Truncate: %v", err)
	}

	rng := prng.New(1)

	return New(sh, rt, rng, false, false), sh, rt
}

func TestWriteThenReadAgree(t *testing.T) {
	t.Parallel()

	e, _, _ := newTestExecutor(t, 4096)

	if err := e.Execute(ops.Op{Kind: ops.Write, Offset: 0, Length: 128}); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := e.Execute(ops.Op{Kind: ops.Read, Offset: 0, Length: 128}); err != nil {
		t.Fatalf("read: %v", err)
	}
}

func TestMapWriteThenMapReadAgree(t *testing.T) {
	t.Parallel()

	e, _, _ := newTestExecutor(t, 4096)

	if err := e.Execute(ops.Op{Kind: ops.MapWrite, Offset: 0, Length: 64}); err != nil {
		t.Fatalf("mapwrite: %v", err)
	}

	if err := e.Execute(ops.Op{Kind: ops.MapRead, Offset: 0, Length: 64}); err != nil {
		t.Fatalf("mapread: %v", err)
	}
}

func TestReadDetectsMismatch(t *testing.T) {
	t.Parallel()

	e, _, rt := newTestExecutor(t, 4096)

	if err := e.Execute(ops.Op{Kind: ops.Write, Offset: 0, Length: 16}); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Corrupt the real file behind the executor's back.
	if _, err := rt.Pwrite(0, []byte("corrupted!!!!!!!")); err != nil {
		t.Fatalf("corrupt write: %v", err)
	}

	err := e.Execute(ops.Op{Kind: ops.Read, Offset: 0, Length: 16})

	var mismatch *Mismatch
	if !errors.As(err, &mismatch) {
		t.Fatalf("Execute() = %v, want *Mismatch", err)
	}
}

func TestTruncateChecksSize(t *testing.T) {
	t.Parallel()

	e, _, _ := newTestExecutor(t, 4096)

	if err := e.Execute(ops.Op{Kind: ops.Truncate, NewSize: 1024}); err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

func TestCloseOpenReopensTarget(t *testing.T) {
	t.Parallel()

	e, _, rt := newTestExecutor(t, 4096)

	if err := e.Execute(ops.Op{Kind: ops.CloseOpen}); err != nil {
		t.Fatalf("close_open: %v", err)
	}

	if rt.State() != target.StateOpen {
		t.Fatalf("State() = %v, want StateOpen after close_open", rt.State())
	}
}

func TestFsyncSucceeds(t *testing.T) {
	t.Parallel()

	e, _, _ := newTestExecutor(t, 4096)

	if err := e.Execute(ops.Op{Kind: ops.Fsync}); err != nil {
		t.Fatalf("fsync: %v", err)
	}
}
