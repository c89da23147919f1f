// Package executor applies a chosen operation to the shadow model and to
// the real file, in that order for writes (spec.md §4.4's mmap coherence
// rule generalizes to every mutating op: the shadow always reflects the
// intended post-state before the syscall that's supposed to produce it
// runs), then verifies the two agree wherever the op makes that
// observable.
package executor

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/google/go-cmp/cmp"

	"github.com/fsxtest/fsx/internal/ops"
	"github.com/fsxtest/fsx/internal/prng"
	"github.com/fsxtest/fsx/internal/shadow"
	"github.com/fsxtest/fsx/internal/target"
)

// ErrExecutor marks an internal fsx failure (a syscall error not
// classified as an acceptable errno), as opposed to a Mismatch, which
// marks the correctness bug fsx is built to find.
var ErrExecutor = errors.New("executor")

// Mismatch reports that the shadow model and the real file disagree
// after an operation that should have left them identical. Driver code
// detects this with errors.As and triggers the artifact dump.
type Mismatch struct {
	Op   ops.Op
	Diff string
}

func (m *Mismatch) Error() string {
	return fmt.Sprintf("mismatch after op %d (%s): %s", m.Op.Step, m.Op.Kind, m.Diff)
}

// Executor applies ops to a shadow/target pair and verifies them.
type Executor struct {
	shadow            *shadow.Shadow
	target            target.Target
	rng               *prng.Source
	noSizeChecks      bool
	noMsyncAfterWrite bool
}

// New builds an Executor over sh and t, drawing write/mmap-write content
// from rng.
func New(sh *shadow.Shadow, t target.Target, rng *prng.Source, noSizeChecks, noMsyncAfterWrite bool) *Executor {
	return &Executor{
		shadow:            sh,
		target:            t,
		rng:               rng,
		noSizeChecks:      noSizeChecks,
		noMsyncAfterWrite: noMsyncAfterWrite,
	}
}

// Execute applies op to both models, verifies agreement where the op
// produces an observable result, and then checks the real file's size
// against the shadow's (spec.md §4.4 step 4: a size check runs after
// every op, not just the truncation-like ones, since a kernel bug can
// corrupt file size on any mutating op). It returns a *Mismatch when the
// shadow and the real file disagree, or a wrapped ErrExecutor for an
// unexpected I/O failure.
func (e *Executor) Execute(op ops.Op) error {
	if err := e.dispatch(op); err != nil {
		return err
	}

	return e.verifySize(op)
}

func (e *Executor) dispatch(op ops.Op) error {
	switch op.Kind {
	case ops.Read:
		return e.verifyRead(op)
	case ops.Write:
		return e.write(op, false)
	case ops.MapRead:
		return e.verifyMapRead(op)
	case ops.MapWrite:
		return e.write(op, true)
	case ops.Truncate:
		return e.truncate(op)
	case ops.CloseOpen:
		return e.closeOpen()
	case ops.Invalidate:
		return e.invalidate(op)
	case ops.Fsync:
		return e.wrapIO(op.Kind, "fsync", e.target.Fsync())
	case ops.Fdatasync:
		return e.wrapIO(op.Kind, "fdatasync", e.target.Fdatasync())
	case ops.PosixFallocate:
		return e.fallocate(op)
	case ops.PunchHole:
		return e.punchHole(op)
	case ops.Sendfile:
		return e.sendfile(op)
	case ops.PosixFadvise:
		return e.wrapIO(op.Kind, "posix_fadvise", e.target.Fadvise(op.Offset, op.Length, op.Extra.Advice))
	case ops.CopyFileRange:
		return e.copyFileRange(op)
	default:
		return fmt.Errorf("%w: unknown op kind %v", ErrExecutor, op.Kind)
	}
}

func (e *Executor) wrapIO(kind ops.Kind, name string, err error) error {
	if err == nil {
		return nil
	}

	if target.AllowedErrno(kind, err) {
		return nil
	}

	return fmt.Errorf("%w: %s: %w", ErrExecutor, name, err)
}

func (e *Executor) invalidate(op ops.Op) error {
	return e.wrapIO(op.Kind, "invalidate", e.target.Invalidate(op.Offset, op.Length))
}

func (e *Executor) verifyRead(op ops.Op) error {
	length := e.readLength(op)

	want, err := e.shadow.Read(op.Offset, length)
	if err != nil {
		return fmt.Errorf("%w: shadow read: %w", ErrExecutor, err)
	}

	got, err := e.target.Pread(op.Offset, length)
	if err != nil {
		return fmt.Errorf("%w: pread: %w", ErrExecutor, err)
	}

	return compare(op, want, got)
}

func (e *Executor) verifyMapRead(op ops.Op) error {
	length := e.readLength(op)

	want, err := e.shadow.Read(op.Offset, length)
	if err != nil {
		return fmt.Errorf("%w: shadow read: %w", ErrExecutor, err)
	}

	got, err := e.target.MapRead(op.Offset, length)
	if err != nil {
		return fmt.Errorf("%w: mmap read: %w", ErrExecutor, err)
	}

	return compare(op, want, got)
}

// write handles both Write and MapWrite. The shadow is updated first in
// both cases: for a real write that's merely bookkeeping, but for a
// mmap'd write it captures the crash-consistency model spec.md describes
// for mapwrite -- if fsx is killed mid-store into the mapping, the shadow
// already reflects the intended post-state, which is what a correctness
// check after a crash-recovery restart needs to compare against.
func (e *Executor) write(op ops.Op, mapped bool) error {
	data := e.rng.FillBytes(op.Length)

	if err := e.shadow.Write(op.Offset, data); err != nil {
		return fmt.Errorf("%w: shadow write: %w", ErrExecutor, err)
	}

	if mapped {
		// A mapping cannot store past the end of the file, so grow the
		// real file first, as the shadow write above already did.
		size, err := e.target.Size()
		if err != nil {
			return fmt.Errorf("%w: fstat: %w", ErrExecutor, err)
		}

		if end := op.Offset + op.Length; op.Length > 0 && end > size {
			if err := e.target.Truncate(end); err != nil {
				return fmt.Errorf("%w: mmap write: extend: %w", ErrExecutor, err)
			}
		}

		if err := e.target.MapWrite(op.Offset, data, !e.noMsyncAfterWrite); err != nil {
			return fmt.Errorf("%w: mmap write: %w", ErrExecutor, err)
		}

		return nil
	}

	n, err := e.target.Pwrite(op.Offset, data)
	if err != nil {
		return fmt.Errorf("%w: pwrite: %w", ErrExecutor, err)
	}

	if int64(n) != op.Length {
		return fmt.Errorf("%w: pwrite: short write: wrote %d want %d", ErrExecutor, n, op.Length)
	}

	return nil
}

func (e *Executor) truncate(op ops.Op) error {
	if err := e.shadow.Truncate(op.NewSize); err != nil {
		return fmt.Errorf("%w: shadow truncate: %w", ErrExecutor, err)
	}

	if err := e.target.Truncate(op.NewSize); err != nil {
		return fmt.Errorf("%w: truncate: %w", ErrExecutor, err)
	}

	return nil
}

func (e *Executor) fallocate(op ops.Op) error {
	if err := e.shadow.Fallocate(op.Offset, op.Length); err != nil {
		return fmt.Errorf("%w: shadow fallocate: %w", ErrExecutor, err)
	}

	if err := e.target.Fallocate(op.Offset, op.Length); err != nil {
		return fmt.Errorf("%w: fallocate: %w", ErrExecutor, err)
	}

	return nil
}

func (e *Executor) punchHole(op ops.Op) error {
	if err := e.shadow.Punch(op.Offset, op.Length); err != nil {
		return fmt.Errorf("%w: shadow punch: %w", ErrExecutor, err)
	}

	if err := e.target.PunchHole(op.Offset, op.Length); err != nil {
		return fmt.Errorf("%w: punch_hole: %w", ErrExecutor, err)
	}

	return nil
}

func (e *Executor) sendfile(op ops.Op) error {
	if err := e.shadow.Sendfile(op.Extra.SrcOffset, op.Offset, op.Length); err != nil {
		return fmt.Errorf("%w: shadow sendfile: %w", ErrExecutor, err)
	}

	n, err := e.target.Sendfile(op.Extra.SrcOffset, op.Offset, op.Length)
	if err != nil {
		return fmt.Errorf("%w: sendfile: %w", ErrExecutor, err)
	}

	if int64(n) != op.Length {
		return fmt.Errorf("%w: sendfile: short copy: copied %d want %d", ErrExecutor, n, op.Length)
	}

	return nil
}

func (e *Executor) copyFileRange(op ops.Op) error {
	if err := e.shadow.Copy(op.Extra.SrcOffset, op.Offset, op.Length); err != nil {
		return fmt.Errorf("%w: shadow copy_file_range: %w", ErrExecutor, err)
	}

	n, err := e.target.CopyFileRange(op.Extra.SrcOffset, op.Offset, op.Length)
	if err != nil {
		return fmt.Errorf("%w: copy_file_range: %w", ErrExecutor, err)
	}

	if int64(n) != op.Length {
		return fmt.Errorf("%w: copy_file_range: short copy: copied %d want %d", ErrExecutor, n, op.Length)
	}

	return nil
}

func (e *Executor) closeOpen() error {
	if err := e.target.Reopen(); err != nil {
		return fmt.Errorf("%w: close_open: %w", ErrExecutor, err)
	}

	return nil
}

func (e *Executor) verifySize(op ops.Op) error {
	if e.noSizeChecks {
		return nil
	}

	want := e.shadow.Size()

	got, err := e.target.Size()
	if err != nil {
		return fmt.Errorf("%w: fstat: %w", ErrExecutor, err)
	}

	if want != got {
		return &Mismatch{Op: op, Diff: fmt.Sprintf("size: shadow=%d real=%d", want, got)}
	}

	return nil
}

func compare(op ops.Op, want, got []byte) error {
	if bytes.Equal(want, got) {
		return nil
	}

	return &Mismatch{Op: op, Diff: cmp.Diff(want, got)}
}

// readLength clips op's length to the shadow's current size, so a read
// never asks the real file for bytes past its end.
func (e *Executor) readLength(op ops.Op) int64 {
	size := e.shadow.Size()
	if op.Offset >= size {
		return 0
	}

	return min(op.Length, size-op.Offset)
}
