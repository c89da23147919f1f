// Package target implements fsx's real-file backend: the thin layer over
// OS syscalls that the executor drives and the verifier reads back from.
// It mirrors the shape of the teacher's os-backed FS abstraction (a Real
// type satisfying a small interface) but reaches past os.File into
// golang.org/x/sys/unix for the operations spec.md names that the os
// package doesn't expose: mmap, msync, posix_fallocate, hole punching,
// sendfile, posix_fadvise, and copy_file_range.
package target

import (
	"errors"
	"fmt"
	"os"

	"github.com/fsxtest/fsx/internal/ops"
)

// ErrTarget marks errors originating from the target package. Use
// [errors.Is] with this sentinel to detect them.
var ErrTarget = errors.New("target")

// ErrUnsupported marks an operation this build/platform cannot perform
// (spec.md §4.4: "An op that requires a capability the OS lacks ... must
// be gated at config time"). Callers probe for this with [Probe] before
// the driver loop starts; it should not surface once a run is underway.
var ErrUnsupported = errors.New("operation not supported on this platform")

func wrapf(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTarget, op, err)
}

// State tracks the Open/Closed lifecycle from spec.md §4.4: "In Closed no
// other op may execute; the chooser re-draws an op only after the reopen
// completes."
type State uint8

const (
	StateOpen State = iota
	StateClosed
)

// Target is the real-file backend the executor drives. A Target owns
// exactly one open file descriptor at a time (spec.md §5: "the open file
// descriptor is owned by the loop").
type Target interface {
	// State reports whether the underlying descriptor is currently open.
	State() State

	// Pread reads length bytes at off. A short read with no error is
	// reported as an error (spec.md's executor never tolerates a silent
	// short count on a read it didn't ask to be short).
	Pread(off, length int64) ([]byte, error)

	// Pwrite writes data at off, returning the number of bytes written.
	Pwrite(off int64, data []byte) (int, error)

	// Truncate sets the file's size via ftruncate.
	Truncate(newLen int64) error

	// MapRead loads length bytes at off through a read-only mmap.
	MapRead(off, length int64) ([]byte, error)

	// MapWrite stores data at off through a read/write mmap. If msync is
	// true, MS_SYNC is issued before unmapping (spec.md §4.4 step 3).
	MapWrite(off int64, data []byte, msync bool) error

	// Invalidate calls msync(MS_INVALIDATE) over [off, off+length).
	Invalidate(off, length int64) error

	// Fsync commits file contents and metadata to disk.
	Fsync() error

	// Fdatasync commits file contents (not metadata) to disk.
	Fdatasync() error

	// Fallocate extends/reserves [off, off+length) via posix_fallocate.
	Fallocate(off, length int64) error

	// PunchHole deallocates [off, off+length) without changing file size.
	PunchHole(off, length int64) error

	// Sendfile reads length bytes at srcOff and writes them at dstOff
	// within the same file, via the sendfile(2) syscall routed through a
	// pipe (spec.md §4.3: "read via sendfile into a pipe, verify").
	Sendfile(srcOff, dstOff, length int64) (int, error)

	// Fadvise issues posix_fadvise over [off, off+length) with advice.
	Fadvise(off, length int64, advice ops.Advice) error

	// CopyFileRange copies length bytes from srcOff to dstOff within the
	// same file via copy_file_range(2).
	CopyFileRange(srcOff, dstOff, length int64) (int, error)

	// Size returns the file's current on-disk size via fstat.
	Size() (int64, error)

	// Close closes the underlying descriptor.
	Close() error

	// Reopen closes (if open) and reopens the file at the same path,
	// implementing the close_open operation atomically from the driver's
	// perspective (spec.md §5).
	Reopen() error
}

// AllowedErrno classifies whether err is an acceptable outcome for a
// given operation kind. The whitelist is empty: it returns false for
// every kind and error, so any syscall error ends the run as an
// ErrExecutor failure. Such a failure is not reported as a Mismatch, and
// no artifacts are dumped for it. The executor calls this function
// directly, and only for fsync, fdatasync, posix_fadvise and invalidate;
// errors from the other operation kinds never reach it.
func AllowedErrno(kind ops.Kind, err error) bool {
	return false
}

// Capabilities is the result of capability probing (spec.md §4.4, §9):
// which operation kinds this platform/build supports, and which
// posix_fadvise advice codes it accepts.
type Capabilities struct {
	Unsupported []ops.Kind
	Advice      []ops.Advice
}

// fileInfoSize is a tiny seam so both the unix and stub builds can share
// the same os.File-based helpers without duplicating the stat call.
func fileInfoSize(f *os.File) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}

	return fi.Size(), nil
}
