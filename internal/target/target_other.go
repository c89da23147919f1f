//go:build unix && !linux

// Stub implementations for the Linux-only syscalls (fdatasync,
// posix_fallocate, hole punching, sendfile, posix_fadvise,
// copy_file_range) on other unix platforms, so Real satisfies Target
// everywhere. Probe zeroes the corresponding op weights on these
// platforms before the driver loop starts, so these bodies should never
// actually run outside of a misconfigured run.
package target

import "github.com/fsxtest/fsx/internal/ops"

func (r *Real) Fdatasync() error {
	return wrapf("fdatasync", ErrUnsupported)
}

func (r *Real) Fallocate(off, length int64) error {
	return wrapf("fallocate", ErrUnsupported)
}

func (r *Real) PunchHole(off, length int64) error {
	return wrapf("fallocate(punch_hole)", ErrUnsupported)
}

func (r *Real) Sendfile(srcOff, dstOff, length int64) (int, error) {
	return 0, wrapf("sendfile", ErrUnsupported)
}

func (r *Real) Fadvise(off, length int64, advice ops.Advice) error {
	return wrapf("posix_fadvise", ErrUnsupported)
}

func (r *Real) CopyFileRange(srcOff, dstOff, length int64) (int, error) {
	return 0, wrapf("copy_file_range", ErrUnsupported)
}
