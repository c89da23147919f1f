//go:build unix

// Real's portable core: the operations available via os.File and the
// handful of mmap-family calls that golang.org/x/sys/unix exposes
// uniformly across unix platforms. Operations that only exist on Linux
// (fdatasync, posix_fallocate, hole punching, sendfile, posix_fadvise,
// copy_file_range) live in target_linux.go / target_other.go instead,
// grounded on the mmap/msync/madvise pattern in
// internal-mmap-mmap_unix.go from the example pack.
package target

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Real is the on-disk Target backing a single open file.
type Real struct {
	path  string
	flags int
	perm  os.FileMode
	file  *os.File
	state State
}

// Open creates (if needed) and opens path for reading and writing,
// returning a Real ready to drive.
func Open(path string) (*Real, error) {
	const flags = os.O_RDWR | os.O_CREATE

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, wrapf("open", err)
	}

	return &Real{path: path, flags: flags, perm: 0o644, file: f, state: StateOpen}, nil
}

func (r *Real) State() State { return r.state }

func (r *Real) Pread(off, length int64) ([]byte, error) {
	buf := make([]byte, length)

	n, err := r.file.ReadAt(buf, off)
	if err != nil {
		return nil, wrapf("pread", err)
	}

	if int64(n) != length {
		return nil, wrapf("pread", fmt.Errorf("short read: got %d want %d", n, length))
	}

	return buf, nil
}

func (r *Real) Pwrite(off int64, data []byte) (int, error) {
	n, err := r.file.WriteAt(data, off)
	if err != nil {
		return n, wrapf("pwrite", err)
	}

	return n, nil
}

func (r *Real) Truncate(newLen int64) error {
	if err := r.file.Truncate(newLen); err != nil {
		return wrapf("truncate", err)
	}

	return nil
}

// pageAlign rounds off down to the nearest page boundary so it can be
// passed to mmap(2), which requires a page-aligned offset. It returns the
// aligned offset, the length to map so the aligned region still covers
// [off, off+length), and the in-page delta of off from the aligned
// offset (the index at which the caller's [off, off+length) window
// starts within the mapping).
func pageAlign(off, length int64) (alignedOff int64, mapLen int, delta int64) {
	pageSize := int64(os.Getpagesize())
	delta = off % pageSize
	alignedOff = off - delta

	return alignedOff, int(delta + length), delta
}

func (r *Real) MapRead(off, length int64) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}

	alignedOff, mapLen, delta := pageAlign(off, length)

	m, err := unix.Mmap(int(r.file.Fd()), alignedOff, mapLen, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, wrapf("mmap(read)", err)
	}
	defer unix.Munmap(m) //nolint:errcheck

	out := make([]byte, length)
	copy(out, m[delta:delta+length])

	return out, nil
}

func (r *Real) MapWrite(off int64, data []byte, msync bool) error {
	if len(data) == 0 {
		return nil
	}

	alignedOff, mapLen, delta := pageAlign(off, int64(len(data)))

	m, err := unix.Mmap(int(r.file.Fd()), alignedOff, mapLen, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return wrapf("mmap(write)", err)
	}

	copy(m[delta:delta+int64(len(data))], data)

	if msync {
		if err := unix.Msync(m, unix.MS_SYNC); err != nil {
			unix.Munmap(m) //nolint:errcheck
			return wrapf("msync", err)
		}
	}

	if err := unix.Munmap(m); err != nil {
		return wrapf("munmap", err)
	}

	return nil
}

func (r *Real) Invalidate(off, length int64) error {
	if length == 0 {
		return nil
	}

	alignedOff, mapLen, _ := pageAlign(off, length)

	m, err := unix.Mmap(int(r.file.Fd()), alignedOff, mapLen, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return wrapf("mmap(invalidate)", err)
	}
	defer unix.Munmap(m) //nolint:errcheck

	if err := unix.Msync(m, unix.MS_INVALIDATE); err != nil {
		return wrapf("msync(invalidate)", err)
	}

	return nil
}

func (r *Real) Fsync() error {
	if err := r.file.Sync(); err != nil {
		return wrapf("fsync", err)
	}

	return nil
}

func (r *Real) Size() (int64, error) {
	n, err := fileInfoSize(r.file)
	if err != nil {
		return 0, wrapf("fstat", err)
	}

	return n, nil
}

func (r *Real) Close() error {
	if r.state == StateClosed {
		return nil
	}

	if err := r.file.Close(); err != nil {
		return wrapf("close", err)
	}

	r.state = StateClosed

	return nil
}

func (r *Real) Reopen() error {
	if err := r.Close(); err != nil {
		return err
	}

	f, err := os.OpenFile(r.path, r.flags, r.perm)
	if err != nil {
		return wrapf("reopen", err)
	}

	r.file = f
	r.state = StateOpen

	return nil
}
