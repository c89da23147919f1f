// Package shadow implements fsx's in-memory model of a file's expected
// contents: the "good" buffer every real-file observation is checked
// against. It has no knowledge of operations, log records, or the PRNG; it
// only knows how to apply the primitive mutations spec.md assigns to each
// operation kind.
package shadow

import (
	"errors"
	"fmt"
)

// ErrShadow marks errors originating from the shadow model. Use
// [errors.Is] with this sentinel to detect them.
var ErrShadow = errors.New("shadow")

func wrapf(op string, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", ErrShadow, op, fmt.Errorf(format, args...))
}

// Shadow is the expected-contents model described in spec.md §3/§4.2: a
// byte buffer of capacity flen, with a logical length (Size) that is
// always <= flen. Bytes beyond Size are conventionally zero but are not
// authoritative; only [0, Size) is.
//
// Shadow is not safe for concurrent use; fsx drives it from a single
// goroutine (the driver loop), matching spec.md §5.
type Shadow struct {
	flen int64
	good []byte
	size int64
}

// New creates a Shadow with the given capacity. The initial size is 0.
func New(flen int64) *Shadow {
	return &Shadow{
		flen: flen,
		good: make([]byte, flen),
	}
}

// Flen returns the hard capacity this Shadow was created with.
func (s *Shadow) Flen() int64 {
	return s.flen
}

// Size returns the current logical length: the number of bytes in
// [0, Size) that are authoritative.
func (s *Shadow) Size() int64 {
	return s.size
}

// Clamp rounds off and length down to alignment and clips off+len so that
// it never exceeds flen, per spec.md §4.3's alignment rule. An off beyond
// flen is clipped to flen (with length 0); align must be a power of two or 1.
func Clamp(off, length, flen, align int64) (clampedOff, clampedLen int64) {
	if align > 1 {
		off -= off % align
		length -= length % align
	}

	if off > flen {
		off = flen
	}

	if off+length > flen {
		length = flen - off
	}

	if length < 0 {
		length = 0
	}

	return off, length
}

// Read returns a copy of the bytes in [off, off+length). Per spec.md
// §4.2, reads past Size are zero-extended up to flen; off+length must not
// exceed flen (the caller is expected to have clamped already).
func (s *Shadow) Read(off, length int64) ([]byte, error) {
	if off < 0 || length < 0 || off+length > s.flen {
		return nil, wrapf("read", "range [%d,%d) exceeds flen %d", off, off+length, s.flen)
	}

	out := make([]byte, length)

	// Bytes within [off, Size) are authoritative; anything past Size (up
	// to flen) reads as zero, which out already is.
	if off < s.size {
		n := s.size - off
		if n > length {
			n = length
		}

		copy(out, s.good[off:off+n])
	}

	return out, nil
}

// Write stores data at off, extending Size if off+len(data) > Size.
// Returns an error if off+len(data) > flen. An empty write is a no-op and
// never changes Size.
func (s *Shadow) Write(off int64, data []byte) error {
	end := off + int64(len(data))
	if off < 0 || end > s.flen {
		return wrapf("write", "range [%d,%d) exceeds flen %d", off, end, s.flen)
	}

	if len(data) == 0 {
		return nil
	}

	copy(s.good[off:end], data)
	s.growTo(end)

	return nil
}

// Truncate sets Size to newLen, zero-filling any newly covered bytes when
// growing. Returns an error if newLen > flen.
func (s *Shadow) Truncate(newLen int64) error {
	if newLen < 0 || newLen > s.flen {
		return wrapf("truncate", "new size %d exceeds flen %d", newLen, s.flen)
	}

	if newLen > s.size {
		zero(s.good[s.size:newLen])
	}

	s.size = newLen

	return nil
}

// Fallocate extends Size to max(Size, off+length), zero-filling any newly
// covered bytes, without shrinking. Returns an error if off+length > flen.
// A zero length is a no-op and never changes Size.
func (s *Shadow) Fallocate(off, length int64) error {
	end := off + length
	if off < 0 || length < 0 || end > s.flen {
		return wrapf("fallocate", "range [%d,%d) exceeds flen %d", off, end, s.flen)
	}

	if length == 0 {
		return nil
	}

	if end > s.size {
		if off > s.size {
			zero(s.good[s.size:off])
		}

		zero(s.good[max64(s.size, off):end])
	}

	s.growTo(end)

	return nil
}

// Punch zero-fills [off, min(off+length, Size)) without changing Size.
// Punching past the current end of file is a valid no-op over the
// trailing portion, matching posix fallocate(FALLOC_FL_PUNCH_HOLE)
// semantics: a hole cannot extend the file.
func (s *Shadow) Punch(off, length int64) error {
	if off < 0 || length < 0 || off+length > s.flen {
		return wrapf("punch", "range [%d,%d) exceeds flen %d", off, off+length, s.flen)
	}

	end := off + length
	if end > s.size {
		end = s.size
	}

	if end > off {
		zero(s.good[off:end])
	}

	return nil
}

// Copy implements copy_file_range's shadow semantics: memmove src..src+len
// into dst..dst+len, extending Size as needed. Overlap between src and dst
// is permitted and handled like memmove (not like two independent
// byte-by-byte passes), per spec.md §9 open question (b).
func (s *Shadow) Copy(src, dst, length int64) error {
	if src < 0 || dst < 0 || length < 0 {
		return wrapf("copy", "negative range src=%d dst=%d len=%d", src, dst, length)
	}

	if src+length > s.flen || dst+length > s.flen {
		return wrapf("copy", "range exceeds flen %d: src=[%d,%d) dst=[%d,%d)", s.flen, src, src+length, dst, dst+length)
	}

	if length == 0 {
		return nil
	}

	// Read the source first (including any zero-extension past Size) so
	// overlap is resolved the same way memmove resolves it: the source
	// view is captured before any destination byte is touched.
	srcBytes, err := s.Read(src, length)
	if err != nil {
		return err
	}

	copy(s.good[dst:dst+length], srcBytes)
	s.growTo(dst + length)

	return nil
}

// Sendfile implements the shadow side of a sendfile-based op: the bytes
// read from [srcOff, srcOff+length) are written to [dstOff, ...), with
// standard write (extend-on-grow) semantics. This is modeled identically
// to Copy; fsx only ever sendfiles within the same target file (see
// spec.md §1's operation list and §4.2).
func (s *Shadow) Sendfile(srcOff, dstOff, length int64) error {
	return s.Copy(srcOff, dstOff, length)
}

// Bytes returns a copy of the authoritative prefix [0, Size). Used by the
// driver to materialize the simulated prefix onto the real file, and by
// the dumper to write the .fsxgood artifact.
func (s *Shadow) Bytes() []byte {
	out := make([]byte, s.size)
	copy(out, s.good[:s.size])

	return out
}

func (s *Shadow) growTo(end int64) {
	if end > s.size {
		s.size = end
	}
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}

	return b
}
