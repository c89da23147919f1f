//go:build unix

package target

import (
	"errors"
	"os"

	"github.com/fsxtest/fsx/internal/ops"
)

// Probe exercises every platform-conditional operation kind against a
// small scratch file in dir and reports which ones this build/platform
// actually supports, plus which posix_fadvise advice codes are accepted
// (spec.md §4.4: "fsx probes capabilities once at startup ... disabled
// kinds are logged, not silently dropped"). The scratch file is removed
// before Probe returns.
func Probe(dir string) (Capabilities, error) {
	f, err := os.CreateTemp(dir, "fsx-probe-*")
	if err != nil {
		return Capabilities{}, wrapf("probe", err)
	}

	path := f.Name()
	f.Close() //nolint:errcheck

	defer os.Remove(path) //nolint:errcheck

	rt, err := Open(path)
	if err != nil {
		return Capabilities{}, wrapf("probe", err)
	}
	defer rt.Close() //nolint:errcheck

	if err := rt.Truncate(4096); err != nil {
		return Capabilities{}, wrapf("probe", err)
	}

	var caps Capabilities

	probeOne := func(k ops.Kind, fn func() error) {
		if err := fn(); err != nil && errors.Is(err, ErrUnsupported) {
			caps.Unsupported = append(caps.Unsupported, k)
		}
	}

	probeOne(ops.Fdatasync, rt.Fdatasync)
	probeOne(ops.PosixFallocate, func() error { return rt.Fallocate(0, 4096) })
	probeOne(ops.PunchHole, func() error { return rt.PunchHole(0, 4096) })
	probeOne(ops.Sendfile, func() error { _, err := rt.Sendfile(0, 2048, 4); return err })
	probeOne(ops.CopyFileRange, func() error { _, err := rt.CopyFileRange(0, 2048, 4); return err })

	for _, a := range []ops.Advice{
		ops.AdviceNormal, ops.AdviceRandom, ops.AdviceSequential,
		ops.AdviceWillNeed, ops.AdviceDontNeed, ops.AdviceNoReuse,
	} {
		if err := rt.Fadvise(0, 4096, a); err == nil {
			caps.Advice = append(caps.Advice, a)
		} else if !errors.Is(err, ErrUnsupported) {
			// posix_fadvise is available but this advice code itself
			// isn't accepted on this platform/fs; skip just that code.
			continue
		} else {
			// fadvise itself is unsupported; no advice codes apply and
			// PosixFadvise's weight is zeroed below via Unsupported.
			caps.Unsupported = append(caps.Unsupported, ops.PosixFadvise)
			break
		}
	}

	return caps, nil
}
