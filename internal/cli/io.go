package cli

import (
	"fmt"
	"io"
)

// IO wraps fsx's stdout/stderr streams and collects warnings so that,
// regardless of how much normal output is produced or where it's
// piped/truncated, anything the operator needs to notice (a disabled
// operation kind, a config quirk) is surfaced both before the main
// output starts and again in the final summary.
type IO struct {
	out      io.Writer
	errOut   io.Writer
	warnings []string
	started  bool
}

// NewIO creates a new IO instance.
func NewIO(out, errOut io.Writer) *IO {
	return &IO{out: out, errOut: errOut}
}

// Warn records a warning to be shown at the start and end of the run.
func (o *IO) Warn(msg string) {
	o.warnings = append(o.warnings, msg)
}

// Println writes to stdout, flushing any pending start-of-run warnings
// to stderr first.
func (o *IO) Println(a ...any) {
	o.flushWarningsStart()
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes formatted output to stdout, flushing any pending
// start-of-run warnings to stderr first.
func (o *IO) Printf(format string, a ...any) {
	o.flushWarningsStart()
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// Finish re-prints every warning to stderr (so it survives a scrollback
// that only kept the tail) and returns the additional exit status a
// pending warning implies: 0 if clean, 1 if any warning was recorded and
// the caller hasn't already chosen a more specific exit code.
func (o *IO) Finish() int {
	o.flushWarningsStart()

	for _, w := range o.warnings {
		_, _ = fmt.Fprintln(o.errOut, "warning:", w)
	}

	if len(o.warnings) > 0 {
		return 1
	}

	return 0
}

func (o *IO) flushWarningsStart() {
	if !o.started && len(o.warnings) > 0 {
		for _, w := range o.warnings {
			_, _ = fmt.Fprintln(o.errOut, "warning:", w)
		}

		o.started = true
	}
}
