// Package monitor implements fsx's recent-operations ring buffer and the
// byte-range "monitor window" that promotes logging to warn level when an
// operation touches a range of particular interest (spec.md §4.5).
package monitor

import "github.com/fsxtest/fsx/internal/ops"

const ringSize = 20

// Window is a closed-open byte range fsx watches closely. A zero-value
// Window (From == To == 0 and unset) never matches.
type Window struct {
	From, To int64
	Set      bool
}

// Overlaps reports whether [from, to) intersects the window.
func (w Window) Overlaps(from, to int64) bool {
	if !w.Set {
		return false
	}

	return from < w.To && to > w.From
}

// Monitor keeps the last few executed ops for failure diagnostics and
// tracks a byte-range window that, when touched, raises the log level
// for that step to warn (spec.md §4.5: "so a human re-reading the log
// can jump straight to the interesting region").
type Monitor struct {
	window Window
	ring   [ringSize]ops.Op
	count  int // total ops ever recorded, for indexing into the ring
}

// New constructs a Monitor watching the given window.
func New(window Window) *Monitor {
	return &Monitor{window: window}
}

// Record appends op to the ring, evicting the oldest entry once full.
func (m *Monitor) Record(op ops.Op) {
	m.ring[m.count%ringSize] = op
	m.count++
}

// Recent returns up to the last ringSize recorded ops, oldest first.
func (m *Monitor) Recent() []ops.Op {
	n := m.count
	if n > ringSize {
		n = ringSize
	}

	out := make([]ops.Op, n)

	for i := 0; i < n; i++ {
		idx := (m.count - n + i) % ringSize
		out[i] = m.ring[idx]
	}

	return out
}

// ShouldWarn reports whether op's touched range intersects the monitor
// window, given the file's size before op executed (needed for
// Truncate's range computation).
func (m *Monitor) ShouldWarn(op ops.Op, oldSize int64) bool {
	from, to := op.TouchedRange(oldSize)

	return m.window.Overlaps(from, to)
}
