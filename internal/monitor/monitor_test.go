package monitor

import (
	"testing"

	"github.com/fsxtest/fsx/internal/ops"
)

func TestRecentReturnsOldestFirstWithinCapacity(t *testing.T) {
	t.Parallel()

	m := New(Window{})

	for i := uint64(1); i <= 5; i++ {
		m.Record(ops.Op{Step: i, Kind: ops.Read})
	}

	recent := m.Recent()
	if len(recent) != 5 {
		t.Fatalf("len(Recent()) = %d, want 5", len(recent))
	}

	for i, op := range recent {
		if op.Step != uint64(i+1) {
			t.Errorf("recent[%d].Step = %d, want %d", i, op.Step, i+1)
		}
	}
}

func TestRecentEvictsOldestPastCapacity(t *testing.T) {
	t.Parallel()

	m := New(Window{})

	for i := uint64(1); i <= ringSize+5; i++ {
		m.Record(ops.Op{Step: i, Kind: ops.Write})
	}

	recent := m.Recent()
	if len(recent) != ringSize {
		t.Fatalf("len(Recent()) = %d, want %d", len(recent), ringSize)
	}

	if recent[0].Step != 6 {
		t.Errorf("recent[0].Step = %d, want 6", recent[0].Step)
	}

	if recent[len(recent)-1].Step != ringSize+5 {
		t.Errorf("recent[last].Step = %d, want %d", recent[len(recent)-1].Step, ringSize+5)
	}
}

func TestShouldWarnOnOverlap(t *testing.T) {
	t.Parallel()

	m := New(Window{From: 100, To: 200, Set: true})

	warn := m.ShouldWarn(ops.Op{Kind: ops.Write, Offset: 150, Length: 10}, 1000)
	if !warn {
		t.Fatal("ShouldWarn = false, want true for overlapping write")
	}

	noWarn := m.ShouldWarn(ops.Op{Kind: ops.Write, Offset: 900, Length: 10}, 1000)
	if noWarn {
		t.Fatal("ShouldWarn = true, want false for non-overlapping write")
	}
}

func TestShouldWarnUnsetWindowNeverMatches(t *testing.T) {
	t.Parallel()

	m := New(Window{})

	if m.ShouldWarn(ops.Op{Kind: ops.Write, Offset: 0, Length: 1000000}, 1000000) {
		t.Fatal("ShouldWarn = true with an unset window, want false")
	}
}
