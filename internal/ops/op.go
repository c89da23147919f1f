// Package ops defines the operation vocabulary fsx drives a target file
// through: the kinds of syscalls that can be chosen, and the record shape
// used to log and replay a single chosen step.
package ops

// Kind identifies one of the mutating or reading operations fsx can choose
// to perform on a step. The zero value is not a valid Kind; use the Kind*
// constants.
type Kind uint8

const (
	Read Kind = iota + 1
	Write
	MapRead
	MapWrite
	Truncate
	CloseOpen
	Invalidate
	Fsync
	Fdatasync
	PosixFallocate
	PunchHole
	Sendfile
	PosixFadvise
	CopyFileRange

	numKinds = int(CopyFileRange)
)

// All lists every Kind in a stable order, matching the table in the
// operation chooser's weight configuration.
var All = []Kind{
	Read, Write, MapRead, MapWrite, Truncate, CloseOpen, Invalidate,
	Fsync, Fdatasync, PosixFallocate, PunchHole, Sendfile, PosixFadvise,
	CopyFileRange,
}

var kindNames = map[Kind]string{
	Read:           "read",
	Write:          "write",
	MapRead:        "mapread",
	MapWrite:       "mapwrite",
	Truncate:       "truncate",
	CloseOpen:      "close_open",
	Invalidate:     "invalidate",
	Fsync:          "fsync",
	Fdatasync:      "fdatasync",
	PosixFallocate: "posix_fallocate",
	PunchHole:      "punch_hole",
	Sendfile:       "sendfile",
	PosixFadvise:   "posix_fadvise",
	CopyFileRange:  "copy_file_range",
}

// String returns the stable, lowercase wire name used in config files,
// flags, and log lines.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return "unknown"
}

// ParseKind maps a wire name (as used in config files and log lines) back
// to its Kind. ok is false for unrecognized names.
func ParseKind(name string) (k Kind, ok bool) {
	for kind, kindName := range kindNames {
		if kindName == name {
			return kind, true
		}
	}

	return 0, false
}

// Advice enumerates the posix_fadvise advice codes fsx chooses uniformly
// among. The OS-supported subset is determined at startup by capability
// probing; see the target package.
type Advice uint8

const (
	AdviceNormal Advice = iota
	AdviceRandom
	AdviceSequential
	AdviceWillNeed
	AdviceDontNeed
	AdviceNoReuse
)

var adviceNames = map[Advice]string{
	AdviceNormal:     "normal",
	AdviceRandom:     "random",
	AdviceSequential: "sequential",
	AdviceWillNeed:   "willneed",
	AdviceDontNeed:   "dontneed",
	AdviceNoReuse:    "noreuse",
}

func (a Advice) String() string {
	if name, ok := adviceNames[a]; ok {
		return name
	}

	return "unknown"
}

// Extra carries the per-kind parameters that don't fit the common
// step/kind/offset/length shape: a second offset for copy_file_range, and
// an advice code for posix_fadvise.
type Extra struct {
	// SrcOffset is the source offset for the two ops that copy bytes
	// between two ranges of the same file: copy_file_range and sendfile.
	// Offset carries the destination offset in both cases.
	SrcOffset int64

	// Advice is the posix_fadvise advice code. Only meaningful when
	// Kind == PosixFadvise.
	Advice Advice
}

// Op is one chosen step in the generated sequence: what to do, and with
// which parameters. Offset and Length are always aligned and clipped to
// flen by the time an Op is constructed; see Chooser.Draw.
type Op struct {
	// Step is the 1-based monotonic index of this op in the run.
	Step uint64

	Kind Kind

	// Offset is the primary byte offset the op acts on. For Truncate, it
	// is unused; NewSize carries the target size instead.
	Offset int64

	// Length is the byte length the op acts on (read/write/copy length,
	// fallocate/punch length, and the invalidated or advised range for
	// Invalidate and PosixFadvise). Unused by Truncate, CloseOpen, Fsync,
	// and Fdatasync.
	Length int64

	// NewSize is the target size for Truncate.
	NewSize int64

	Extra Extra
}

// TouchedRange returns the half-open byte interval this op reads, writes,
// or otherwise affects, for monitor-window matching (see the monitor
// package). oldSize is the file size immediately before the op was
// applied; it only matters for Truncate.
func (o Op) TouchedRange(oldSize int64) (from, to int64) {
	switch o.Kind {
	case Truncate:
		if oldSize < o.NewSize {
			return oldSize, o.NewSize
		}

		return o.NewSize, oldSize
	case CloseOpen, Fsync, Fdatasync:
		return 0, 0
	case CopyFileRange:
		return o.Offset, o.Offset + o.Length
	default:
		return o.Offset, o.Offset + o.Length
	}
}
