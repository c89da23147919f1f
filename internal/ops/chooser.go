package ops

// randSource is the minimal draw surface the chooser needs from
// internal/prng.Source, kept as an interface here so this package does
// not import prng (ops is lower-level domain vocabulary; prng is a leaf
// utility consumed by many packages).
type randSource interface {
	Int63Range(lo, hi int64) int64
	Float64() float64
}

// Params bounds the raw values the chooser draws before alignment and
// clamping: the inclusive opsize range and the alignment to apply to
// every offset, length, and new-truncate-size (spec.md §4.3).
type Params struct {
	SizeMin, SizeMax int64
	Align            int64
	Flen             int64
	BlockMode        bool
}

// Chooser implements spec.md §4.3's weighted operation selection plus the
// fixed-order uniform draws for each op's parameters.
type Chooser struct {
	weights map[Kind]uint32
	total   uint32
	order   []Kind // stable iteration order for weighted selection
	params  Params
	advice  []Advice // OS-supported advice codes, for PosixFadvise draws
}

// NewChooser builds a Chooser from per-kind weights and draw parameters.
// Block mode unconditionally zeroes Truncate and PosixFallocate
// regardless of their configured weight (spec.md §4.3). advice is the
// capability-probed set of posix_fadvise codes this platform supports;
// it may be empty if PosixFadvise's weight is 0.
func NewChooser(weights map[Kind]uint32, params Params, advice []Advice) *Chooser {
	c := &Chooser{
		weights: make(map[Kind]uint32, len(weights)),
		params:  params,
		advice:  advice,
	}

	for _, k := range All {
		w := weights[k]

		if params.BlockMode && (k == Truncate || k == PosixFallocate) {
			w = 0
		}

		c.weights[k] = w
		c.order = append(c.order, k)
		c.total += w
	}

	return c
}

// EnabledKinds returns the kinds with non-zero effective weight, in
// stable order, for startup-banner logging (spec.md §4.4: "disabled
// kinds are logged").
func (c *Chooser) EnabledKinds() []Kind {
	var enabled []Kind

	for _, k := range c.order {
		if c.weights[k] > 0 {
			enabled = append(enabled, k)
		}
	}

	return enabled
}

// chooseKind performs weighted discrete selection over c.order. Panics
// if every weight is 0 (a config error the caller must reject before
// starting the driver loop).
func (c *Chooser) chooseKind(r randSource) Kind {
	if c.total == 0 {
		panic("ops: chooser has no enabled operation kinds (all weights are zero)")
	}

	roll := uint32(r.Float64() * float64(c.total))

	var cursor uint32

	for _, k := range c.order {
		cursor += c.weights[k]
		if roll < cursor {
			return k
		}
	}

	// Floating point rounding can push roll to exactly c.total; fall
	// back to the last enabled kind rather than drawing nothing.
	for i := len(c.order) - 1; i >= 0; i-- {
		if c.weights[c.order[i]] > 0 {
			return c.order[i]
		}
	}

	panic("ops: chooser has no enabled operation kinds (all weights are zero)")
}

// Draw produces the next Op, following the fixed draw order from
// spec.md §4.3: (1) kind, (2) raw length, (3) raw offset, (4) alignment
// and clamping. step is the 1-based step number to stamp onto the Op.
func (c *Chooser) Draw(r randSource, step uint64) Op {
	kind := c.chooseKind(r)

	op := Op{Step: step, Kind: kind}

	switch kind {
	case Truncate:
		newSize := c.drawUniform(r, 0, c.params.Flen)
		op.NewSize = alignDown(newSize, c.params.Align)

		return op
	case CloseOpen, Fsync, Fdatasync:
		return op
	case Invalidate:
		length := c.drawUniform(r, c.params.SizeMin, c.params.SizeMax)
		offset := c.drawUniform(r, 0, c.params.Flen)
		op.Offset, op.Length = clampAligned(offset, length, c.params.Flen, c.params.Align)

		return op
	case PosixFadvise:
		length := c.drawUniform(r, c.params.SizeMin, c.params.SizeMax)
		offset := c.drawUniform(r, 0, c.params.Flen)
		op.Offset, op.Length = clampAligned(offset, length, c.params.Flen, c.params.Align)
		op.Extra.Advice = c.drawAdvice(r)

		return op
	case CopyFileRange, Sendfile:
		length := c.drawUniform(r, c.params.SizeMin, c.params.SizeMax)
		dstOffset := c.drawUniform(r, 0, c.params.Flen)
		srcOffset := c.drawUniform(r, 0, c.params.Flen)

		dstOffset, length = clampAligned(dstOffset, length, c.params.Flen, c.params.Align)
		srcOffset, length = clampAligned(srcOffset, length, c.params.Flen, c.params.Align)

		op.Offset = dstOffset
		op.Length = length
		op.Extra.SrcOffset = srcOffset

		return op
	default: // Read, Write, MapRead, MapWrite, PunchHole
		length := c.drawUniform(r, c.params.SizeMin, c.params.SizeMax)
		offset := c.drawUniform(r, 0, c.params.Flen)
		op.Offset, op.Length = clampAligned(offset, length, c.params.Flen, c.params.Align)

		return op
	}
}

func (c *Chooser) drawUniform(r randSource, lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}

	return r.Int63Range(lo, hi)
}

func (c *Chooser) drawAdvice(r randSource) Advice {
	if len(c.advice) == 0 {
		return AdviceNormal
	}

	idx := r.Int63Range(0, int64(len(c.advice))-1)

	return c.advice[idx]
}

func alignDown(v, align int64) int64 {
	if align > 1 {
		v -= v % align
	}

	return v
}

// clampAligned rounds off and length down to align, then clips so that
// off+length never exceeds flen (spec.md §4.3 step 4).
func clampAligned(off, length, flen, align int64) (int64, int64) {
	off = alignDown(off, align)
	length = alignDown(length, align)

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
