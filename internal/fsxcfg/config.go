// Package fsxcfg resolves fsx's configuration: built-in defaults, an
// optional HuJSON config file, and CLI flag overrides, in that precedence
// order, matching the teacher's own defaults-then-file-then-flags
// resolution chain.
package fsxcfg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/bits"
	"os"

	"github.com/tailscale/hujson"

	"github.com/fsxtest/fsx/internal/ops"
)

// OpSize bounds the raw length drawn for read/write/mmap/copy operations,
// and the alignment applied to every offset, length, and new-truncate-size
// (spec.md §4.3).
type OpSize struct {
	Min   int64 `json:"min"`
	Max   int64 `json:"max"`
	Align int64 `json:"align"`
}

// Weights holds the relative frequency of each operation kind. A kind
// with weight 0 is disabled. Keys are the wire names from the ops
// package (ops.Kind.String()).
type Weights map[string]uint32

// Weight returns the configured weight for k, or 0 if unset.
func (w Weights) Weight(k ops.Kind) uint32 {
	return w[k.String()]
}

// ToKindMap converts the wire-name-keyed Weights into a map keyed by
// ops.Kind, for consumption by the chooser. Unrecognized names are
// dropped; callers should have already run Validate.
func (w Weights) ToKindMap() map[ops.Kind]uint32 {
	out := make(map[ops.Kind]uint32, len(w))

	for name, weight := range w {
		if k, ok := ops.ParseKind(name); ok {
			out[k] = weight
		}
	}

	return out
}

// Config is fsx's fully resolved, immutable-after-startup configuration
// (spec.md §3).
type Config struct {
	Flen              int64   `json:"flen"`
	BlockMode         bool    `json:"blockmode"`
	NoSizeChecks      bool    `json:"nosizechecks"`
	NoMsyncAfterWrite bool    `json:"nomsyncafterwrite"`
	OpSize            OpSize  `json:"opsize"`
	Weights           Weights `json:"weights"`
	Seed              uint64  `json:"seed"`
	SeedSet           bool    `json:"-"`
	NumOps            uint64  `json:"numops"`
	SimulateThrough   uint64  `json:"simulate_through"`
	MonitorFrom       int64   `json:"monitor_from"`
	MonitorTo         int64   `json:"monitor_to"`
	MonitorSet        bool    `json:"-"`
	ArtifactDir       string  `json:"-"`
	FileName          string  `json:"-"`
	VerbosityAdjust   int     `json:"-"`
}

// DefaultWeights is the default relative frequency table from spec.md
// §4.3. Kinds not listed default to 0 (disabled), matching the spec's
// "platform-conditional / not all FSes support it" kinds.
func DefaultWeights() Weights {
	return Weights{
		ops.Read.String():     10,
		ops.Write.String():    10,
		ops.MapRead.String():  10,
		ops.MapWrite.String(): 10,
		ops.Truncate.String(): 10,
	}
}

// Default returns fsx's built-in defaults (the "Default" column of
// spec.md §3's table).
func Default() Config {
	return Config{
		Flen:    262144,
		OpSize:  OpSize{Min: 0, Max: 65536, Align: 1},
		Weights: DefaultWeights(),
		NumOps:  0,
	}
}

// fileFormat is the on-disk shape of a config file: the same fields as
// Config, but without the CLI-only / resolved-at-runtime members, and
// with explicit pointer fields so "key present but zero" can be
// distinguished from "key absent" where that matters (blockmode,
// nosizechecks, nomsyncafterwrite).
type fileFormat struct {
	Flen              *int64   `json:"flen"`
	BlockMode         *bool    `json:"blockmode"`
	NoSizeChecks      *bool    `json:"nosizechecks"`
	NoMsyncAfterWrite *bool    `json:"nomsyncafterwrite"`
	OpSize            *OpSize  `json:"opsize"`
	Weights           *Weights `json:"weights"`
	Seed              *uint64  `json:"seed"`
	NumOps            *uint64  `json:"numops"`
	SimulateThrough   *uint64  `json:"simulate_through"`
	MonitorFrom       *int64   `json:"monitor_from"`
	MonitorTo         *int64   `json:"monitor_to"`
}

// LoadFile reads and applies a HuJSON config file on top of cfg, returning
// the merged result. Unknown top-level and opsize/weights keys are
// rejected per spec.md §6. A weight key naming an unrecognized operation
// kind is also rejected.
func LoadFile(cfg Config, path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %w", ErrConfigFileRead, path, err)
	}

	standard, err := hujson.Standardize(raw)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %w", ErrConfigInvalid, path, err)
	}

	if err := rejectUnknownKeys(standard); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %w", ErrConfigInvalid, path, err)
	}

	var file fileFormat

	// Decode opsize on top of cfg's values, so keys a partial opsize
	// table omits keep their current (default) value.
	opSize := cfg.OpSize
	file.OpSize = &opSize

	dec := json.NewDecoder(bytes.NewReader(standard))
	if err := dec.Decode(&file); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %w", ErrConfigInvalid, path, err)
	}

	merged := cfg

	if file.Flen != nil {
		merged.Flen = *file.Flen
	}

	if file.BlockMode != nil {
		merged.BlockMode = *file.BlockMode
	}

	if file.NoSizeChecks != nil {
		merged.NoSizeChecks = *file.NoSizeChecks
	}

	if file.NoMsyncAfterWrite != nil {
		merged.NoMsyncAfterWrite = *file.NoMsyncAfterWrite
	}

	if file.OpSize != nil {
		merged.OpSize = *file.OpSize
	}

	if file.Weights != nil {
		if err := validateWeightKeys(*file.Weights); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %w", ErrConfigInvalid, path, err)
		}

		merged.Weights = *file.Weights
	}

	if file.Seed != nil {
		merged.Seed = *file.Seed
		merged.SeedSet = true
	}

	if file.NumOps != nil {
		merged.NumOps = *file.NumOps
	}

	if file.SimulateThrough != nil {
		merged.SimulateThrough = *file.SimulateThrough
	}

	if file.MonitorFrom != nil {
		merged.MonitorFrom = *file.MonitorFrom
		merged.MonitorSet = true
	}

	if file.MonitorTo != nil {
		merged.MonitorTo = *file.MonitorTo
		merged.MonitorSet = true
	}

	return merged, nil
}

var knownTopLevelKeys = map[string]bool{
	"flen": true, "blockmode": true, "nosizechecks": true,
	"nomsyncafterwrite": true, "opsize": true, "weights": true,
	"seed": true, "numops": true, "simulate_through": true,
	"monitor_from": true, "monitor_to": true,
}

var knownOpSizeKeys = map[string]bool{"min": true, "max": true, "align": true}

func rejectUnknownKeys(standardJSON []byte) error {
	var generic map[string]json.RawMessage

	if err := json.Unmarshal(standardJSON, &generic); err != nil {
		return err
	}

	for key := range generic {
		if !knownTopLevelKeys[key] {
			return fmt.Errorf("%w: %q", ErrUnknownKey, key)
		}
	}

	if raw, ok := generic["opsize"]; ok {
		var opsizeGeneric map[string]json.RawMessage
		if err := json.Unmarshal(raw, &opsizeGeneric); err != nil {
			return err
		}

		for key := range opsizeGeneric {
			if !knownOpSizeKeys[key] {
				return fmt.Errorf("%w: \"opsize.%s\"", ErrUnknownKey, key)
			}
		}
	}

	return nil
}

func validateWeightKeys(w Weights) error {
	for name := range w {
		if _, ok := ops.ParseKind(name); !ok {
			return fmt.Errorf("%w: \"weights.%s\"", ErrUnknownKey, name)
		}
	}

	return nil
}

// Validate checks range and power-of-two constraints that cannot be
// caught by JSON decoding alone (spec.md §6: "validated for range and
// for power-of-two where applicable").
func (c Config) Validate() error {
	if c.Flen <= 0 {
		return fmt.Errorf("%w: flen must be positive, got %d", ErrConfigInvalid, c.Flen)
	}

	if c.OpSize.Min < 0 || c.OpSize.Max < c.OpSize.Min {
		return fmt.Errorf("%w: opsize.min=%d, opsize.max=%d is not a valid range", ErrConfigInvalid, c.OpSize.Min, c.OpSize.Max)
	}

	if c.OpSize.Align < 1 {
		return fmt.Errorf("%w: opsize.align must be >= 1, got %d", ErrConfigInvalid, c.OpSize.Align)
	}

	if c.OpSize.Align > 1 && bits.OnesCount64(uint64(c.OpSize.Align)) != 1 {
		return fmt.Errorf("%w: opsize.align must be a power of two, got %d", ErrConfigInvalid, c.OpSize.Align)
	}

	if c.MonitorSet && c.MonitorTo < c.MonitorFrom {
		return fmt.Errorf("%w: monitor_to (%d) must be >= monitor_from (%d)", ErrConfigInvalid, c.MonitorTo, c.MonitorFrom)
	}

	for name := range c.Weights {
		if _, ok := ops.ParseKind(name); !ok {
			return fmt.Errorf("%w: unrecognized operation kind %q in weights", ErrConfigInvalid, name)
		}
	}

	return nil
}
