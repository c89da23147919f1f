package fsxcfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fsxtest/fsx/internal/ops"
)

func TestDefaultValidates(t *testing.T) {
	t.Parallel()

	require.NoError(t, Default().Validate())
}

func TestDefaultWeightsMatchSpec(t *testing.T) {
	t.Parallel()

	d := DefaultWeights()

	for _, k := range []ops.Kind{ops.Read, ops.Write, ops.MapRead, ops.MapWrite, ops.Truncate} {
		require.EqualValuesf(t, 10, d.Weight(k), "default weight for %s", k)
	}

	for _, k := range []ops.Kind{ops.CloseOpen, ops.Invalidate, ops.Fsync, ops.Fdatasync,
		ops.PosixFallocate, ops.PunchHole, ops.Sendfile, ops.PosixFadvise, ops.CopyFileRange} {
		require.Zerof(t, d.Weight(k), "default weight for %s", k)
	}
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "fsx.json")

	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	return path
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `{
		// a comment, because this is HuJSON
		"flen": 8192,
		"opsize": {"min": 1, "max": 512, "align": 4},
		"weights": {"read": 5, "write": 5, "fsync": 1},
	}`)

	cfg, err := LoadFile(Default(), path)
	require.NoError(t, err)

	require.Equal(t, int64(8192), cfg.Flen)
	require.Equal(t, OpSize{Min: 1, Max: 512, Align: 4}, cfg.OpSize)
	require.EqualValues(t, 1, cfg.Weights.Weight(ops.Fsync))
	require.NoError(t, cfg.Validate())
}

func TestLoadFileUnknownTopLevelKeyFails(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `{"flen": 1024, "bogus": true}`)

	_, err := LoadFile(Default(), path)
	require.ErrorIs(t, err, ErrUnknownKey)
}

func TestLoadFileUnknownOpSizeKeyFails(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `{"opsize": {"min": 0, "max": 10, "stride": 2}}`)

	_, err := LoadFile(Default(), path)
	require.ErrorIs(t, err, ErrUnknownKey)
}

func TestLoadFileUnknownWeightKeyFails(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `{"weights": {"read": 1, "reticulate_splines": 1}}`)

	_, err := LoadFile(Default(), path)
	require.ErrorIs(t, err, ErrUnknownKey)
}

func TestLoadFileMissingFileFails(t *testing.T) {
	t.Parallel()

	_, err := LoadFile(Default(), filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.ErrorIs(t, err, ErrConfigFileRead)
}

func TestValidateRejectsNonPowerOfTwoAlign(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.OpSize.Align = 3

	require.ErrorIs(t, cfg.Validate(), ErrConfigInvalid)
}

func TestValidateAcceptsAlignOne(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.OpSize.Align = 1

	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsInvertedOpSizeRange(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.OpSize.Min = 100
	cfg.OpSize.Max = 10

	require.ErrorIs(t, cfg.Validate(), ErrConfigInvalid)
}

func TestValidateRejectsInvertedMonitorRange(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.MonitorSet = true
	cfg.MonitorFrom = 200
	cfg.MonitorTo = 100

	require.ErrorIs(t, cfg.Validate(), ErrConfigInvalid)
}
