// Package dumper writes the post-mortem artifacts fsx leaves behind when
// the shadow model and the real file disagree: a ".fsxgood" file holding
// the shadow's expected bytes and a ".fsxbad" file holding what the real
// file actually contained, both written atomically so a dump that itself
// fails partway never leaves a half-written artifact next to a genuine
// bug report (spec.md §4.6).
package dumper

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// ErrDump marks a failure while writing a mismatch artifact.
var ErrDump = errors.New("dumper")

// Result names the artifact paths written by Dump.
type Result struct {
	GoodPath string
	BadPath  string
}

// Dump writes good (the shadow's expected bytes) to "<base>.fsxgood" and
// bad (the real file's actual bytes) to "<base>.fsxbad" under dir, using
// the base name of filePath (which may be the absolute or relative path
// the target file was opened with). Both writes go through
// atomic.WriteFile, so a dump is all-or-nothing per file even if fsx is
// killed mid-write.
func Dump(dir, filePath string, good, bad []byte) (Result, error) {
	base := filepath.Base(filePath)
	goodPath := filepath.Join(dir, base+".fsxgood")
	badPath := filepath.Join(dir, base+".fsxbad")

	if err := atomic.WriteFile(goodPath, bytesReader(good)); err != nil {
		return Result{}, fmt.Errorf("%w: writing %s: %w", ErrDump, goodPath, err)
	}

	if err := atomic.WriteFile(badPath, bytesReader(bad)); err != nil {
		return Result{}, fmt.Errorf("%w: writing %s: %w", ErrDump, badPath, err)
	}

	return Result{GoodPath: goodPath, BadPath: badPath}, nil
}

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }
