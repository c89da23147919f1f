package fsxlog

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestVerbosityAdjustGatesTrace(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := New(&buf, 0, true)
	logger.Log(context.Background(), LevelTrace, "should be suppressed")

	if buf.Len() != 0 {
		t.Fatalf("buf = %q, want empty at default verbosity", buf.String())
	}

	logger = New(&buf, 2, true)
	logger.Log(context.Background(), LevelTrace, "should be visible")

	if !strings.Contains(buf.String(), "should be visible") {
		t.Fatalf("buf = %q, want trace message present", buf.String())
	}
}

func TestQuietSuppressesWarning(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	// Each -q raises the threshold one level: -q -q moves it from Info to Error.
	logger := New(&buf, -2, true)
	logger.Warn("quieted")

	if buf.Len() != 0 {
		t.Fatalf("buf = %q, want empty with -q -q applied to a warning", buf.String())
	}

	logger.Error("still shown")

	if !strings.Contains(buf.String(), "still shown") {
		t.Fatalf("buf = %q, want error message present", buf.String())
	}
}

func TestNoColorOmitsEscapeCodes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := New(&buf, 0, true)
	logger.Info("plain")

	if strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("buf = %q, want no ANSI escapes with noColor", buf.String())
	}
}

func TestNoColorFromEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{"NO_COLOR": "1"}

	if !NoColorFromEnv(func(k string) string { return env[k] }) {
		t.Fatal("NoColorFromEnv = false, want true when NO_COLOR is set")
	}

	if NoColorFromEnv(func(k string) string { return "" }) {
		t.Fatal("NoColorFromEnv = true, want false when NO_COLOR is unset")
	}
}

func TestOpLogsStandardColumns(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := New(&buf, 0, true)
	Op(logger, LevelInfo, 42, "write", 100, 16)

	out := buf.String()
	for _, want := range []string{"step=42", "off=100", "len=16", "write"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q missing %q", out, want)
		}
	}
}
