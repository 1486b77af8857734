package corosched

import (
	"os"
	"strings"
	"testing"

	"github.com/joeycumines/logiface"
)

func TestNewLogger_WritesNDJSON(t *testing.T) {
	f, err := os.CreateTemp("", "corosched-log-*.ndjson")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())

	logger := NewLogger(f, logiface.LevelWarning)
	logWorkerPanic(logger, "boom")
	logOverload(logger, "main", 4096)
	f.Close()

	content, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	out := string(content)

	if !strings.Contains(out, "worker task panicked") {
		t.Errorf("missing panic message in output: %q", out)
	}
	if !strings.Contains(out, "ring at capacity") {
		t.Errorf("missing overload message in output: %q", out)
	}
}

func TestNewLogger_FiltersBelowLevel(t *testing.T) {
	f, err := os.CreateTemp("", "corosched-log-*.ndjson")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())

	// Only errors and above should be written.
	logger := NewLogger(f, logiface.LevelError)
	logOverload(logger, "timed", 128) // warning level, filtered out
	f.Close()

	content, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	if len(content) != 0 {
		t.Errorf("expected no output below the configured level, got %q", content)
	}
}

func TestNopLogger_NeverPanics(t *testing.T) {
	logger := newNopLogger()
	logWorkerPanic(logger, "boom")
	logOverload(logger, "main", 1)
}
