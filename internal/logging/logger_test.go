package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewLogger_WritesToLogDir(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	l.Info("test_event")
	_ = l.Sync()

	b, err := os.ReadFile(filepath.Join(dir, "netprobe.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(b) == 0 {
		t.Fatalf("expected log output, file is empty")
	}
}

func TestLevelFromEnv_FallsBackToInfo(t *testing.T) {
	t.Setenv("LOG_LEVEL", "bogus")
	if lvl := levelFromEnv(); lvl.String() != "info" {
		t.Fatalf("want info fallback, got %s", lvl)
	}
	t.Setenv("LOG_LEVEL", "debug")
	if lvl := levelFromEnv(); lvl.String() != "debug" {
		t.Fatalf("want debug, got %s", lvl)
	}
}
