package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/threadctl/internal/testutil/testlog"
)

func TestLoadDefaultsAndOverrides(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()

	path := filepath.Join(dir, "threadctl.toml")
	content := `
main_thread_class = "System.Threading.MainThread"
log_level = "debug"
log_nocolor = true
	`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.MainThreadClass != "System.Threading.MainThread" {
		t.Fatalf("unexpected main thread class: %q", cfg.MainThreadClass)
	}
	if !cfg.CleanupWarnings {
		t.Fatalf("cleanup_warnings should keep its default when omitted")
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("unexpected log level: %q", cfg.Log.Level)
	}
	if !cfg.Log.Timestamp {
		t.Fatalf("log_timestamp should keep its default when omitted")
	}
	if !cfg.Log.NoColor {
		t.Fatalf("expected log_nocolor override")
	}
}

func TestLoadRejectsEmptyMainThreadClass(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()

	path := filepath.Join(dir, "threadctl.toml")
	if err := os.WriteFile(path, []byte("main_thread_class = \"\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for empty main_thread_class")
	}
}

func TestLoadMissingFile(t *testing.T) {
	testlog.Start(t)
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
