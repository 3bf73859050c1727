package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitializeDisabled(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, Options{Debug: false, Level: "info"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	// No log directory is created in production mode.
	if _, err := os.Stat(filepath.Join(dir, ".infomap", "logs")); !os.IsNotExist(err) {
		t.Errorf("expected no logs directory, got err=%v", err)
	}

	// Logging must be a safe no-op.
	Get(CategoryCache).Info("dropped")
}

func TestInitializeDebugWritesFiles(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, Options{Debug: true, Level: "debug"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	Cache("hit for %s", "abc")
	Executor("ran transformation")

	entries, err := os.ReadDir(filepath.Join(dir, ".infomap", "logs"))
	if err != nil {
		t.Fatalf("reading logs dir: %v", err)
	}
	if len(entries) == 0 {
		t.Error("expected log files to be written in debug mode")
	}
}

func TestCategoryFilter(t *testing.T) {
	dir := t.TempDir()
	err := Initialize(dir, Options{
		Debug:      true,
		Level:      "debug",
		Categories: map[string]bool{"cache": false},
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	if IsCategoryEnabled(CategoryCache) {
		t.Error("cache category should be disabled")
	}
	if !IsCategoryEnabled(CategoryExecutor) {
		t.Error("executor category should default to enabled")
	}
}
