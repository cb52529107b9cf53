// Package testutil provides shared helpers for tests, most notably temp
// directories grouped under a single per-run parent so leftover state from a
// failed run is easy to find and clean up.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

var (
	runDirOnce sync.Once
	runDir     string
)

// GetTestRunDir returns the shared directory for this test run, creating it
// on first use. Every call in one process returns the same directory.
func GetTestRunDir() string {
	runDirOnce.Do(func() {
		base := filepath.Join(os.TempDir(), "argot-test-runs")
		runDir = filepath.Join(base, fmt.Sprintf("run-%d-%d", os.Getpid(), time.Now().UnixNano()))
		if err := os.MkdirAll(runDir, 0o755); err != nil {
			panic(fmt.Sprintf("testutil: cannot create test run dir: %v", err))
		}
	})
	return runDir
}

// TempDir creates a temp directory under the test run directory using the
// given pattern and registers cleanup on test end.
func TempDir(t *testing.T, pattern string) string {
	t.Helper()

	dir, err := os.MkdirTemp(GetTestRunDir(), pattern)
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}
