package flow

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Artifact is a handle to a file or directory slot on a step's inputs or
// outputs. Input artifacts are read-only.
type Artifact struct {
	slot     string
	dir      string // directory holding the artifact content
	file     string // fixed file name, empty for directory artifacts
	readonly bool
}

// tmpRoot returns the per-day scratch directory used by OutTmp artifacts,
// the local analogue of the orchestrator's default transfer bucket.
func tmpRoot() string {
	return filepath.Join(os.TempDir(), "argot", time.Now().Format("2006-01-02"))
}

// Open opens the artifact for reading. With no argument it opens the
// artifact's fixed file (mount-point file inputs); with one argument it
// opens the named file inside the artifact directory (outputs passed along
// from an earlier step).
func (a Artifact) Open(name ...string) (*os.File, error) {
	switch {
	case len(name) == 0 && a.file != "":
		return os.Open(filepath.Join(a.dir, a.file))
	case len(name) == 1:
		return os.Open(filepath.Join(a.dir, name[0]))
	case len(name) == 0:
		return nil, fmt.Errorf("flow: artifact %q has no fixed file name, pass one to Open", a.slot)
	default:
		return nil, fmt.Errorf("flow: Open takes at most one file name")
	}
}

// Create creates the named file inside the artifact directory. It fails on
// input artifacts: writing through an input slot is a contract violation.
func (a Artifact) Create(name string) (*os.File, error) {
	if a.readonly {
		return nil, fmt.Errorf("flow: artifact %q is an input slot and cannot be written", a.slot)
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return nil, err
	}
	return os.Create(filepath.Join(a.dir, name))
}

// Path returns the local path of the artifact: its fixed file when one was
// declared, otherwise its directory.
func (a Artifact) Path() string {
	if a.file != "" {
		return filepath.Join(a.dir, a.file)
	}
	return a.dir
}
