package flow

import (
	"os"
	"path/filepath"
	"strings"
)

// MountPoint maps a local filesystem root onto a remote object storage root.
// Scripts read and write under Local when run directly; the compiled
// workflow reads and writes under Remote. A mount point is immutable after
// declaration.
type MountPoint struct {
	Name   string
	Local  string
	Remote string
}

// NewMountPoint declares a mount point. All arguments must be string
// literals in a workflow script; the compiler rejects anything it cannot
// resolve to a constant. A leading ~ in local is expanded to the user's home
// directory for local runs.
func NewMountPoint(name, local, remote string) MountPoint {
	return MountPoint{Name: name, Local: expandHome(local), Remote: remote}
}

// NewParam declares a workflow parameter and returns its effective value for
// this run. The default can be overridden without editing the script by
// setting ARGOT_PARAM_<NAME> (name upper-cased, hyphens replaced with
// underscores), mirroring the orchestrator's invocation-time arguments.
func NewParam(name, defaultValue string) string {
	env := "ARGOT_PARAM_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	if v, ok := os.LookupEnv(env); ok {
		return v
	}
	return defaultValue
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
