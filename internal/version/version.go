// Package version reports build metadata stamped via -ldflags.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String is the human-readable build line printed by `signflow version`.
func String() string {
	return fmt.Sprintf("signflow %s (commit=%s, date=%s, go=%s)", resolved(), Commit, Date, runtime.Version())
}

// UserAgent identifies signflow to remote services.
func UserAgent() string {
	return "signflow/" + resolved()
}

// resolved falls back to the module version when no -ldflags stamp was applied,
// which is the case for `go install` builds.
func resolved() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}
