// Package version holds build metadata injected with -ldflags.
package version

import "runtime/debug"

// Build metadata, overridden at link time:
//
//	-X github.com/Sumatoshi-tech/llvmlines/pkg/version.Version=v0.4.0
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func init() {
	if Version != "dev" {
		return
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if v := info.Main.Version; v != "" && v != "(devel)" {
		Version = v
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			Commit = setting.Value
		case "vcs.time":
			Date = setting.Value
		}
	}
}

// String formats the metadata for `version` output.
func String() string {
	return Version + " (commit: " + Commit + ", built: " + Date + ")"
}
