package main

import (
	"runtime/debug"

	"github.com/mwhite/fleetsync/cmd"
)

// Version is stamped by release builds via -ldflags "-X main.Version=...".
var Version = "dev"

// resolveVersion falls back to Go build info when no version was stamped:
// the module version for go-installed binaries, or the vcs revision for
// plain source builds.
func resolveVersion() string {
	if Version != "" && Version != "dev" {
		return Version
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Version
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}

	rev, dirty := "", false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if rev == "" {
		return Version
	}
	if len(rev) > 10 {
		rev = rev[:10]
	}
	if dirty {
		return "devel+" + rev + "+dirty"
	}
	return "devel+" + rev
}

func main() {
	cmd.SetVersion(resolveVersion())
	cmd.Execute()
}
