package version

import "runtime"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func String() string {
	return "imgworker " + Version + " (commit=" + Commit + ", date=" + Date + ", go=" + runtime.Version() + ")"
}

// Runtime is the interpreter-style version line reported to hosts.
func Runtime() string {
	return runtime.Version() + " (" + runtime.GOOS + "/" + runtime.GOARCH + ", imgworker " + Version + ")"
}
