// Package buildinfo reports build-time version information for the CLI's
// --version output, replacing the teacher's use of
// github.com/perforce/p4prometheus/version (a Perforce-specific package
// with no bearing on this domain) with an equivalent local shape built on
// the stdlib runtime/debug build-info facility.
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

// Version, Revision and BuildDate are overridden at link time via
// -ldflags "-X github.com/paulyc/cvs2svn/internal/buildinfo.Version=...".
var (
	Version   = "dev"
	Revision  = "unknown"
	BuildDate = "unknown"
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if Revision == "unknown" {
				Revision = setting.Value
			}
		case "vcs.time":
			if BuildDate == "unknown" {
				BuildDate = setting.Value
			}
		}
	}
}

// Print mirrors the teacher's version.Print(app string) string shape:
// one line suitable for kingpin's .Version(...) and a startup log line.
func Print(app string) string {
	return fmt.Sprintf("%s version %s (revision %s, built %s)", app, Version, Revision, BuildDate)
}
