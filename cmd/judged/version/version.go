// Package version provides the build version of the judged binary.
package version

import "runtime/debug"

// Version of the current build, populated from module build info.
var Version string = "unable to get version"

func init() {
	inf, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	Version = inf.Main.Version
}
