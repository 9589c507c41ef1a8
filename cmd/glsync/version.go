package main

import "runtime/debug"

// version is set via ldflags: -X main.version=x.y.z
var version string

// Version is the ldflags version, else the module version, else the short vcs
// revision of a local build.
var Version = buildVersion()

func buildVersion() string {
	if version != "" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 12 {
			return "dev-" + s.Value[:12]
		}
	}
	return "dev"
}
