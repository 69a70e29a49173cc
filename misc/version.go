// Package misc keeps build time information.
package misc

import (
	"runtime/debug"
	"strings"
)

// Set with -ldflags "-X pxtorem/misc.version=... -X pxtorem/misc.gitHash=...".
var (
	appName = "pxtorem"
	version = "dev"
	gitHash = ""
)

// GetAppName returns program name used for logger naming and temporary files.
func GetAppName() string {
	return appName
}

// GetVersion returns program version.
func GetVersion() string {
	return version
}

// GetGitHash returns short revision program was built from, when known.
func GetGitHash() string {
	if len(gitHash) > 0 {
		return gitHash
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return shorten(s.Value)
			}
		}
	}
	return "unknown"
}

func shorten(rev string) string {
	rev = strings.TrimSpace(rev)
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}
