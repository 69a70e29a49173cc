//go:build !windows

package config

import (
	"os"

	"golang.org/x/term"
)

// characters CleanFileName drops from output names
const forbiddenNameChars = "/:"

// EnableColorOutput reports whether console log written to stream may use
// ANSI colors, which is the case for any terminal here.
func EnableColorOutput(stream *os.File) bool {
	return term.IsTerminal(int(stream.Fd()))
}
