//go:build windows

package config

import (
	"os"

	"golang.org/x/sys/windows"
	"golang.org/x/term"
)

// characters CleanFileName drops from output names
const forbiddenNameChars = `<>":/\|?*;`

// EnableColorOutput reports whether console log written to stream may use
// ANSI colors. On Windows 10 and later VT100 processing is switched on for
// the console first.
func EnableColorOutput(stream *os.File) bool {
	if v := windows.RtlGetVersion(); v == nil || v.MajorVersion < 10 {
		return false
	}
	if !term.IsTerminal(int(stream.Fd())) {
		return false
	}

	h := windows.Handle(stream.Fd())
	var mode uint32
	if err := windows.GetConsoleMode(h, &mode); err != nil {
		return false
	}
	return windows.SetConsoleMode(h, mode|windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING) == nil
}
