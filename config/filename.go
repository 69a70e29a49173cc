package config

import (
	"strings"
)

const badFileName = "_bad_file_name_"

// CleanFileName removes characters not allowed in file names on the current
// platform and leading dots, so output never becomes hidden.
func CleanFileName(in string) string {
	out := strings.TrimLeft(strings.Map(func(sym rune) rune {
		if sym == 0 || strings.ContainsRune(forbiddenNameChars, sym) {
			return -1
		}
		return sym
	}, in), ".")
	if len(out) == 0 {
		out = badFileName
	}
	return out
}
