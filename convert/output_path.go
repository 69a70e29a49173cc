package convert

import (
	"path/filepath"

	"pxtorem/config"
	"pxtorem/state"
)

// buildOutputPath returns output file path for "src" (path relative to the
// original source including file name). Source directory structure is kept
// under "dst" unless NoDirs is requested.
func buildOutputPath(src, dst string, env *state.LocalEnv) string {
	return filepath.Join(determineOutputDir(src, dst, env), config.CleanFileName(filepath.Base(src)))
}

func determineOutputDir(src, dst string, env *state.LocalEnv) string {
	if env.NoDirs {
		return dst
	}
	return filepath.Join(dst, filepath.Dir(src))
}
