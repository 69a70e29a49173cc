// Package archive walks and rewrites stylesheets stored in zip based
// containers (zip, epub).
package archive

import (
	"archive/zip"
	"fmt"
	"path"
	"strings"
)

// WalkFunc is the type of the function called for each file in archive
// visited by Walk. The archive argument contains path to archive passed to Walk
// The file argument is the zip.File structure for file in archive which satisfies
// filter. If an error is returned, processing stops.
type WalkFunc func(archive string, file *zip.File) error

// Filter selects archive entries by name.
type Filter func(name string) bool

// Under selects entries with names starting with prefix and, when any
// extensions are given, having one of them (case insensitive).
func Under(prefix string, exts ...string) Filter {
	return func(name string) bool {
		if !strings.HasPrefix(name, prefix) {
			return false
		}
		if len(exts) == 0 {
			return true
		}
		ext := path.Ext(name)
		for _, e := range exts {
			if strings.EqualFold(ext, e) {
				return true
			}
		}
		return false
	}
}

// Walk walks the all files in the archive which satisfy filter, calling
// walkFn for each item in archive order. Nil filter selects everything.
// Archives with path traversal components ("..") or absolute paths in entry
// names are rejected.
func Walk(archive string, filter Filter, walkFn WalkFunc) error {

	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		name := f.FileHeader.Name
		if !isSafePath(name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if f.FileInfo().IsDir() || (filter != nil && !filter(name)) {
			continue
		}
		if err := walkFn(archive, f); err != nil {
			return err
		}
	}
	return nil
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return false
	}
	for part := range strings.SplitSeq(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
