package archive

import (
	"fmt"
	"io"
	"os"
	"strings"

	fixzip "github.com/hidez8891/zip"
)

// RewriteFunc receives content of selected entry and returns new content.
// When changed is false entry is copied as is.
type RewriteFunc func(name string, data []byte) (out []byte, changed bool, err error)

// Rewrite copies archive src to dst, passing entries selected by filter
// through fn. Entries which are not selected or not changed are copied raw
// without recompression, so entry order and storage method (important for
// epub "mimetype") are kept. Returns number of rewritten entries. On error
// dst is removed.
func Rewrite(src, dst string, filter Filter, fn RewriteFunc) (rewritten int, err error) {

	r, err := fixzip.OpenReader(src)
	if err != nil {
		return 0, fmt.Errorf("unable to read archive file (%s): %w", src, err)
	}
	defer r.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("unable to create target file (%s): %w", dst, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("unable to close target file (%s): %w", dst, cerr)
		}
		if err != nil {
			os.Remove(dst)
			rewritten = 0
		}
	}()

	w := fixzip.NewWriter(out)
	for _, file := range r.File {
		name := file.Name
		if !isSafePath(name) {
			return 0, fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}

		if !strings.HasSuffix(name, "/") && (filter == nil || filter(name)) {
			data, err := readEntry(file)
			if err != nil {
				return 0, fmt.Errorf("unable to read archive entry (%s): %w", name, err)
			}
			res, changed, err := fn(name, data)
			if err != nil {
				return 0, err
			}
			if changed {
				fw, err := w.CreateHeader(&fixzip.FileHeader{
					Name:     name,
					Method:   fixzip.Deflate,
					Modified: file.Modified,
				})
				if err != nil {
					return 0, fmt.Errorf("unable to write target file (%s): %w", dst, err)
				}
				if _, err := fw.Write(res); err != nil {
					return 0, fmt.Errorf("unable to write target file (%s): %w", dst, err)
				}
				rewritten++
				continue
			}
		}

		// unset data descriptor flag and copy entry as is
		file.Flags &= ^fixzip.FlagDataDescriptor
		if err := w.CopyFile(file); err != nil {
			return 0, fmt.Errorf("unable to write target file (%s): %w", dst, err)
		}
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("unable to finalize target file (%s): %w", dst, err)
	}
	return rewritten, nil
}

func readEntry(file *fixzip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
