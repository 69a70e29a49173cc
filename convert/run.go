package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/maruel/natural"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"pxtorem/archive"
	"pxtorem/css"
	"pxtorem/state"
	"pxtorem/transform"
)

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("convert")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	src, err = filepath.Abs(src)
	if err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	env.NoDirs, env.Overwrite, env.DryRun = cmd.Bool("nodirs"), cmd.Bool("overwrite"), cmd.Bool("dry-run")

	env.Style = env.Cfg.Conversion.OutputStyle
	if cmd.IsSet("style") {
		if env.Style, err = css.ParseStyle(cmd.String("style")); err != nil {
			log.Warn("Unknown output style requested, using configured one", zap.Error(err))
			env.Style = env.Cfg.Conversion.OutputStyle
		}
	}

	if err := env.PrepareTransformer(cmd.String("options")); err != nil {
		return err
	}

	// Since zip "standard" does not define file name encoding we may need to
	// force archaic code page for old archives
	cp := cmd.String("force-zip-cp")
	if len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil || env.CodePage == nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully converting all non UTF-8 file names in archives", zap.String("charset", n))
		}
	}

	totals := &tally{}
	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst),
		zap.Stringer("style", env.Style), zap.Bool("dry-run", env.DryRun))
	defer func(start time.Time) {
		totals.report(log, time.Since(start))
		env.Rpt.StoreData("stats.txt", []byte(totals.String()))
	}(time.Now())

	return process(ctx, src, dst, totals, log)
}

// process determines the input type (directory, archive, or single file) and
// processes accordingly. Source path may continue inside archive:
// "styles.zip/css/site.css".
func process(ctx context.Context, src, dst string, totals *tally, log *zap.Logger) error {
	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				// directory cannot have tail - it would be simple file
				return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if err := processDir(ctx, head, dst, totals, log); err != nil {
				return fmt.Errorf("unable to process directory: %w", err)
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		isArchive, err := isArchiveFile(head)
		if err != nil {
			// checking format - but cannot open target file
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		if isArchive {
			// we need to look inside to see if path makes sense
			tail = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			if err := processArchive(ctx, head, filepath.ToSlash(tail), "", dst, totals, log); err != nil {
				return fmt.Errorf("unable to process archive: %w", err)
			}
			break
		}

		stylesheet, err := isStylesheetFile(head)
		if err != nil {
			return fmt.Errorf("unable to check file type: %w", err)
		}
		if stylesheet && len(tail) == 0 {
			if err := processFile(ctx, head, filepath.Base(head), dst, totals, log); err != nil {
				log.Error("Unable to process file", zap.String("file", head), zap.Error(err))
			}
			break
		}
		return fmt.Errorf("input was not recognized as CSS stylesheet or archive (%s)", head)
	}
	if len(head) == 0 {
		return fmt.Errorf("input source was not found (%s)", src)
	}
	return nil
}

// processDir finds stylesheets and archives under directory tree and
// processes them in natural order of their paths.
func processDir(ctx context.Context, dir, dst string, totals *tally, log *zap.Logger) error {
	var paths []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if info.Mode().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Sort(natural.StringSlice(paths))

	count := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))

		isArchive, err := isArchiveFile(path)
		if err != nil {
			// checking format - but cannot open target file
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			continue
		}
		if isArchive {
			count++
			if err := processArchive(ctx, path, "", filepath.Dir(rel), dst, totals, log); err != nil {
				log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
			}
			continue
		}

		stylesheet, err := isStylesheetFile(path)
		if err != nil {
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			continue
		}
		if !stylesheet {
			log.Debug("Skipping file, not recognized as stylesheet or archive", zap.String("file", path))
			continue
		}

		count++
		if err := processFile(ctx, path, rel, dst, totals, log); err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
		}
	}
	if count == 0 {
		log.Debug("Nothing to process", zap.String("dir", dir))
	}
	return nil
}

// processFile converts single stylesheet. "src" is path relative to the
// original source (just base name when file was specified directly) and
// defines output location under "dst".
func processFile(ctx context.Context, path, src, dst string, totals *tally, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := env.Rpt.StoreCopy("source/"+filepath.ToSlash(src), path); err != nil {
		log.Warn("Unable to store source for debug report", zap.String("file", path), zap.Error(err))
	}

	out, err := processStylesheet(ctx, data, path, totals, log)
	if err != nil {
		return err
	}
	if env.DryRun {
		return nil
	}

	outputName := buildOutputPath(src, dst, env)
	if err := prepareOutput(outputName, env.Overwrite, log); err != nil {
		return err
	}
	if err := os.WriteFile(outputName, out, 0644); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}
	env.Rpt.Store("result/"+filepath.ToSlash(src), outputName)
	return nil
}

// processArchive converts stylesheets inside archive under "pathIn". Archive
// is written to destination as a whole, entries other than converted
// stylesheets are copied as is.
func processArchive(ctx context.Context, path, pathIn, pathOut, dst string, totals *tally, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)
	filter := archive.Under(pathIn, ".css")

	// stylesheet identifiers, entry names decoded if necessary
	ids := make(map[string]string)
	err := archive.Walk(path, filter, func(arc string, f *zip.File) error {
		ids[f.FileHeader.Name] = filepath.Join(arc, entryName(f, env, log))
		return nil
	})
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		log.Debug("Nothing to process", zap.String("archive", path), zap.String("path", pathIn))
		return nil
	}

	convert := func(name string, data []byte) ([]byte, bool, error) {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		out, err := processStylesheet(ctx, data, ids[name], totals, log)
		if err != nil {
			// keep entry intact, do not stop on a single bad stylesheet
			log.Error("Unable to process file in archive",
				zap.String("archive", path), zap.String("file", name), zap.Error(err))
			return nil, false, nil
		}
		return out, !bytes.Equal(out, data), nil
	}

	if env.DryRun {
		return archive.Walk(path, filter, func(_ string, f *zip.File) error {
			data, err := readZipEntry(f)
			if err != nil {
				log.Error("Unable to read file in archive", zap.String("archive", path), zap.String("file", f.Name), zap.Error(err))
				return nil
			}
			_, _, err = convert(f.Name, data)
			return err
		})
	}

	src := filepath.Join(pathOut, filepath.Base(path))
	if err := env.Rpt.StoreCopy("source/"+filepath.ToSlash(src), path); err != nil {
		log.Warn("Unable to store source for debug report", zap.String("file", path), zap.Error(err))
	}

	outputName := buildOutputPath(src, dst, env)
	if err := prepareOutput(outputName, env.Overwrite, log); err != nil {
		return err
	}

	// output may be the source itself, write next to it and rename
	tmp, err := os.CreateTemp(filepath.Dir(outputName), filepath.Base(outputName)+".*.tmp")
	if err != nil {
		return fmt.Errorf("unable to create output: %w", err)
	}
	tmp.Close()

	n, err := archive.Rewrite(path, tmp.Name(), filter, convert)
	if err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), outputName); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("unable to write output: %w", err)
	}
	log.Debug("Archive written", zap.String("to", outputName), zap.Int("rewritten", n), zap.Int("stylesheets", len(ids)))
	env.Rpt.Store("result/"+filepath.ToSlash(src), outputName)
	return nil
}

// entryName returns archive entry name, forcing requested code page for
// names which are not marked as UTF-8.
func entryName(f *zip.File, env *state.LocalEnv, log *zap.Logger) string {
	name := f.FileHeader.Name
	if env.CodePage == nil || !f.FileHeader.NonUTF8 {
		return name
	}
	n, err := env.CodePage.NewDecoder().String(name)
	if err != nil {
		cs, _ := ianaindex.IANA.Name(env.CodePage)
		log.Warn("Unable to convert archive name from specified encoding",
			zap.String("charset", cs), zap.String("path", name), zap.Error(err))
		return name
	}
	return n
}

func readZipEntry(f *zip.File) ([]byte, error) {
	r, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// processStylesheet converts stylesheet text. "id" is what exclusion and root
// value functions see. Unchanged stylesheets are returned as is, changed ones
// are serialized as UTF-8 in requested style.
func processStylesheet(ctx context.Context, data []byte, id string, totals *tally, log *zap.Logger) (out []byte, rerr error) {
	env := state.EnvFromContext(ctx)

	var stats transform.Stats

	log.Debug("Conversion starting", zap.String("from", id))
	defer func(start time.Time) {
		if r := recover(); r != nil {
			log.Error("Conversion ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("from", id), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("conversion panic: %v", r)
		}
		totals.add(stats, rerr)
		if rerr == nil {
			log.Info("Conversion completed", zap.String("from", id), zap.Duration("elapsed", time.Since(start)),
				zap.Bool("excluded", stats.Excluded), zap.Int("converted", stats.Converted), zap.Int("inserted", stats.Inserted),
				zap.Int("media", stats.MediaQueries))
		}
	}(time.Now())

	text, enc, err := toUTF8(data)
	if err != nil {
		return nil, err
	}
	if enc != encUnknown {
		log.Debug("Stylesheet byte order mark detected", zap.String("from", id), zap.Stringer("encoding", enc))
	}

	sheet, st, err := env.Transformer.ProcessCSS(text, id)
	stats = st
	if err != nil {
		return nil, fmt.Errorf("unable to convert stylesheet (%s): %w", id, err)
	}
	if env.Rpt != nil {
		env.Rpt.StoreData("parsed/"+filepath.Base(id)+".txt", []byte(sheet.Dump()))
	}
	if !stats.Changed() {
		return data, nil
	}
	if sheet.Incomplete {
		return nil, fmt.Errorf("unable to write stylesheet (%s) back: %w: %s", id, css.ErrIncomplete, strings.Join(sheet.Warnings, "; "))
	}

	buf := new(bytes.Buffer)
	if _, err := sheet.Write(buf, env.Style); err != nil {
		return nil, fmt.Errorf("unable to serialize stylesheet (%s): %w", id, err)
	}
	return buf.Bytes(), nil
}

// prepareOutput makes sure output file can be written.
func prepareOutput(outputName string, overwrite bool, log *zap.Logger) error {
	if _, err := os.Stat(outputName); err == nil {
		if !overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		log.Warn("Overwriting existing file", zap.String("file", outputName))
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	return nil
}
