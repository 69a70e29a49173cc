package convert

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/text/encoding/ianaindex"

	"pxtorem/config"
	"pxtorem/css"
	"pxtorem/state"
	"pxtorem/transform"
)

// setupTestEnv creates a test environment with proper context, logger and
// transformer prepared from default configuration adjusted by mutate.
func setupTestEnv(t *testing.T, mutate func(*config.Config)) (context.Context, *state.LocalEnv) {
	t.Helper()
	logger := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Conversion.PropList = []string{"*"}
	if mutate != nil {
		mutate(cfg)
	}
	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	env.Log = logger
	env.Cfg = cfg
	env.Style = css.Compact
	if err := env.PrepareTransformer(""); err != nil {
		t.Fatalf("prepare transformer: %v", err)
	}
	return ctx, env
}

func readText(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func readZipEntries(t *testing.T, path string) ([]string, map[string]string) {
	t.Helper()
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open zip %s: %v", path, err)
	}
	defer r.Close()

	var names []string
	contents := make(map[string]string)
	for _, f := range r.File {
		names = append(names, f.Name)
		data, err := readZipEntry(f)
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		contents[f.Name] = string(data)
	}
	return names, contents
}

func TestProcess_NonExistentPath(t *testing.T) {
	ctx, env := setupTestEnv(t, nil)

	err := process(ctx, "/nonexistent/path/file.css", t.TempDir(), &tally{}, env.Log)
	if err == nil {
		t.Fatal("Expected error for non-existent path, got nil")
	}
	if !strings.Contains(err.Error(), "input source was not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestProcess_CancelledContext(t *testing.T) {
	ctx, env := setupTestEnv(t, nil)
	cancelCtx, cancel := context.WithCancel(ctx)
	cancel()

	tmpDir := t.TempDir()
	if err := process(cancelCtx, tmpDir, tmpDir, &tally{}, env.Log); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled error, got %v", err)
	}
}

func TestProcess_SingleFile(t *testing.T) {
	ctx, env := setupTestEnv(t, nil)
	srcDir, dstDir := t.TempDir(), t.TempDir()
	src := writeFile(t, srcDir, "site.css", []byte(`p { font-size: 32px; border: 1px solid "16px"; }`))

	totals := &tally{}
	if err := process(ctx, src, dstDir, totals, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}

	got := readText(t, filepath.Join(dstDir, "site.css"))
	want := `p { font-size: 2rem; border: 0.0625rem solid "16px"; }`
	if strings.TrimSpace(got) != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if totals.files != 1 || totals.changed != 1 || totals.total.Converted != 2 {
		t.Errorf("totals = %+v", totals)
	}
}

func TestProcess_UnchangedIsCopied(t *testing.T) {
	ctx, env := setupTestEnv(t, nil)
	srcDir, dstDir := t.TempDir(), t.TempDir()
	text := "p   {  color : red }\n"
	src := writeFile(t, srcDir, "plain.css", []byte(text))

	if err := process(ctx, src, dstDir, &tally{}, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if got := readText(t, filepath.Join(dstDir, "plain.css")); got != text {
		t.Errorf("unchanged stylesheet must be copied verbatim, got %q", got)
	}
}

func TestProcess_NotStylesheet(t *testing.T) {
	ctx, env := setupTestEnv(t, nil)
	src := writeFile(t, t.TempDir(), "notes.txt", []byte("16px"))

	err := process(ctx, src, t.TempDir(), &tally{}, env.Log)
	if err == nil || !strings.Contains(err.Error(), "not recognized") {
		t.Errorf("Expected recognition error, got %v", err)
	}
}

func TestProcess_DirectoryWithTail(t *testing.T) {
	ctx, env := setupTestEnv(t, nil)
	srcDir := t.TempDir()
	if err := os.Mkdir(filepath.Join(srcDir, "css"), 0755); err != nil {
		t.Fatal(err)
	}

	err := process(ctx, filepath.Join(srcDir, "css", "missing.css"), t.TempDir(), &tally{}, env.Log)
	if err == nil {
		t.Error("Expected error for directory with tail")
	}
}

func TestProcess_Directory(t *testing.T) {
	for _, noDirs := range []bool{false, true} {
		t.Run(map[bool]string{false: "keep dirs", true: "no dirs"}[noDirs], func(t *testing.T) {
			ctx, env := setupTestEnv(t, nil)
			env.NoDirs = noDirs
			srcDir, dstDir := t.TempDir(), t.TempDir()
			writeFile(t, srcDir, "a/b.css", []byte("a { margin: 8px; }"))
			writeFile(t, srcDir, "a/notes.txt", []byte("margin: 8px"))
			writeFile(t, srcDir, "z.css", []byte("z { padding: 4px; }"))

			totals := &tally{}
			if err := process(ctx, srcDir, dstDir, totals, env.Log); err != nil {
				t.Fatalf("process() error = %v", err)
			}

			nested := filepath.Join(dstDir, "a", "b.css")
			if noDirs {
				nested = filepath.Join(dstDir, "b.css")
			}
			if got := readText(t, nested); !strings.Contains(got, "margin: 0.5rem") {
				t.Errorf("b.css = %q", got)
			}
			if got := readText(t, filepath.Join(dstDir, "z.css")); !strings.Contains(got, "padding: 0.25rem") {
				t.Errorf("z.css = %q", got)
			}
			if _, err := os.Stat(filepath.Join(dstDir, "a", "notes.txt")); !os.IsNotExist(err) {
				t.Error("non stylesheet must not be written")
			}
			if totals.files != 2 {
				t.Errorf("files = %d, want 2", totals.files)
			}
		})
	}
}

func TestProcess_EmptyDirectory(t *testing.T) {
	ctx, env := setupTestEnv(t, nil)
	if err := process(ctx, t.TempDir(), t.TempDir(), &tally{}, env.Log); err != nil {
		t.Errorf("process() error = %v", err)
	}
}

func TestProcess_Archive(t *testing.T) {
	ctx, env := setupTestEnv(t, nil)
	srcDir, dstDir := t.TempDir(), t.TempDir()
	src := writeZip(t, filepath.Join(srcDir, "book.epub"),
		[2]string{"mimetype", "application/epub+zip"},
		[2]string{"OEBPS/style.css", "p { text-indent: 24px; }"},
		[2]string{"OEBPS/plain.css", "p { color: red; }"},
		[2]string{"OEBPS/index.xhtml", "<p style=\"margin: 16px\"/>"},
	)

	totals := &tally{}
	if err := process(ctx, src, dstDir, totals, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}

	names, contents := readZipEntries(t, filepath.Join(dstDir, "book.epub"))
	if len(names) != 4 || names[0] != "mimetype" {
		t.Fatalf("entries = %v", names)
	}
	if got := contents["OEBPS/style.css"]; !strings.Contains(got, "text-indent: 1.5rem") {
		t.Errorf("style.css = %q", got)
	}
	if got := contents["OEBPS/plain.css"]; got != "p { color: red; }" {
		t.Errorf("plain.css = %q", got)
	}
	if got := contents["OEBPS/index.xhtml"]; !strings.Contains(got, "16px") {
		t.Errorf("index.xhtml must not be touched, got %q", got)
	}
	if totals.files != 2 || totals.changed != 1 {
		t.Errorf("totals = %+v", totals)
	}
}

func TestProcess_ArchiveWithPath(t *testing.T) {
	ctx, env := setupTestEnv(t, nil)
	srcDir, dstDir := t.TempDir(), t.TempDir()
	arc := writeZip(t, filepath.Join(srcDir, "styles.zip"),
		[2]string{"css/site.css", "a { margin: 16px; }"},
		[2]string{"other/site.css", "a { margin: 16px; }"},
	)

	if err := process(ctx, filepath.Join(arc, "css"), dstDir, &tally{}, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}

	_, contents := readZipEntries(t, filepath.Join(dstDir, "styles.zip"))
	if got := contents["css/site.css"]; !strings.Contains(got, "margin: 1rem") {
		t.Errorf("css/site.css = %q", got)
	}
	if got := contents["other/site.css"]; got != "a { margin: 16px; }" {
		t.Errorf("other/site.css = %q, outside of requested path", got)
	}
}

func TestProcess_ArchiveInPlace(t *testing.T) {
	ctx, env := setupTestEnv(t, nil)
	env.Overwrite = true
	dir := t.TempDir()
	arc := writeZip(t, filepath.Join(dir, "styles.zip"), [2]string{"site.css", "a { margin: 16px; }"})

	if err := process(ctx, arc, dir, &tally{}, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	_, contents := readZipEntries(t, arc)
	if got := contents["site.css"]; !strings.Contains(got, "margin: 1rem") {
		t.Errorf("site.css = %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temporary files left: %v", matches)
	}
}

func TestProcess_Overwrite(t *testing.T) {
	ctx, env := setupTestEnv(t, nil)
	srcDir, dstDir := t.TempDir(), t.TempDir()
	src := writeFile(t, srcDir, "site.css", []byte("a { margin: 16px; }"))
	existing := writeFile(t, dstDir, "site.css", []byte("old"))

	// per file errors are logged, processing itself succeeds
	if err := process(ctx, src, dstDir, &tally{}, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if got := readText(t, existing); got != "old" {
		t.Errorf("existing file overwritten without permission: %q", got)
	}

	env.Overwrite = true
	if err := process(ctx, src, dstDir, &tally{}, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if got := readText(t, existing); !strings.Contains(got, "margin: 1rem") {
		t.Errorf("file was not overwritten: %q", got)
	}
}

func TestProcess_DryRun(t *testing.T) {
	ctx, env := setupTestEnv(t, nil)
	env.DryRun = true
	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFile(t, srcDir, "site.css", []byte("a { margin: 16px; }"))
	writeZip(t, filepath.Join(srcDir, "more.zip"), [2]string{"b.css", "b { margin: 8px; padding: 8px; }"})

	totals := &tally{}
	if err := process(ctx, srcDir, dstDir, totals, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	entries, err := os.ReadDir(dstDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("dry run must not write anything, found %d entries", len(entries))
	}
	if totals.files != 2 || totals.total.Converted != 3 {
		t.Errorf("totals = %+v", totals)
	}
}

func TestProcess_Exclude(t *testing.T) {
	ctx, env := setupTestEnv(t, func(cfg *config.Config) {
		cfg.Conversion.Exclude = &config.PatternConfig{Regexp: `vendor[/\\]`}
	})
	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFile(t, srcDir, "vendor/lib.css", []byte("a { margin: 16px; }"))
	writeFile(t, srcDir, "app.css", []byte("a { margin: 16px; }"))

	totals := &tally{}
	if err := process(ctx, srcDir, dstDir, totals, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if got := readText(t, filepath.Join(dstDir, "vendor", "lib.css")); got != "a { margin: 16px; }" {
		t.Errorf("excluded stylesheet changed: %q", got)
	}
	if got := readText(t, filepath.Join(dstDir, "app.css")); !strings.Contains(got, "1rem") {
		t.Errorf("app.css = %q", got)
	}
	if totals.excluded != 1 || totals.changed != 1 {
		t.Errorf("totals = %+v", totals)
	}
}

func TestProcessStylesheet_Errors(t *testing.T) {
	ctx, env := setupTestEnv(t, func(cfg *config.Config) {
		cfg.Conversion.SelectorBlackList = []config.PatternConfig{{Regexp: "(", Flags: ""}}
	})

	totals := &tally{}
	_, err := processStylesheet(ctx, []byte("a { margin: 16px; }"), "a.css", totals, env.Log)
	if !errors.Is(err, transform.ErrPattern) {
		t.Errorf("Expected pattern error, got %v", err)
	}
	if totals.failed != 1 {
		t.Errorf("failed = %d, want 1", totals.failed)
	}

	// bad stylesheet inside archive is kept as is
	srcDir, dstDir := t.TempDir(), t.TempDir()
	arc := writeZip(t, filepath.Join(srcDir, "s.zip"), [2]string{"a.css", "a { margin: 16px; }"})
	if err := process(ctx, arc, dstDir, &tally{}, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	_, contents := readZipEntries(t, filepath.Join(dstDir, "s.zip"))
	if got := contents["a.css"]; got != "a { margin: 16px; }" {
		t.Errorf("a.css = %q", got)
	}
}

func TestProcessStylesheet_Incomplete(t *testing.T) {
	ctx, env := setupTestEnv(t, nil)

	// tokenizer loses declarations placed directly into nested @media
	input := ".a { width: 16px; @media (min-width: 10px) { width: 16px; } }"
	totals := &tally{}
	_, err := processStylesheet(ctx, []byte(input), "a.css", totals, env.Log)
	if !errors.Is(err, css.ErrIncomplete) {
		t.Errorf("Expected incomplete error, got %v", err)
	}
	if totals.failed != 1 {
		t.Errorf("failed = %d, want 1", totals.failed)
	}

	srcDir, dstDir := t.TempDir(), t.TempDir()
	arc := writeZip(t, filepath.Join(srcDir, "s.zip"), [2]string{"a.css", input})
	if err := process(ctx, arc, dstDir, &tally{}, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	_, contents := readZipEntries(t, filepath.Join(dstDir, "s.zip"))
	if got := contents["a.css"]; got != input {
		t.Errorf("a.css = %q", got)
	}
}

func TestProcessStylesheet_NestedAndComments(t *testing.T) {
	ctx, env := setupTestEnv(t, nil)

	input := ".a { /* keep me */ width: 16px; .b { width: 32px; } }"
	out, err := processStylesheet(ctx, []byte(input), "a.css", &tally{}, env.Log)
	if err != nil {
		t.Fatalf("processStylesheet() error = %v", err)
	}
	if got, want := string(out), ".a { /* keep me */ width: 1rem; .b { width: 2rem; } }"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestProcessStylesheet_Encodings(t *testing.T) {
	ctx, env := setupTestEnv(t, nil)

	data := append([]byte{0xEF, 0xBB, 0xBF}, "a { margin: 16px; }"...)
	out, err := processStylesheet(ctx, data, "a.css", &tally{}, env.Log)
	if err != nil {
		t.Fatalf("processStylesheet() error = %v", err)
	}
	if got := string(out); strings.HasPrefix(got, "\xEF\xBB\xBF") || !strings.Contains(got, "margin: 1rem") {
		t.Errorf("output = %q", got)
	}
}

func TestProcessStylesheet_Panic(t *testing.T) {
	ctx, env := setupTestEnv(t, nil)
	env.Transformer = nil

	totals := &tally{}
	_, err := processStylesheet(ctx, []byte("a { margin: 16px; }"), "a.css", totals, env.Log)
	if err == nil || !strings.Contains(err.Error(), "panic") {
		t.Errorf("Expected panic to be converted to error, got %v", err)
	}
	if totals.failed != 1 {
		t.Errorf("failed = %d, want 1", totals.failed)
	}
}

func TestEntryName_CodePage(t *testing.T) {
	_, env := setupTestEnv(t, nil)

	cp, err := ianaindex.IANA.Encoding("IBM866")
	if err != nil || cp == nil {
		t.Fatalf("IBM866 encoding: %v", err)
	}
	raw, err := cp.NewEncoder().String("стили.css")
	if err != nil {
		t.Fatalf("encode name: %v", err)
	}

	path := filepath.Join(t.TempDir(), "cp.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(f)
	fw, err := w.CreateHeader(&zip.FileHeader{Name: raw, NonUTF8: true, Method: zip.Deflate})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(fw, "a{}"); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if got := entryName(r.File[0], env, env.Log); got != raw {
		t.Errorf("entryName() without code page = %q, want raw name", got)
	}
	env.CodePage = cp
	if got := entryName(r.File[0], env, env.Log); got != "стили.css" {
		t.Errorf("entryName() = %q, want %q", got, "стили.css")
	}
}

func TestTally(t *testing.T) {
	var tl tally
	tl.add(transform.Stats{Converted: 2, MediaQueries: 1}, nil)
	tl.add(transform.Stats{Excluded: true}, nil)
	tl.add(transform.Stats{}, errors.New("boom"))
	tl.add(transform.Stats{Duplicates: 1}, nil)

	if tl.files != 4 || tl.changed != 1 || tl.excluded != 1 || tl.failed != 1 {
		t.Errorf("tally = %+v", &tl)
	}
	s := tl.String()
	for _, want := range []string{"stylesheets: 4", "converted: 2", "media: 1", "duplicates: 1"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
	tl.report(zaptest.NewLogger(t), 0)
}
