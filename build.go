package stitch

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dpotapov/go-stitch/binding"
	"github.com/natefinch/atomic"
	"github.com/spf13/afero"
)

// partialRe matches base names of partial templates: one or more underscores and a dot, e.g. "_.html".
var partialRe = regexp.MustCompile(`^_+\.`)

// build is the state of one compilation. It is created by Compile and handed to every pass.
type build struct {
	*Compiler

	template  string // absolute path of the entry template
	canonical string // template with symlinks resolved
	dir       string // directory of the template
	name      string // template base name without .html
	outDir    string // absolute output directory
	publicDir string // absolute public root

	// vars accumulates bindings over the whole compilation: external variables, copied
	// assets and every local seen so far.
	vars binding.Bindings

	pending    []outputFile
	written    []string
	conditions map[string]string
}

type outputFile struct {
	path string
	data []byte
}

func (c *Compiler) newBuild(path string) (*build, error) {
	template, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fi, err := c.fs.Stat(template)
	if err != nil {
		return nil, fmt.Errorf("template: %w", err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("template %s: %w", path, ErrNotFile)
	}

	base := filepath.Base(template)
	if isPartial(base) {
		return nil, fmt.Errorf("%s: %w", path, ErrPartialTemplate)
	}

	outDir, err := filepath.Abs(c.opts.OutDir)
	if err != nil {
		return nil, err
	}
	fi, err = c.fs.Stat(outDir)
	if err != nil {
		return nil, fmt.Errorf("output directory: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("output directory %s: %w", c.opts.OutDir, ErrNotDirectory)
	}

	publicDir, err := filepath.Abs(c.opts.PublicDir)
	if err != nil {
		return nil, err
	}

	b := &build{
		Compiler:  c,
		template:  template,
		dir:       filepath.Dir(template),
		name:      strings.TrimSuffix(base, ".html"),
		outDir:    outDir,
		publicDir: publicDir,
		vars:      c.extern.Clone(),
	}
	b.canonical = b.canonicalPath(template)

	if c.loadedAs(b.canonical) == loadedAsSnippet {
		return nil, fmt.Errorf("%s: %w", path, ErrAlreadyIncluded)
	}
	return b, nil
}

func isPartial(base string) bool {
	return partialRe.MatchString(base)
}

// outputPath returns <outDir>/<name>.<suffix>.
func (b *build) outputPath(suffix string) string {
	return filepath.Join(b.outDir, b.name+"."+suffix)
}

// publicURL returns the URL of the file at path as seen from the public root. Files outside
// of the public root keep their full path.
func (b *build) publicURL(path string) string {
	p, err := filepath.Abs(path)
	if err != nil {
		p = path
	}
	if rel, err := filepath.Rel(b.publicDir, p); err == nil && rel != ".." &&
		!strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		p = rel
	}
	p = filepath.ToSlash(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// canonicalPath returns an absolute, clean path. Symlinks are resolved on the OS file system.
func (b *build) canonicalPath(path string) string {
	p, err := filepath.Abs(path)
	if err != nil {
		p = filepath.Clean(path)
	}
	if _, ok := b.fs.(*afero.OsFs); ok {
		if resolved, err := filepath.EvalSymlinks(p); err == nil {
			return resolved
		}
	}
	return p
}

// searchRoots returns the directories a relative snippet source is looked up in, in order.
func (b *build) searchRoots() []string {
	return []string{b.opts.WorkDir, b.dir, b.outDir}
}

// resolveSnippet returns the path of the first existing file named src in the search roots.
// An absolute src is used as is.
func (b *build) resolveSnippet(src string) (string, error) {
	candidates := []string{src}
	if !filepath.IsAbs(src) {
		candidates = candidates[:0]
		for _, root := range b.searchRoots() {
			candidates = append(candidates, filepath.Join(root, src))
		}
	}

	for _, p := range candidates {
		if fi, err := b.fs.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q, tried %s", ErrSnippetNotFound, src, strings.Join(candidates, ", "))
}

// emit queues data to be written to path. Files are written by flush once every pass
// succeeded, so a failed compilation leaves the output directory untouched.
func (b *build) emit(path string, data []byte) {
	b.pending = append(b.pending, outputFile{path: path, data: data})
}

// flush writes the queued files in order. On the OS file system each file is replaced
// atomically.
func (b *build) flush() error {
	for _, f := range b.pending {
		var err error
		if _, ok := b.fs.(*afero.OsFs); ok {
			err = atomic.WriteFile(f.path, bytes.NewReader(f.data))
		} else {
			err = afero.WriteFile(b.fs, f.path, f.data, 0o644)
		}
		if err != nil {
			return fmt.Errorf("write %s: %w", f.path, err)
		}
		b.written = append(b.written, f.path)
		b.logger.Info("Write file", "path", f.path, "bytes", len(f.data))
	}
	b.pending = nil
	return nil
}
