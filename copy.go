package stitch

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dpotapov/go-stitch/dom"
	"github.com/spf13/afero"
)

// copyAssets copies the CSS and JS files found next to the template into the output directory as
// <name>.<file> and binds the public URL of each copy to the file name, so the template can
// reference app.js as {{app_js}}.
func copyAssets(b *build, doc *dom.Document) (*dom.Document, error) {
	entries, err := afero.ReadDir(b.fs, b.dir)
	if err != nil {
		return nil, fmt.Errorf("list template directory: %w", err)
	}

	for _, fi := range entries {
		if fi.IsDir() || !isStaticAsset(fi.Name()) {
			continue
		}
		if b.dir == b.outDir && strings.HasPrefix(fi.Name(), b.name+".") {
			// output of a previous run
			continue
		}

		data, err := afero.ReadFile(b.fs, filepath.Join(b.dir, fi.Name()))
		if err != nil {
			return nil, fmt.Errorf("read asset: %w", err)
		}
		dst := b.outputPath(fi.Name())
		b.emit(dst, data)
		if err := b.vars.Set(fi.Name(), b.publicURL(dst)); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func isStaticAsset(name string) bool {
	return strings.HasSuffix(name, ".css") || strings.HasSuffix(name, ".js")
}
