package stitch

import (
	"github.com/dpotapov/go-stitch/binding"
	"github.com/dpotapov/go-stitch/dom"
)

// render substitutes the bindings into the document and writes <name>.html. Escaped \{{
// delimiters become literal {{ in the page.
func render(b *build, doc *dom.Document) (*dom.Document, error) {
	markup, err := doc.Markup()
	if err != nil {
		return nil, err
	}
	out, err := binding.Interpolate(markup, b.vars)
	if err != nil {
		return nil, err
	}
	b.emit(b.outputPath("html"), []byte(binding.Unescape(out)))
	return doc, nil
}
